//go:build integration

package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Source_LoadsTranscript(t *testing.T) {
	ctx := context.Background()
	sc := testutil.NewS3Container(ctx, t)
	defer sc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        sc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     sc.AccessKey,
		SecretAccessKey: sc.SecretKey,
		Bucket:          "course",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	body := `{"segments":[{"text":"hello","start":0,"end":1}]}`
	require.NoError(t, client.PutObject(ctx, "ch1/a.json", "application/json", strings.NewReader(body)))

	src := S3Source{Client: client}

	tr, err := LoadTranscript(ctx, src, "s3://course/ch1/a.json")
	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, "hello", tr.Segments[0].Text)

	tr, err = LoadTranscript(ctx, src, "ch1/a.json")
	require.NoError(t, err)
	assert.Len(t, tr.Segments, 1)

	_, err = LoadTranscript(ctx, src, "s3://course/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
