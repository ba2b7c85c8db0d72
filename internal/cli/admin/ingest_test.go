package admin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/RyanNg1403/tieplm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadInputs_FiltersAndReportsBadTranscripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "transcripts", "a.json"),
		`{"language":"vi","segments":[{"text":"xin chào","start":0,"end":4.5}]}`)
	writeFile(t, filepath.Join(dir, "transcripts", "b.json"), `not json`)
	writeFile(t, filepath.Join(dir, "manifest.json"), `{"videos":[
		{"chapter":"Chương 1","title":"Intro","url":"https://youtu.be/a","transcript":"transcripts/a.json"},
		{"chapter":"Chương 1","title":"Broken","url":"https://youtu.be/b","transcript":"transcripts/b.json"},
		{"chapter":"Chương 2","title":"Other","url":"https://youtu.be/c","transcript":"transcripts/c.json"}
	]}`)

	ctx := context.Background()
	src := storage.Sources{}
	manifest, err := storage.LoadManifest(ctx, src, filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	inputs, failures := loadInputs(ctx, src, manifest, []string{"Chương 1_a", "Chương 1_b"})

	require.Len(t, inputs, 1)
	assert.Equal(t, "Chương 1_a", inputs[0].Video.ID)
	assert.Equal(t, 4.5, inputs[0].Video.Duration)
	require.Len(t, failures, 1)
	assert.Equal(t, "Chương 1_b", failures[0].VideoID)
	assert.NotEmpty(t, failures[0].Error)
}

func TestSummarize_CountsLoadFailures(t *testing.T) {
	report := &service.IngestReport{
		Videos: []service.VideoReport{
			{VideoID: "v1", Chunks: 3, Stored: 3, Embedded: 2, Degraded: 1},
			{VideoID: "v2", Err: errors.New("embedding service unavailable")},
		},
		FailedVideos: 1,
		FailedChunks: 0,
	}

	s := summarize(report, []videoSummary{{VideoID: "v3", Error: "malformed"}}, 1500*time.Millisecond)

	assert.Equal(t, 2, s.FailedVideos)
	require.Len(t, s.Videos, 3)
	assert.Equal(t, "embedding service unavailable", s.Videos[1].Error)
	assert.Equal(t, "1.5s", s.Duration)

	var out bytes.Buffer
	printSummary(&out, s)
	assert.Contains(t, out.String(), "ok    v1: 3 chunks, 3 stored, 2 embedded, 1 degraded")
	assert.Contains(t, out.String(), "FAIL  v3: malformed")
	assert.Contains(t, out.String(), "3 videos, 2 failed videos, 0 failed chunks in 1.5s")
}
