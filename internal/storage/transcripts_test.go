package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type recordingSource struct {
	opened []string
}

func (s *recordingSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	s.opened = append(s.opened, location)
	return io.NopCloser(strings.NewReader(`{"segments":[]}`)), nil
}

func TestLoadTranscript_FromFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ch1/lecture.json", `{"language":"vi","segments":[{"text":"xin","start":0,"end":0.4},{"text":"chào","start":0.4,"end":0.9}]}`)

	tr, err := LoadTranscript(context.Background(), FileSource{Root: dir}, "ch1/lecture.json")
	require.NoError(t, err)
	assert.Equal(t, "vi", tr.Language)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, domain.Segment{Text: "chào", Start: 0.4, End: 0.9}, tr.Segments[1])
}

func TestLoadTranscript_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{"segments": [`)
	src := FileSource{Root: dir}

	_, err := LoadTranscript(context.Background(), src, "missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = LoadTranscript(context.Background(), src, "broken.json")
	assert.True(t, domain.IsCode(err, domain.ErrCodeMalformedTranscript))
}

func TestSources_Dispatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.json", `{"segments":[]}`)
	remote := &recordingSource{}
	src := Sources{Files: FileSource{Root: dir}, S3: remote}

	rc, err := src.Open(context.Background(), "local.json")
	require.NoError(t, err)
	rc.Close()
	assert.Empty(t, remote.opened)

	rc, err = src.Open(context.Background(), "s3://course/ch1/a.json")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, []string{"s3://course/ch1/a.json"}, remote.opened)

	_, err = Sources{Files: FileSource{Root: dir}}.Open(context.Background(), "s3://course/a.json")
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := parseS3URI("s3://course/ch1/a b.json")
	require.NoError(t, err)
	assert.Equal(t, "course", bucket)
	assert.Equal(t, "ch1/a b.json", key)

	for _, bad := range []string{"course/a.json", "s3://course", "s3:///a.json", "s3://course/"} {
		_, _, err := parseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "course/manifest.json", `{"videos":[
		{"chapter":"ch4","title":"[CS431 - Chapter 4] Part 1: Convolutions","url":"https://youtu.be/abc","transcript":"transcripts/a.json"},
		{"id":"custom","chapter":"ch5","title":"RNN","url":"https://youtu.be/def?t=3","duration":612.5,"transcript":"s3://course/b.json"}
	]}`)

	m, err := LoadManifest(context.Background(), FileSource{}, manifest)
	require.NoError(t, err)
	require.Len(t, m.Videos, 2)

	assert.Equal(t, filepath.Join(dir, "course", "transcripts/a.json"), m.Videos[0].Transcript)
	assert.Equal(t, "s3://course/b.json", m.Videos[1].Transcript)

	v := m.Videos[0].Video()
	assert.Equal(t, "ch4_abc", v.ID)
	assert.Equal(t, "ch4", v.Chapter)
	assert.Equal(t, m.Videos[0].Transcript, v.TranscriptPath)

	v = m.Videos[1].Video()
	assert.Equal(t, "custom", v.ID)
	assert.Equal(t, 612.5, v.Duration)
}

func TestLoadManifest_RejectsIncompleteEntries(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.json", `{"videos":[{"chapter":"ch1","title":"t","url":""}]}`)

	_, err := LoadManifest(context.Background(), FileSource{}, manifest)
	assert.Error(t, err)
}
