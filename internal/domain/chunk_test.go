package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID_IsDeterministicAndPadded(t *testing.T) {
	assert.Equal(t, "ch01_abc#0000", ChunkID("ch01_abc", 0))
	assert.Equal(t, "ch01_abc#0012", ChunkID("ch01_abc", 12))
}

func TestVectorRefFor_StableAcrossCalls(t *testing.T) {
	a := VectorRefFor("ch01_abc#0001")
	b := VectorRefFor("ch01_abc#0001")
	c := VectorRefFor("ch01_abc#0002")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}

func TestNewChunk(t *testing.T) {
	raw := RawChunk{Index: 3, Start: 150, End: 210, Text: "gradient descent"}
	c := NewChunk("ch02_vid", raw, "ctx\n\ngradient descent", false)

	assert.Equal(t, "ch02_vid#0003", c.ID)
	assert.Equal(t, "ch02_vid", c.VideoID)
	assert.Equal(t, 3, c.Index)
	assert.Equal(t, 150.0, c.Start)
	assert.Equal(t, 210.0, c.End)
	assert.Equal(t, "gradient descent", c.RawText)
	assert.Equal(t, VectorRefFor(c.ID), c.VectorRef)
	assert.False(t, c.Degraded)
}

func TestEmbeddingRecordFor_DenormalizesVideo(t *testing.T) {
	v := &Video{ID: "ch02_vid", Chapter: "ch02", Title: "Optimizers", URL: "https://youtu.be/vid"}
	c := NewChunk(v.ID, RawChunk{Index: 0, Start: 0, End: 60, Text: "x"}, "x", true)

	rec := EmbeddingRecordFor(c, v, []float32{0.1, 0.2})

	assert.Equal(t, c.VectorRef, rec.VectorRef)
	assert.Equal(t, c.ID, rec.ChunkID)
	assert.Equal(t, "ch02", rec.Chapter)
	assert.Equal(t, "Optimizers", rec.VideoTitle)
	assert.Equal(t, "https://youtu.be/vid", rec.VideoURL)
	assert.Equal(t, 0.0, rec.Start)
	assert.Equal(t, 60.0, rec.End)
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr bool
	}{
		{"nil", nil, true},
		{"missing id", &Chunk{VideoID: "v", Start: 0, End: 1}, true},
		{"missing video", &Chunk{ID: "c", Start: 0, End: 1}, true},
		{"empty range", &Chunk{ID: "c", VideoID: "v", Start: 5, End: 5}, true},
		{"valid", &Chunk{ID: "c", VideoID: "v", Start: 0, End: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestVideoIDFor(t *testing.T) {
	tests := []struct {
		chapter, url, want string
	}{
		{"Chuong 1", "https://www.youtube.com/watch/abc123", "Chuong 1_abc123"},
		{"ch2", "https://youtu.be/xyz/", "ch2_xyz"},
		{"ch3", "https://youtu.be/q1?t=30", "ch3_q1"},
		{"ch4", "plain", "ch4_plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VideoIDFor(tt.chapter, tt.url))
	}
}

func TestTranscriptDuration(t *testing.T) {
	tr := Transcript{Segments: []Segment{
		{Text: "a", Start: 0, End: 4},
		{Text: "b", Start: 3, End: 9.5},
		{Text: "c", Start: 5, End: 7},
	}}
	assert.Equal(t, 9.5, tr.Duration())
	assert.Equal(t, 0.0, Transcript{}.Duration())
}
