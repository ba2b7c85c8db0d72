package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// vectorRefNamespace scopes the name-based UUIDs used as vector references.
var vectorRefNamespace = uuid.MustParse("5b0f3c1e-7c55-4a0e-9d6b-3f2a8e1c9d40")

// RawChunk is a time window cut from a transcript before enrichment.
type RawChunk struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Chunk is the unit of retrieval: a time-bounded slice of one video's transcript.
type Chunk struct {
	ID           string
	VideoID      string
	Index        int
	Start        float64
	End          float64
	RawText      string
	EnrichedText string
	VectorRef    string
	Degraded     bool
	CreatedAt    time.Time
}

// EmbeddingRecord pairs a chunk's vector with the metadata needed to filter
// dense search without joining the relational tables.
type EmbeddingRecord struct {
	VectorRef  string
	ChunkID    string
	Vector     []float32
	Chapter    string
	VideoID    string
	VideoTitle string
	VideoURL   string
	Start      float64
	End        float64
}

// ChunkID returns the deterministic id of the index-th chunk of a video.
func ChunkID(videoID string, index int) string {
	return fmt.Sprintf("%s#%04d", videoID, index)
}

// VectorRefFor returns the deterministic vector-store id for a chunk id.
func VectorRefFor(chunkID string) string {
	return uuid.NewSHA1(vectorRefNamespace, []byte(chunkID)).String()
}

// NewChunk builds a Chunk for the given video from a raw window.
func NewChunk(videoID string, raw RawChunk, enriched string, degraded bool) *Chunk {
	id := ChunkID(videoID, raw.Index)
	return &Chunk{
		ID:           id,
		VideoID:      videoID,
		Index:        raw.Index,
		Start:        raw.Start,
		End:          raw.End,
		RawText:      raw.Text,
		EnrichedText: enriched,
		VectorRef:    VectorRefFor(id),
		Degraded:     degraded,
	}
}

// EmbeddingRecordFor denormalizes chunk and video metadata onto a vector.
func EmbeddingRecordFor(c *Chunk, v *Video, vector []float32) EmbeddingRecord {
	return EmbeddingRecord{
		VectorRef:  c.VectorRef,
		ChunkID:    c.ID,
		Vector:     vector,
		Chapter:    v.Chapter,
		VideoID:    v.ID,
		VideoTitle: v.Title,
		VideoURL:   v.URL,
		Start:      c.Start,
		End:        c.End,
	}
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.VideoID == "" {
		return fmt.Errorf("chunk VideoID is required")
	}
	if c.Start >= c.End {
		return ErrInvalidTimeRange
	}
	return nil
}

// VideoChunk is a chunk joined with its owning video.
type VideoChunk struct {
	Chunk Chunk
	Video Video
}
