package service

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
)

// ChunkConfig controls the time windows cut from a transcript.
type ChunkConfig struct {
	WindowSeconds  float64
	OverlapSeconds float64
}

// DefaultChunkConfig returns 60 second windows overlapping by 10 seconds.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowSeconds:  60,
		OverlapSeconds: 10,
	}
}

// Validate checks 0 <= overlap < window.
func (c ChunkConfig) Validate() error {
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("chunk window must be positive, got %v", c.WindowSeconds)
	}
	if c.OverlapSeconds < 0 || c.OverlapSeconds >= c.WindowSeconds {
		return fmt.Errorf("chunk overlap must be in [0, %v), got %v", c.WindowSeconds, c.OverlapSeconds)
	}
	return nil
}

// Chunker splits transcripts into fixed time windows.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk validates the transcript and returns its windows as a sequence.
// Window i covers [i*(W-O), i*(W-O)+W); the last window is clipped to the
// end of the transcript. Each range over the sequence starts from the first
// window again.
func (c *Chunker) Chunk(videoID string, t domain.Transcript) (iter.Seq[domain.RawChunk], error) {
	if err := validateTranscript(videoID, t); err != nil {
		return nil, err
	}

	segments := t.Segments
	duration := t.Duration()
	window := c.cfg.WindowSeconds
	step := window - c.cfg.OverlapSeconds

	return func(yield func(domain.RawChunk) bool) {
		for i := 0; ; i++ {
			start := float64(i) * step
			end := start + window
			last := end >= duration
			if last {
				end = duration
			}

			raw := domain.RawChunk{
				Index: i,
				Start: start,
				End:   end,
				Text:  windowText(segments, start, end, last),
			}
			if !yield(raw) || last {
				return
			}
		}
	}, nil
}

// ChunkAll collects every window of a transcript.
func (c *Chunker) ChunkAll(videoID string, t domain.Transcript) ([]domain.RawChunk, error) {
	seq, err := c.Chunk(videoID, t)
	if err != nil {
		return nil, err
	}
	var out []domain.RawChunk
	for raw := range seq {
		out = append(out, raw)
	}
	return out, nil
}

func validateTranscript(videoID string, t domain.Transcript) error {
	if len(t.Segments) == 0 {
		return domain.NewMalformedTranscriptError(videoID, "transcript has no segments")
	}
	prev := -1.0
	for i, s := range t.Segments {
		if s.Start < 0 {
			return domain.NewMalformedTranscriptError(videoID, fmt.Sprintf("segment %d starts before zero", i))
		}
		if s.End < s.Start {
			return domain.NewMalformedTranscriptError(videoID, fmt.Sprintf("segment %d ends before it starts", i))
		}
		if s.Start < prev {
			return domain.NewMalformedTranscriptError(videoID,
				fmt.Sprintf("segment %d starts at %.3fs, before the previous segment at %.3fs", i, s.Start, prev))
		}
		prev = s.Start
	}
	if t.Duration() <= 0 {
		return domain.NewMalformedTranscriptError(videoID, "transcript has zero duration")
	}
	return nil
}

// windowText joins the text of segments starting in [start, end). The final
// window also takes segments starting exactly at its end.
func windowText(segments []domain.Segment, start, end float64, last bool) string {
	from := sort.Search(len(segments), func(i int) bool { return segments[i].Start >= start })

	var b strings.Builder
	for _, s := range segments[from:] {
		if s.Start > end || (s.Start == end && !last) {
			break
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}
