package domain

import (
	"fmt"
	"strings"
	"time"
)

// Video is an ingested lecture video. Videos are never mutated after
// ingestion; re-ingestion replaces their chunks, not the video row.
type Video struct {
	ID             string
	Chapter        string
	Title          string
	URL            string
	Duration       float64 // seconds
	TranscriptPath string
	CreatedAt      time.Time
}

// VideoIDFor derives the stable video id "<chapter>_<last url segment>".
func VideoIDFor(chapter, url string) string {
	tail := strings.TrimRight(url, "/")
	if i := strings.LastIndex(tail, "/"); i >= 0 {
		tail = tail[i+1:]
	}
	if i := strings.IndexAny(tail, "?#"); i >= 0 {
		tail = tail[:i]
	}
	return chapter + "_" + tail
}

// ValidateVideo validates a Video instance
func ValidateVideo(v *Video) error {
	if v == nil {
		return fmt.Errorf("video cannot be nil")
	}
	if v.ID == "" {
		return fmt.Errorf("video ID is required")
	}
	if v.Chapter == "" {
		return fmt.Errorf("video Chapter is required")
	}
	if v.Title == "" {
		return fmt.Errorf("video Title is required")
	}
	if v.Duration < 0 {
		return fmt.Errorf("video Duration cannot be negative")
	}
	return nil
}
