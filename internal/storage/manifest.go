package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
)

// ManifestEntry describes one video to ingest.
type ManifestEntry struct {
	ID         string  `json:"id,omitempty"`
	Chapter    string  `json:"chapter"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Duration   float64 `json:"duration,omitempty"`
	Transcript string  `json:"transcript"`
}

// Manifest lists the videos of a course.
type Manifest struct {
	Videos []ManifestEntry `json:"videos"`
}

// Video builds the video identity of an entry. Without an explicit id the
// id is derived from chapter and URL.
func (e ManifestEntry) Video() domain.Video {
	id := e.ID
	if id == "" {
		id = domain.VideoIDFor(e.Chapter, e.URL)
	}
	return domain.Video{
		ID:             id,
		Chapter:        e.Chapter,
		Title:          e.Title,
		URL:            e.URL,
		Duration:       e.Duration,
		TranscriptPath: e.Transcript,
	}
}

// LoadManifest reads a manifest. Relative transcript paths of a local
// manifest resolve against the manifest's directory.
func LoadManifest(ctx context.Context, src TranscriptSource, location string) (*Manifest, error) {
	rc, err := src.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", location, err)
	}

	local := !strings.HasPrefix(location, s3Scheme)
	for i, e := range m.Videos {
		if e.Chapter == "" || e.URL == "" || e.Transcript == "" {
			return nil, fmt.Errorf("manifest entry %d: chapter, url and transcript are required", i)
		}
		if local && !strings.HasPrefix(e.Transcript, s3Scheme) && !filepath.IsAbs(e.Transcript) {
			m.Videos[i].Transcript = filepath.Join(filepath.Dir(location), e.Transcript)
		}
	}
	return &m, nil
}
