// Package storage loads transcripts and ingestion manifests from the local
// filesystem or an S3-compatible object store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
)

const s3Scheme = "s3://"

// ErrObjectNotFound is returned when a transcript location does not exist.
var ErrObjectNotFound = errors.New("object not found")

// TranscriptSource opens transcripts by location.
type TranscriptSource interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FileSource reads transcripts from disk. Relative locations resolve
// against Root.
type FileSource struct {
	Root string
}

func (s FileSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path := location
	if !filepath.IsAbs(path) && s.Root != "" {
		path = filepath.Join(s.Root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	return f, nil
}

// S3Source reads transcripts addressed as s3://bucket/key, or as a bare key
// in the client's default bucket.
type S3Source struct {
	Client *S3Client
}

func (s S3Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		return s.Client.GetObject(ctx, "", location)
	}
	bucket, key, err := parseS3URI(location)
	if err != nil {
		return nil, err
	}
	return s.Client.GetObject(ctx, bucket, key)
}

// Sources dispatches s3:// locations to S3 and everything else to Files.
type Sources struct {
	Files FileSource
	S3    TranscriptSource
}

func (s Sources) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, s3Scheme) {
		if s.S3 == nil {
			return nil, fmt.Errorf("s3 is not configured, cannot open %s", location)
		}
		return s.S3.Open(ctx, location)
	}
	return s.Files.Open(ctx, location)
}

// LoadTranscript reads and decodes one transcript. A file that is not a
// transcript is reported as malformed.
func LoadTranscript(ctx context.Context, src TranscriptSource, location string) (domain.Transcript, error) {
	rc, err := src.Open(ctx, location)
	if err != nil {
		return domain.Transcript{}, err
	}
	defer rc.Close()

	var t domain.Transcript
	if err := json.NewDecoder(rc).Decode(&t); err != nil {
		return domain.Transcript{}, domain.NewDomainErrorWithCause(domain.ErrCodeMalformedTranscript,
			"failed to decode transcript "+location, err)
	}
	return t, nil
}
