package search

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/RyanNg1403/tieplm/internal/domain"
)

// ChunkSource lists the relational chunks a snapshot is built from.
type ChunkSource interface {
	ListIndexable(ctx context.Context) ([]domain.VideoChunk, error)
}

// SnapshotHolder publishes the current lexical snapshot. Queries read the
// pointer once and keep using that snapshot even if a refresh swaps it.
type SnapshotHolder struct {
	source  ChunkSource
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

func NewSnapshotHolder(source ChunkSource) *SnapshotHolder {
	return &SnapshotHolder{source: source}
}

// Current returns the latest snapshot, or nil before the first refresh.
func (h *SnapshotHolder) Current() *Snapshot {
	return h.current.Load()
}

// Refresh rebuilds the snapshot from the relational store and publishes it.
// Concurrent refreshes are serialized.
func (h *SnapshotHolder) Refresh(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.source.ListIndexable(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chunks for lexical index: %w", err)
	}

	snap, err := Build(ctx, rows)
	if err != nil {
		return err
	}

	// the previous snapshot is left open for readers still holding it
	h.current.Store(snap)
	log.Printf("Lexical snapshot refreshed: %d chunks", snap.DocCount())
	return nil
}

// ProcessJobs refreshes the snapshot; it lets the holder run on a jobs.Worker.
func (h *SnapshotHolder) ProcessJobs(ctx context.Context) error {
	return h.Refresh(ctx)
}
