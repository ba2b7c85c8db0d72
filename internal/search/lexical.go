// Package search holds the in-process lexical index and rank fusion used by
// hybrid retrieval.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	bm25ScoringModel = "bm25"

	// filter clauses match without contributing to the BM25 score
	filterBoost = 0.0

	fieldText    = "text"
	fieldChapter = "chapter"
	fieldVideoID = "video_id"
)

// Hit is one lexical match.
type Hit struct {
	ChunkID string
	Score   float64
}

// Filter restricts a lexical search. Empty fields do not filter.
type Filter struct {
	Chapters []string
	VideoID  string
}

type lexicalDoc struct {
	Text    string `json:"text"`
	Chapter string `json:"chapter"`
	VideoID string `json:"video_id"`
}

// Snapshot is an immutable BM25 index over the chunks that existed when it
// was built, plus their metadata. Readers share a snapshot without locking.
type Snapshot struct {
	index    bleve.Index
	chunks   map[string]domain.VideoChunk
	chapters map[string]struct{}
	byVideo  map[string][]string
	builtAt  time.Time
}

func newIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.ScoringModel = bm25ScoringModel

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false

	keywordField := bleve.NewKeywordFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldText, textField)
	doc.AddFieldMappingsAt(fieldChapter, keywordField)
	doc.AddFieldMappingsAt(fieldVideoID, keywordField)
	indexMapping.DefaultMapping = doc

	return indexMapping
}

// Build indexes every chunk with transcript text. Chunks of silent windows
// are left out of the snapshot entirely.
func Build(ctx context.Context, rows []domain.VideoChunk) (*Snapshot, error) {
	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}

	s := &Snapshot{
		index:    idx,
		chunks:   make(map[string]domain.VideoChunk, len(rows)),
		chapters: make(map[string]struct{}),
		byVideo:  make(map[string][]string),
		builtAt:  time.Now().UTC(),
	}

	batch := idx.NewBatch()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return nil, err
		}
		if strings.TrimSpace(row.Chunk.RawText) == "" {
			continue
		}
		doc := lexicalDoc{
			Text:    row.Chunk.RawText,
			Chapter: row.Video.Chapter,
			VideoID: row.Video.ID,
		}
		if err := batch.Index(row.Chunk.ID, doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index chunk %s: %w", row.Chunk.ID, err)
		}
		s.chunks[row.Chunk.ID] = row
		s.chapters[row.Video.Chapter] = struct{}{}
		s.byVideo[row.Video.ID] = append(s.byVideo[row.Video.ID], row.Chunk.ID)
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to write lexical index: %w", err)
	}

	for videoID, ids := range s.byVideo {
		sort.Slice(ids, func(i, j int) bool {
			return s.chunks[ids[i]].Chunk.Index < s.chunks[ids[j]].Chunk.Index
		})
		s.byVideo[videoID] = ids
	}

	return s, nil
}

// DocCount returns the number of indexed chunks.
func (s *Snapshot) DocCount() int {
	if s == nil {
		return 0
	}
	return len(s.chunks)
}

// BuiltAt returns when the snapshot was taken.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// HasAnyChapter reports whether at least one of chapters has indexed chunks.
// An empty list matches any non-empty snapshot.
func (s *Snapshot) HasAnyChapter(chapters []string) bool {
	if s.DocCount() == 0 {
		return false
	}
	if len(chapters) == 0 {
		return true
	}
	for _, c := range chapters {
		if _, ok := s.chapters[c]; ok {
			return true
		}
	}
	return false
}

// HasVideo reports whether a video has indexed chunks.
func (s *Snapshot) HasVideo(videoID string) bool {
	return s.DocCount() > 0 && len(s.byVideo[videoID]) > 0
}

// Chunk returns the metadata of an indexed chunk.
func (s *Snapshot) Chunk(id string) (domain.VideoChunk, bool) {
	if s == nil {
		return domain.VideoChunk{}, false
	}
	vc, ok := s.chunks[id]
	return vc, ok
}

// VideoChunks returns the chunks of one video in time order.
func (s *Snapshot) VideoChunks(videoID string) []domain.VideoChunk {
	if s == nil {
		return nil
	}
	ids := s.byVideo[videoID]
	out := make([]domain.VideoChunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.chunks[id])
	}
	return out
}

// Search runs a BM25 query restricted by filter. Hits are ordered by score
// descending, then chunk id. Only hits with a positive score are returned.
func (s *Snapshot) Search(ctx context.Context, text string, filter Filter, limit int) ([]Hit, error) {
	if s.DocCount() == 0 || strings.TrimSpace(text) == "" || limit <= 0 {
		return []Hit{}, nil
	}

	match := bleve.NewMatchQuery(strings.ToLower(text))
	match.SetField(fieldText)

	conjuncts := []query.Query{match}
	if len(filter.Chapters) > 0 {
		chapterQueries := make([]query.Query, 0, len(filter.Chapters))
		for _, c := range filter.Chapters {
			tq := bleve.NewTermQuery(c)
			tq.SetField(fieldChapter)
			tq.SetBoost(filterBoost)
			chapterQueries = append(chapterQueries, tq)
		}
		chapters := bleve.NewDisjunctionQuery(chapterQueries...)
		chapters.SetBoost(filterBoost)
		conjuncts = append(conjuncts, chapters)
	}
	if filter.VideoID != "" {
		tq := bleve.NewTermQuery(filter.VideoID)
		tq.SetField(fieldVideoID)
		tq.SetBoost(filterBoost)
		conjuncts = append(conjuncts, tq)
	}

	var q query.Query = match
	if len(conjuncts) > 1 {
		q = bleve.NewConjunctionQuery(conjuncts...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{}

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		if h.Score <= 0 {
			continue
		}
		hits = append(hits, Hit{ChunkID: h.ID, Score: h.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	return hits, nil
}

// Close releases the index.
func (s *Snapshot) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}
