package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel     = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 32
)

// HTTPConfig configures a cross-encoder server client.
type HTTPConfig struct {
	Endpoint  string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// HTTPReranker calls a cross-encoder server exposing POST /rerank.
type HTTPReranker struct {
	client *http.Client
	cfg    HTTPConfig
}

var _ Reranker = (*HTTPReranker)(nil)

func NewHTTPReranker(cfg HTTPConfig) *HTTPReranker {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &HTTPReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		cfg: cfg,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank scores documents in batches and returns the topK best. Results
// that do not refer to an input document are discarded.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if len(documents) == 0 {
		return []Result{}, nil
	}

	started := time.Now()
	var all []Result
	for offset := 0; offset < len(documents); offset += r.cfg.BatchSize {
		end := min(offset+r.cfg.BatchSize, len(documents))
		batch, err := r.score(ctx, query, documents[offset:end])
		if err != nil {
			return nil, err
		}
		for _, res := range sanitize(batch, end-offset) {
			all = append(all, Result{Index: res.Index + offset, Score: res.Score})
		}
	}

	out := sanitize(all, len(documents))
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	log.Printf("Reranked %d documents in %v", len(documents), time.Since(started))
	return out, nil
}

func (r *HTTPReranker) score(ctx context.Context, query string, documents []string) ([]Result, error) {
	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.cfg.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(msg))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	out := make([]Result, len(decoded.Results))
	for i, res := range decoded.Results {
		out[i] = Result{Index: res.Index, Score: res.Score}
	}
	return out, nil
}
