package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
	llm "github.com/RyanNg1403/tieplm/internal/openai"
)

const (
	defaultContextTokenLimit = 200
	defaultContextTokenStep  = 100
	enrichMaxAttempts        = 3
	neighbourGistRunes       = 300

	enrichSystemPrompt = "You write short context notes for lecture transcript excerpts."
)

// CompletionClient runs bounded, non-streaming completions.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
}

// EnrichConfig sets the context token budget. Attempt a runs with
// TokenLimit + a*TokenStep tokens.
type EnrichConfig struct {
	TokenLimit int
	TokenStep  int
}

// EnrichResult is the outcome of enriching one chunk. A degraded result
// carries the raw text unchanged.
type EnrichResult struct {
	Text     string
	Context  string
	Attempts int
	Degraded bool
	Cause    error
}

// Enricher prefixes chunks with a model-written note that situates them in
// their lecture.
type Enricher struct {
	client CompletionClient
	cfg    EnrichConfig
}

func NewEnricher(client CompletionClient, cfg EnrichConfig) *Enricher {
	if cfg.TokenLimit <= 0 {
		cfg.TokenLimit = defaultContextTokenLimit
	}
	if cfg.TokenStep <= 0 {
		cfg.TokenStep = defaultContextTokenStep
	}
	return &Enricher{client: client, cfg: cfg}
}

// Enrich asks for a context note with a growing token budget. An overflow
// moves on to the next budget; any other error stops immediately. When no
// attempt succeeds the raw text is returned with Degraded set.
func (e *Enricher) Enrich(ctx context.Context, raw domain.RawChunk, prev, next *domain.RawChunk, video domain.Video) EnrichResult {
	var cause error
	attempts := 0
	for a := 0; a < enrichMaxAttempts; a++ {
		attempts++
		budget := e.cfg.TokenLimit + a*e.cfg.TokenStep
		completion, err := e.client.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: enrichSystemPrompt,
			Prompt:       buildEnrichPrompt(raw, prev, next, video, budget),
			MaxTokens:    budget,
		})
		if err != nil {
			cause = err
			if isTokenOverflow(err) {
				continue
			}
			break
		}
		if completion.Truncated {
			cause = errContextOverflow
			continue
		}

		note := strings.TrimSpace(completion.Text)
		if note == "" {
			cause = errors.New("empty context note")
			break
		}
		return EnrichResult{
			Text:     note + "\n\n" + raw.Text,
			Context:  note,
			Attempts: attempts,
		}
	}

	return EnrichResult{
		Text:     raw.Text,
		Attempts: attempts,
		Degraded: true,
		Cause:    cause,
	}
}

var errContextOverflow = errors.New("context note exceeded its token budget")

// isTokenOverflow recognises provider errors raised when the output limit is
// too small for the answer.
func isTokenOverflow(err error) bool {
	if errors.Is(err, errContextOverflow) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "max_tokens") ||
		strings.Contains(msg, "max_completion_tokens") ||
		strings.Contains(msg, "output limit")
}

func buildEnrichPrompt(raw domain.RawChunk, prev, next *domain.RawChunk, video domain.Video, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short context note (at most %d tokens) for this excerpt of a lecture transcript.\n", budget)
	b.WriteString("Name the topic and how it relates to the surrounding material. Be brief.\n\n")

	b.WriteString("Video:\n")
	fmt.Fprintf(&b, "- Chapter: %s\n", video.Chapter)
	fmt.Fprintf(&b, "- Title: %s\n", lectureTitle(video.Title))
	fmt.Fprintf(&b, "- Timestamp: %.1fs to %.1fs\n\n", raw.Start, raw.End)

	b.WriteString("Excerpt:\n")
	b.WriteString(raw.Text)
	b.WriteString("\n")

	if prev != nil && prev.Text != "" {
		fmt.Fprintf(&b, "\nPrevious excerpt (ends at %.1fs): %s...\n", prev.End, gist(prev.Text))
	}
	if next != nil && next.Text != "" {
		fmt.Fprintf(&b, "\nNext excerpt (starts at %.1fs): %s...\n", next.Start, gist(next.Text))
	}

	b.WriteString("\nExample: \"Chapter 8, Part 1: LSTM networks. Explains the cell with forget and input gates and how it avoids vanishing gradients. Follows the introduction to RNNs.\"\n")
	return b.String()
}

func gist(text string) string {
	r := []rune(text)
	if len(r) <= neighbourGistRunes {
		return text
	}
	return string(r[:neighbourGistRunes])
}

// lectureTitle drops a "[course - chapter] Part n:" style prefix from a title.
func lectureTitle(title string) string {
	for _, sep := range []string{"：", ":"} {
		if _, rest, ok := strings.Cut(title, sep); ok && strings.TrimSpace(rest) != "" {
			return strings.TrimSpace(rest)
		}
	}
	return title
}
