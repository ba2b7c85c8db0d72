package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	llm "github.com/RyanNg1403/tieplm/internal/openai"
	"github.com/RyanNg1403/tieplm/internal/telemetry"
	"github.com/google/uuid"
)

const (
	defaultInitialK          = 150
	defaultEventBuffer       = 64
	defaultQuizContextChunks = 10
)

// ChatStreamer opens streaming completions.
type ChatStreamer interface {
	Stream(ctx context.Context, req llm.StreamRequest) (llm.TokenReader, error)
}

// CandidateRetriever finds candidates for a query or lists a whole video.
type CandidateRetriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) ([]domain.Candidate, error)
	VideoCandidates(videoID string) []domain.Candidate
}

// CandidateRanker narrows fused candidates to the final context.
type CandidateRanker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error)
}

// OrchestratorConfig tunes generation.
type OrchestratorConfig struct {
	InitialK    int
	EventBuffer int
	// QuizContextChunks caps the chunks of a whole-video quiz. They are
	// spread across the video so the quiz covers all of it.
	QuizContextChunks int
}

// SubmitRequest is one user request against the course corpus.
type SubmitRequest struct {
	Query     string
	TaskType  domain.TaskType
	Chapters  []string
	SessionID string
	VideoID   string
}

// Orchestrator drives a request through retrieval, reranking, prompting and
// streaming, and persists the exchange once the answer is complete.
type Orchestrator struct {
	retriever CandidateRetriever
	ranker    CandidateRanker
	streamer  ChatStreamer
	sessions  SessionRepositoryInterface
	messages  MessageRepositoryInterface
	txRunner  TxRunner
	cfg       OrchestratorConfig
	now       func() time.Time
}

func NewOrchestrator(
	retriever CandidateRetriever,
	ranker CandidateRanker,
	streamer ChatStreamer,
	sessions SessionRepositoryInterface,
	messages MessageRepositoryInterface,
	txRunner TxRunner,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.InitialK <= 0 {
		cfg.InitialK = defaultInitialK
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.QuizContextChunks <= 0 {
		cfg.QuizContextChunks = defaultQuizContextChunks
	}
	return &Orchestrator{
		retriever: retriever,
		ranker:    ranker,
		streamer:  streamer,
		sessions:  sessions,
		messages:  messages,
		txRunner:  txRunner,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// generation is the mutable state of one submitted request. It is owned by
// a single goroutine.
type generation struct {
	req     SubmitRequest
	session *domain.Session
	history []*domain.Message
	state   domain.GenerationState
}

func (g *generation) advance(next domain.GenerationState) error {
	if !g.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, g.state, next)
	}
	g.state = next
	return nil
}

// Submit validates the request, resolves or creates its session, and starts
// generation. Events arrive on the returned channel, which is closed after a
// done or error event, or when ctx is cancelled. Nothing is persisted unless
// the done event is produced.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (<-chan domain.Event, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if req.TaskType == "" {
		req.TaskType = domain.TaskTypeQA
	}
	if !domain.IsValidTaskType(req.TaskType) {
		return nil, domain.ErrInvalidTaskType
	}
	if req.TaskType == domain.TaskTypeVideoSummary && req.VideoID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "video_summary requires a video_id")
	}

	g := &generation{req: req, state: domain.StatePending}

	if req.SessionID != "" {
		session, err := o.sessions.GetByID(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		history, err := o.messages.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session history: %w", err)
		}
		g.session = session
		g.history = history
	} else {
		now := o.now()
		session := &domain.Session{
			ID:        uuid.NewString(),
			TaskType:  req.TaskType,
			Title:     domain.SessionTitle(req.Query),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := o.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		g.session = session
	}

	events := make(chan domain.Event, o.cfg.EventBuffer)
	go o.run(ctx, g, events)
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, g *generation, events chan<- domain.Event) {
	defer close(events)

	ctx, span := telemetry.StartSpan(ctx, "generation.run", telemetry.SpanAttributes{
		SessionID: g.session.ID,
		TaskType:  string(g.req.TaskType),
		VideoID:   g.req.VideoID,
		Operation: "generate",
	})
	defer span.End()

	send := func(ev domain.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(err error) {
		stage := g.state
		_ = g.advance(domain.StateFailed)
		if ctx.Err() != nil {
			log.Printf("Generation cancelled: session=%s stage=%s", g.session.ID, stage)
			return
		}
		gerr := domain.NewGenerationFailure(stage, err)
		span.SetError(gerr)
		log.Printf("Generation failed: session=%s stage=%s err=%v", g.session.ID, stage, err)
		send(domain.Event{Type: domain.EventError, SessionID: g.session.ID, Error: gerr.Error()})
	}

	if err := g.advance(domain.StateRetrieving); err != nil {
		fail(err)
		return
	}
	candidates, err := o.retrieve(ctx, g.req)
	if err != nil {
		fail(err)
		return
	}

	if err := g.advance(domain.StateReranking); err != nil {
		fail(err)
		return
	}
	if g.req.VideoID == "" || !isVideoTask(g.req.TaskType) {
		candidates, err = o.ranker.Rerank(ctx, g.req.Query, candidates)
		if err != nil {
			fail(err)
			return
		}
	}

	if err := g.advance(domain.StatePrompting); err != nil {
		fail(err)
		return
	}
	sources := sourceReferences(candidates)

	if len(candidates) == 0 {
		// nothing to ground on: answer without calling the model
		if err := g.advance(domain.StateStreaming); err != nil {
			fail(err)
			return
		}
		if !send(domain.Event{Type: domain.EventSources, Sources: []domain.SourceReference{}, SessionID: g.session.ID}) {
			return
		}
		o.finish(ctx, g, NoRelevantContentAnswer, []domain.SourceReference{}, send, fail)
		return
	}

	streamReq := llm.StreamRequest{
		SystemPrompt: systemPromptFor(g.req.TaskType),
		History:      historyTurns(g.history),
		Prompt:       buildUserPrompt(g.req.TaskType, g.req.Query, candidates),
	}

	if err := g.advance(domain.StateStreaming); err != nil {
		fail(err)
		return
	}
	reader, err := o.streamer.Stream(ctx, streamReq)
	if err != nil {
		fail(err)
		return
	}
	defer reader.Close()

	if !send(domain.Event{Type: domain.EventSources, Sources: sources, SessionID: g.session.ID}) {
		return
	}

	var answer strings.Builder
	for {
		token, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(err)
			return
		}
		answer.WriteString(token)
		if !send(domain.Event{Type: domain.EventToken, Token: token}) {
			return
		}
	}

	content, cited := resolveCitations(answer.String(), sources)
	if len(cited) == 0 {
		log.Printf("Generation uncited: session=%s task=%s sources=%d", g.session.ID, g.req.TaskType, len(sources))
		telemetry.AddBreadcrumb(ctx, "generation", fmt.Sprintf("answer cites none of %d sources", len(sources)))
	}
	o.finish(ctx, g, content, cited, send, fail)
}

// finish persists the exchange and emits done. A request cancelled before
// this point leaves no messages behind.
func (o *Orchestrator) finish(
	ctx context.Context,
	g *generation,
	content string,
	sources []domain.SourceReference,
	send func(domain.Event) bool,
	fail func(error),
) {
	if ctx.Err() != nil {
		return
	}

	now := o.now()
	user := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: g.session.ID,
		Role:      domain.RoleUser,
		Content:   g.req.Query,
		CreatedAt: now,
	}
	assistant := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: g.session.ID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Sources:   sources,
		CreatedAt: now,
	}

	err := o.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Messages().Append(ctx, user); err != nil {
			return fmt.Errorf("failed to append user message: %w", err)
		}
		if err := repos.Messages().Append(ctx, assistant); err != nil {
			return fmt.Errorf("failed to append assistant message: %w", err)
		}
		return repos.Sessions().Touch(ctx, g.session.ID, now)
	})
	if err != nil {
		fail(err)
		return
	}

	if err := g.advance(domain.StateDone); err != nil {
		fail(err)
		return
	}
	log.Printf("Generation done: session=%s task=%s cited=%d", g.session.ID, g.req.TaskType, len(sources))

	send(domain.Event{
		Type:      domain.EventDone,
		Content:   content,
		Sources:   sources,
		SessionID: g.session.ID,
		MessageID: assistant.ID,
	})
}

func (o *Orchestrator) retrieve(ctx context.Context, req SubmitRequest) ([]domain.Candidate, error) {
	if req.VideoID != "" && isVideoTask(req.TaskType) {
		chunks := o.retriever.VideoCandidates(req.VideoID)
		if req.TaskType == domain.TaskTypeQuiz {
			chunks = spreadEvenly(chunks, o.cfg.QuizContextChunks)
		}
		return chunks, nil
	}
	return o.retriever.Retrieve(ctx, RetrieveRequest{
		Query:    req.Query,
		TopK:     o.cfg.InitialK,
		Chapters: req.Chapters,
		VideoID:  req.VideoID,
	})
}

// isVideoTask reports whether a task reads a whole video in time order when
// one is named.
func isVideoTask(t domain.TaskType) bool {
	return t == domain.TaskTypeVideoSummary || t == domain.TaskTypeQuiz
}

// spreadEvenly keeps n candidates at even intervals, preserving order.
func spreadEvenly(cands []domain.Candidate, n int) []domain.Candidate {
	if n <= 0 || len(cands) <= n {
		return cands
	}
	out := make([]domain.Candidate, n)
	for i := range n {
		out[i] = cands[i*len(cands)/n]
	}
	return out
}
