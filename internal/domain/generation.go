package domain

// GenerationState is the per-request state of the generation pipeline.
type GenerationState string

const (
	StatePending    GenerationState = "PENDING"
	StateRetrieving GenerationState = "RETRIEVING"
	StateReranking  GenerationState = "RERANKING"
	StatePrompting  GenerationState = "PROMPTING"
	StateStreaming  GenerationState = "STREAMING"
	StateDone       GenerationState = "DONE"
	StateFailed     GenerationState = "FAILED"
)

var nextStates = map[GenerationState]GenerationState{
	StatePending:    StateRetrieving,
	StateRetrieving: StateReranking,
	StateReranking:  StatePrompting,
	StatePrompting:  StateStreaming,
	StateStreaming:  StateDone,
}

// IsTerminal reports whether no further transitions are allowed.
func (s GenerationState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether s may move to next. Every non-terminal state
// may fail; otherwise the only move is to the following stage.
func (s GenerationState) CanTransition(next GenerationState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return nextStates[s] == next
}

// EventType discriminates stream events delivered to the transport.
type EventType string

const (
	EventToken   EventType = "token"
	EventSources EventType = "sources"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one item of a generation stream.
type Event struct {
	Type      EventType
	Token     string
	Sources   []SourceReference
	Content   string
	SessionID string
	MessageID string
	Error     string
}
