package domain

import (
	"fmt"
	"time"
)

// TaskType identifies the user-facing feature a session belongs to.
type TaskType string

const (
	TaskTypeQA           TaskType = "qa"
	TaskTypeTextSummary  TaskType = "text_summary"
	TaskTypeVideoSummary TaskType = "video_summary"
	TaskTypeQuiz         TaskType = "quiz"
)

// IsValidTaskType checks if a TaskType is valid
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeQA, TaskTypeTextSummary, TaskTypeVideoSummary, TaskTypeQuiz:
		return true
	}
	return false
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session groups the ordered messages of one conversation thread.
type Session struct {
	ID        string
	TaskType  TaskType
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceReference resolves an inline citation marker to the chunk it cites.
type SourceReference struct {
	Index      int     `json:"index"`
	ChunkID    string  `json:"chunk_id"`
	VideoID    string  `json:"video_id"`
	Chapter    string  `json:"chapter"`
	VideoTitle string  `json:"video_title"`
	VideoURL   string  `json:"video_url"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text,omitempty"`
	Score      float64 `json:"score"`
}

// Message is one turn of a session. Messages are append-only.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Sources   []SourceReference
	CreatedAt time.Time
}

const sessionTitleMaxRunes = 100

// SessionTitle derives a session title from the first query.
func SessionTitle(query string) string {
	r := []rune(query)
	if len(r) > sessionTitleMaxRunes {
		r = r[:sessionTitleMaxRunes]
	}
	return string(r)
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if m.SessionID == "" {
		return fmt.Errorf("message SessionID is required")
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return ErrInvalidRole
	}
	if m.Role == RoleUser && len(m.Sources) > 0 {
		return fmt.Errorf("user messages cannot carry sources")
	}
	return nil
}
