package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository appends chat messages. There is no update path.
type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx pgx.Tx) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	sources := m.Sources
	if sources == nil {
		sources = []domain.SourceReference{}
	}
	payload, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, m.Role, m.Content, payload, m.CreatedAt,
	)
	return err
}

// ListBySession returns a session's messages in the order they were appended.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, session_id::text, role, content, sources, created_at
		 FROM chat_messages
		 WHERE session_id::text = $1
		 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		var payload []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &m.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources of message %s: %w", m.ID, err)
			}
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
