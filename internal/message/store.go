// Package message provides PostgreSQL-backed storage for chat messages and
// the paginated conversation history endpoint. The stored shape is the one
// the delivery core hands over: server-assigned id and timestamp, sender
// taken from the authenticated connection.
package message

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pawpals/social-app/internal/chat"
)

// Store manages chat messages in PostgreSQL. It implements the delivery
// core's MessageStore gateway.
type Store struct {
	db *sql.DB
}

// NewStore creates a message store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts a message and assigns its id. The timestamp is expected to
// have been stamped by the caller at receipt time.
func (s *Store) Save(ctx context.Context, msg *chat.Message) error {
	msg.ID = uuid.New().String()

	const query = `
		INSERT INTO messages (id, sender_id, recipient_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.From, msg.To, msg.Message, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("message: insert: %w", err)
	}
	return nil
}

// Conversation returns one page of the conversation between two users,
// newest first.
func (s *Store) Conversation(ctx context.Context, userID, friendID string, page, size int) ([]chat.Message, error) {
	const query = `
		SELECT id, sender_id, recipient_id, body, sent_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY sent_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := s.db.QueryContext(ctx, query, userID, friendID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("message: conversation query: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, size)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Message, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("message: scan row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message: iterate rows: %w", err)
	}
	return messages, nil
}
