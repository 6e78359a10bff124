// Package friend provides PostgreSQL-backed access to the friend graph and
// profile display names. The real-time core consumes it read-only through
// its gateway interfaces; the mutation methods serve the social-graph REST
// surface.
package friend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Errors surfaced by friend graph mutations.
var (
	ErrSelfFriend     = errors.New("friend: cannot add yourself as a friend")
	ErrAlreadyFriends = errors.New("friend: already friends")
	ErrNotFriends     = errors.New("friend: not friends")
)

// Store manages friendships and profiles in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a friend store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FriendsOf returns the ids of all friends of userID.
func (s *Store) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT friend_id FROM friendships WHERE user_id = $1`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("friend: friends query: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("friend: scan row: %w", err)
		}
		friends = append(friends, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("friend: iterate rows: %w", err)
	}
	return friends, nil
}

// DisplayName returns the profile display name for userID, or the empty
// string if no profile row exists.
func (s *Store) DisplayName(ctx context.Context, userID string) (string, error) {
	const query = `SELECT display_name FROM profiles WHERE id = $1`

	var name string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("friend: display name query: %w", err)
	}
	return name, nil
}

// AddFriend creates the symmetric friendship between two users. Adding
// yourself or an existing friend is rejected.
func (s *Store) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return ErrSelfFriend
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("friend: begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	res, err := tx.ExecContext(ctx, insert, userID, friendID)
	if err != nil {
		return fmt.Errorf("friend: insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyFriends
	}
	if _, err := tx.ExecContext(ctx, insert, friendID, userID); err != nil {
		return fmt.Errorf("friend: insert reverse: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("friend: commit: %w", err)
	}
	return nil
}

// RemoveFriend deletes the symmetric friendship between two users.
func (s *Store) RemoveFriend(ctx context.Context, userID, friendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("friend: begin tx: %w", err)
	}
	defer tx.Rollback()

	const del = `DELETE FROM friendships WHERE user_id = $1 AND friend_id = $2`

	res, err := tx.ExecContext(ctx, del, userID, friendID)
	if err != nil {
		return fmt.Errorf("friend: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFriends
	}
	if _, err := tx.ExecContext(ctx, del, friendID, userID); err != nil {
		return fmt.Errorf("friend: delete reverse: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("friend: commit: %w", err)
	}
	return nil
}
