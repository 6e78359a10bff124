// Package presence tracks fine-grained "is this user actively watching chat X"
// state for every connected user. Records live exactly as long as the user's
// connection registration: created on connect, destroyed on disconnect, and
// mutated only by presence updates arriving on that user's own connection.
package presence

import "sync"

// Record is the presence state of one connected user. ActiveChatWith is only
// meaningful while ActiveInChat is true and is cleared whenever ActiveInChat
// transitions to false.
type Record struct {
	UserID         string
	ActiveInChat   bool
	ActiveChatWith string
}

// Store is a concurrency-safe user id -> presence record map. Last-write-wins
// races between concurrent updates are acceptable; the presence protocol is
// eventually consistent and the next broadcast corrects stale snapshots.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore creates an empty presence store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Connect creates the default-inactive record for a user whose connection was
// just registered. An existing record (reconnect) is reset to inactive.
func (s *Store) Connect(userID string) {
	s.mu.Lock()
	s.records[userID] = Record{UserID: userID}
	s.mu.Unlock()
}

// Disconnect removes the user's record entirely.
func (s *Store) Disconnect(userID string) {
	s.mu.Lock()
	delete(s.records, userID)
	s.mu.Unlock()
}

// SetActivity updates a connected user's chat-screen state. When active is
// false, chatWith is cleared regardless of the argument. Updates for users
// with no record (not connected) are dropped.
func (s *Store) SetActivity(userID string, active bool, chatWith string) {
	if !active {
		chatWith = ""
	}

	s.mu.Lock()
	if rec, ok := s.records[userID]; ok {
		rec.ActiveInChat = active
		rec.ActiveChatWith = chatWith
		s.records[userID] = rec
	}
	s.mu.Unlock()
}

// Get returns a copy of the user's presence record.
func (s *Store) Get(userID string) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.records[userID]
	s.mu.RUnlock()
	return rec, ok
}

// Connected reports whether the user currently has a presence record, i.e. a
// live connection.
func (s *Store) Connected(userID string) bool {
	s.mu.RLock()
	_, ok := s.records[userID]
	s.mu.RUnlock()
	return ok
}

// ActiveInChatWith reports whether recipientID is actively viewing the chat
// screen with senderID. This is the core predicate for deciding whether a
// push notification can be suppressed: it holds only when the recipient has a
// record, is active in a chat, and that chat is with the sender.
func (s *Store) ActiveInChatWith(recipientID, senderID string) bool {
	s.mu.RLock()
	rec, ok := s.records[recipientID]
	s.mu.RUnlock()
	return ok && rec.ActiveInChat && rec.ActiveChatWith == senderID
}

// Count returns the number of connected users with a presence record.
func (s *Store) Count() int {
	s.mu.RLock()
	n := len(s.records)
	s.mu.RUnlock()
	return n
}
