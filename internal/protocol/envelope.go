// Package protocol defines the WebSocket wire format exchanged with clients.
// Every inbound message is an envelope carrying an event tag and an opaque
// payload; outbound frames are flat JSON objects with a fixed "event" field.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event tags. Any tag other than presence_update, including an
// absent or empty one, is treated as a chat message. Older app builds send
// chat messages with no event field at all, so the fallthrough is a
// compatibility rule, not an error.
const (
	EventPresenceUpdate = "presence_update"
	EventChatMessage    = "chat_message"
)

// Server -> client event tags.
const (
	EventFriendStatusUpdate = "friend_status_update"
	EventPeerPresence       = "peer_presence"
)

// Presence status values carried by a presence_update payload.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Envelope is the outer wrapper of every inbound message. The payload is kept
// raw so the router can defer decoding until the event branch is known.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses raw frame bytes into an Envelope. A missing event tag
// is not an error; IsPresenceUpdate resolves the branch.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: failed to decode envelope: %w", err)
	}
	return env, nil
}

// IsPresenceUpdate reports whether the envelope routes to the presence
// broadcast pipeline. Everything else routes to chat delivery.
func (e Envelope) IsPresenceUpdate() bool {
	return e.Event == EventPresenceUpdate
}

// ChatPayload is the payload of a chat message envelope. The sender is never
// read from the payload; it always comes from the authenticated connection.
type ChatPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// PresencePayload is the payload of a presence_update envelope. ChatWith is
// only meaningful when Status is "active".
type PresencePayload struct {
	Status   string `json:"status"`
	ChatWith string `json:"chatWith"`
}

// DecodeChatPayload decodes the payload of a chat message envelope. An
// envelope with no payload object at all is malformed.
func (e Envelope) DecodeChatPayload() (ChatPayload, error) {
	if len(e.Payload) == 0 {
		return ChatPayload{}, fmt.Errorf("protocol: chat message has no payload")
	}
	var p ChatPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ChatPayload{}, fmt.Errorf("protocol: failed to decode chat payload: %w", err)
	}
	return p, nil
}

// DecodePresencePayload decodes the payload of a presence_update envelope.
func (e Envelope) DecodePresencePayload() (PresencePayload, error) {
	if len(e.Payload) == 0 {
		return PresencePayload{}, fmt.Errorf("protocol: presence_update has no payload")
	}
	var p PresencePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return PresencePayload{}, fmt.Errorf("protocol: failed to decode presence payload: %w", err)
	}
	return p, nil
}

// FriendStatusUpdate is broadcast to each connected friend when a user's
// presence changes. ChatWith is null unless the user is active in a chat.
type FriendStatusUpdate struct {
	Event    string  `json:"event"`
	UserID   string  `json:"userId"`
	IsActive bool    `json:"isActive"`
	ChatWith *string `json:"chatWith"`
}

// PeerPresence is the one-off snapshot sent back to a user who just went
// active in a chat, reflecting whether the peer is simultaneously active in a
// chat with them.
type PeerPresence struct {
	Event    string  `json:"event"`
	UserID   string  `json:"userId"`
	IsActive bool    `json:"isActive"`
	ChatWith *string `json:"chatWith"`
}

// NewFriendStatusUpdate builds the broadcast frame for a presence change.
// chatWith may be empty, which serializes as null.
func NewFriendStatusUpdate(userID string, isActive bool, chatWith string) ([]byte, error) {
	frame := FriendStatusUpdate{
		Event:    EventFriendStatusUpdate,
		UserID:   userID,
		IsActive: isActive,
		ChatWith: optional(chatWith),
	}
	out, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal friend_status_update: %w", err)
	}
	return out, nil
}

// NewPeerPresence builds the peer snapshot frame. peerID is the peer whose
// state is being reported; chatWith is empty unless the peer is active with
// the requesting user.
func NewPeerPresence(peerID string, isActive bool, chatWith string) ([]byte, error) {
	frame := PeerPresence{
		Event:    EventPeerPresence,
		UserID:   peerID,
		IsActive: isActive,
		ChatWith: optional(chatWith),
	}
	out, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal peer_presence: %w", err)
	}
	return out, nil
}

// optional maps the empty string to a JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
