// Package chat implements the presence-aware message delivery core: the
// per-connection session lifecycle, the inbound frame router, the chat
// delivery pipeline (persist, attempt live delivery, else push), and the
// presence broadcast pipeline. External collaborators such as persistence,
// the friend directory, profiles, and push are reached only through the
// narrow gateway interfaces defined here.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pawpals/social-app/internal/presence"
	"github.com/pawpals/social-app/internal/ratelimit"
	"github.com/pawpals/social-app/internal/registry"
)

// gatewayTimeout bounds every collaborator call so a slow gateway cannot
// stall a connection handler.
const gatewayTimeout = 3 * time.Second

// Message is the persisted chat message shape. From is always overwritten
// server-side with the authenticated sender; ID and Timestamp are assigned by
// the server, never by the client.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageStore durably stores chat messages. Save assigns the message ID.
type MessageStore interface {
	Save(ctx context.Context, msg *Message) error
}

// FriendDirectory resolves a user's friend ids.
type FriendDirectory interface {
	FriendsOf(ctx context.Context, userID string) ([]string, error)
}

// ProfileDirectory resolves display names for notification titles.
type ProfileDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Notifier delivers a best-effort push notification about a chat message.
type Notifier interface {
	PushMessage(ctx context.Context, recipientID, senderID, senderName, body string) error
}

// Service owns all mutations of the connection registry and presence store
// and runs the two message pipelines. One Service instance is shared by every
// connection handler; all state it touches is internally synchronized. The
// session mutex serializes the open and close transitions so the registry
// entry and the presence record for a user are created and destroyed as a
// unit; it is never held across gateway I/O.
type Service struct {
	registry  *registry.Registry
	presence  *presence.Store
	store     MessageStore
	friends   FriendDirectory
	profiles  ProfileDirectory
	notifier  Notifier
	limiter   *ratelimit.Limiter
	sessionMu sync.Mutex
}

// NewService wires the delivery core to its shared state and gateways.
func NewService(
	reg *registry.Registry,
	pres *presence.Store,
	store MessageStore,
	friends FriendDirectory,
	profiles ProfileDirectory,
	notifier Notifier,
) *Service {
	return &Service{
		registry: reg,
		presence: pres,
		store:    store,
		friends:  friends,
		profiles: profiles,
		notifier: notifier,
	}
}

// SetLimiter enables per-sender message rate limiting. Without a limiter all
// messages are accepted.
func (s *Service) SetLimiter(l *ratelimit.Limiter) {
	s.limiter = l
}

// gatewayContext returns a bounded context for a single collaborator call.
func gatewayContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), gatewayTimeout)
}
