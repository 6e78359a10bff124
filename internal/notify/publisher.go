package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPush is the NATS subject the push worker fleet consumes.
const SubjectPush = "notify.push"

// Job is the push notification payload published to NATS. Tokens are
// attached here so the worker does not need Redis access.
type Job struct {
	RecipientID string   `json:"recipient_id"`
	SenderID    string   `json:"sender_id"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Tokens      []string `json:"tokens"`
	QueuedAt    int64    `json:"queued_at"`
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "pawpals-rtserver",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Publisher is the push notification gateway consumed by the delivery core.
// It resolves the recipient's device tokens and publishes a job to NATS;
// delivery to APNs/FCM happens out of process.
type Publisher struct {
	conn   *nats.Conn
	tokens *TokenStore
}

// NewPublisher connects to NATS with the given config and returns a ready
// Publisher. It returns an error if the initial connection fails.
func NewPublisher(config Config, tokens *TokenStore) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("notify: nats disconnected: %v", err)
			} else {
				log.Printf("notify: nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("notify: nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("notify: nats connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: nats connect: %w", err)
	}

	log.Printf("notify: connected to %s", nc.ConnectedUrl())

	return &Publisher{conn: nc, tokens: tokens}, nil
}

// PushMessage queues a chat message notification for the recipient. Users
// with no registered device tokens are skipped without error, since there
// is nothing to deliver to.
func (p *Publisher) PushMessage(ctx context.Context, recipientID, senderID, senderName, body string) error {
	tokens, err := p.tokens.TokensOf(ctx, recipientID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		log.Printf("notify: no device tokens for user=%s, skipping push", recipientID)
		return nil
	}

	job := Job{
		RecipientID: recipientID,
		SenderID:    senderID,
		Title:       "New message from " + senderName,
		Body:        body,
		Tokens:      tokens,
		QueuedAt:    time.Now().Unix(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("notify: marshal job: %w", err)
	}
	if err := p.conn.Publish(SubjectPush, data); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("notify: nats drain error: %v", err)
	}
	p.conn.Close()
}
