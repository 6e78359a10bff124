package chat

import (
	"encoding/json"
	"log"
	"time"

	"github.com/pawpals/social-app/internal/metrics"
	"github.com/pawpals/social-app/internal/protocol"
	"github.com/pawpals/social-app/internal/ratelimit"
)

// handleChatMessage runs the chat delivery pipeline. The sender id comes from
// the authenticated connection, never from the payload. Persistence, live
// delivery, and the notification decision are independent steps: a failure in
// one is logged and the pipeline proceeds to the next.
func (s *Service) handleChatMessage(senderID string, p protocol.ChatPayload) {
	if p.To == "" {
		log.Printf("chat: dropping message from user=%s with no recipient", senderID)
		return
	}
	if err := ValidateText(p.Message); err != nil {
		log.Printf("chat: dropping message from user=%s: %v", senderID, err)
		return
	}

	if s.limiter != nil {
		ctx, cancel := gatewayContext()
		allowed, _ := s.limiter.Allow(ctx, senderID, ratelimit.RuleMessage)
		cancel()
		if !allowed {
			log.Printf("chat: rate limited user=%s, dropping message", senderID)
			return
		}
	}

	msg := &Message{
		From:      senderID,
		To:        p.To,
		Message:   p.Message,
		Timestamp: time.Now().UTC(),
	}

	// Durability does not depend on the recipient being online, so persist
	// before any delivery attempt. A persistence failure must not block the
	// live delivery attempt.
	ctx, cancel := gatewayContext()
	if err := s.store.Save(ctx, msg); err != nil {
		log.Printf("chat: persist message from=%s to=%s failed: %v", senderID, p.To, err)
	}
	cancel()

	frame, err := json.Marshal(msg)
	if err != nil {
		log.Printf("chat: marshal message from=%s failed: %v", senderID, err)
		return
	}

	if s.registry.Send(p.To, frame) {
		metrics.DeliveriesTotal.WithLabelValues("live").Inc()
	} else {
		metrics.DeliveriesTotal.WithLabelValues("offline").Inc()
	}

	// The push is suppressed only when the recipient is actively viewing the
	// chat with this exact sender. An online recipient looking at a different
	// screen gets both the live frame and the push.
	if s.presence.ActiveInChatWith(p.To, senderID) {
		metrics.NotificationsTotal.WithLabelValues("suppressed").Inc()
		return
	}

	s.notify(p.To, senderID, p.Message)
}

// notify sends the best-effort push for a message the recipient is not
// actively watching. The sender's display name is resolved through the
// profile gateway; on failure the raw user id is used instead.
func (s *Service) notify(recipientID, senderID, body string) {
	name := senderID
	ctx, cancel := gatewayContext()
	if resolved, err := s.profiles.DisplayName(ctx, senderID); err != nil {
		log.Printf("chat: resolve display name for user=%s failed: %v", senderID, err)
	} else if resolved != "" {
		name = resolved
	}
	cancel()

	ctx, cancel = gatewayContext()
	defer cancel()
	if err := s.notifier.PushMessage(ctx, recipientID, senderID, name, body); err != nil {
		log.Printf("chat: push to user=%s failed: %v", recipientID, err)
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}
