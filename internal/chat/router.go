package chat

import (
	"log"

	"github.com/pawpals/social-app/internal/metrics"
	"github.com/pawpals/social-app/internal/protocol"
)

// HandleFrame routes one decoded-from-the-wire frame from an authenticated
// connection. Exactly two branches exist: presence_update goes to the
// presence broadcast pipeline, everything else goes to chat delivery. Decode
// failures are logged and the frame is dropped; a bad frame never terminates
// the connection and is never retried.
func (s *Service) HandleFrame(userID string, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		log.Printf("chat: dropping malformed frame from user=%s: %v", userID, err)
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return
	}

	if env.IsPresenceUpdate() {
		p, err := env.DecodePresencePayload()
		if err != nil {
			log.Printf("chat: dropping malformed presence_update from user=%s: %v", userID, err)
			metrics.FramesTotal.WithLabelValues("malformed").Inc()
			return
		}
		metrics.FramesTotal.WithLabelValues("presence").Inc()
		s.handlePresenceUpdate(userID, p)
		return
	}

	p, err := env.DecodeChatPayload()
	if err != nil {
		log.Printf("chat: dropping malformed chat message from user=%s: %v", userID, err)
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return
	}
	metrics.FramesTotal.WithLabelValues("chat").Inc()
	s.handleChatMessage(userID, p)
}
