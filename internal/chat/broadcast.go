package chat

import (
	"log"

	"github.com/pawpals/social-app/internal/metrics"
	"github.com/pawpals/social-app/internal/protocol"
)

// handlePresenceUpdate runs the presence broadcast pipeline: update the
// sender's record, fan the change out to connected friends, and answer the
// sender with a one-off snapshot of the peer they just opened a chat with.
func (s *Service) handlePresenceUpdate(userID string, p protocol.PresencePayload) {
	isActive := p.Status == protocol.StatusActive
	chatWith := p.ChatWith
	if !isActive {
		chatWith = ""
	}

	s.presence.SetActivity(userID, isActive, chatWith)
	s.broadcastStatus(userID, isActive, chatWith)

	if isActive && chatWith != "" {
		s.sendPeerSnapshot(userID, chatWith)
	}
}

// broadcastStatus sends a friend_status_update frame to every currently
// connected friend of userID. Friends without a connection are silently
// skipped; a friend lookup failure is logged and the broadcast is abandoned
// without touching the connection that triggered it.
func (s *Service) broadcastStatus(userID string, isActive bool, chatWith string) {
	ctx, cancel := gatewayContext()
	friends, err := s.friends.FriendsOf(ctx, userID)
	cancel()
	if err != nil {
		log.Printf("chat: friend lookup for user=%s failed: %v", userID, err)
		return
	}

	frame, err := protocol.NewFriendStatusUpdate(userID, isActive, chatWith)
	if err != nil {
		log.Printf("chat: build friend_status_update for user=%s failed: %v", userID, err)
		return
	}

	reached := 0
	for _, friendID := range friends {
		if s.registry.Send(friendID, frame) {
			reached++
		}
	}
	metrics.BroadcastFanout.Observe(float64(reached))
}

// sendPeerSnapshot answers a user who just went active in a chat with the
// peer's current state, so the chat screen learns immediately whether the
// other party is already there instead of waiting for the next broadcast.
// The peer's chatWith is echoed back only when the peer is active in the chat
// with this user.
func (s *Service) sendPeerSnapshot(userID, peerID string) {
	rec, ok := s.presence.Get(peerID)
	peerInThisChat := ok && rec.ActiveInChat && rec.ActiveChatWith == userID

	echo := ""
	if peerInThisChat {
		echo = userID
	}

	frame, err := protocol.NewPeerPresence(peerID, peerInThisChat, echo)
	if err != nil {
		log.Printf("chat: build peer_presence for user=%s failed: %v", userID, err)
		return
	}
	s.registry.Send(userID, frame)
}
