package chat

import (
	"log"

	"github.com/pawpals/social-app/internal/registry"
)

// HandleOpen runs the Handshaking -> Open transition for an authenticated
// connection. Registry insertion and presence-record creation happen under
// the session mutex, so no schedule can observe one without the other. If
// the user already had a registered connection, the old handle is
// force-closed after the lock is released: its close callback hits the
// guarded unregister, finds itself stale, and cannot disturb the new
// session's registry entry or presence record.
func (s *Service) HandleOpen(userID string, conn registry.Conn) {
	s.sessionMu.Lock()
	prev := s.registry.Register(userID, conn)
	s.presence.Connect(userID)
	s.sessionMu.Unlock()

	if prev != nil {
		log.Printf("chat: user=%s reconnected, closing previous connection", userID)
		_ = prev.Close()
	}
}

// HandleClose runs the Open -> Closed transition: guarded unregister,
// presence teardown, and the "user went offline" broadcast so friends' UIs
// converge. The guarded unregister decides the whole transition under the
// session mutex, so a close racing a reconnect either wins before the new
// registration exists or is a no-op; it can never tear down the new
// session's presence record. Idempotent: a second close for the same
// connection is a no-op. The broadcast runs outside the lock because it
// performs gateway I/O.
func (s *Service) HandleClose(userID string, conn registry.Conn) {
	s.sessionMu.Lock()
	removed := s.registry.Unregister(userID, conn)
	if removed {
		s.presence.Disconnect(userID)
	}
	s.sessionMu.Unlock()

	if !removed {
		return
	}
	s.broadcastStatus(userID, false, "")
}
