package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestConnectDisconnectLifecycle(t *testing.T) {
	s := NewStore()

	if s.Connected("u1") {
		t.Fatal("no record expected before connect")
	}

	s.Connect("u1")
	rec, ok := s.Get("u1")
	if !ok {
		t.Fatal("expected record after connect")
	}
	if rec.ActiveInChat || rec.ActiveChatWith != "" {
		t.Fatalf("new record must default to inactive, got %+v", rec)
	}

	s.Disconnect("u1")
	if s.Connected("u1") {
		t.Fatal("record must not outlive the connection")
	}
}

func TestSetActivity(t *testing.T) {
	s := NewStore()
	s.Connect("u1")

	s.SetActivity("u1", true, "u2")
	rec, _ := s.Get("u1")
	if !rec.ActiveInChat || rec.ActiveChatWith != "u2" {
		t.Fatalf("expected active with u2, got %+v", rec)
	}

	// Going inactive clears the chat partner even if one was supplied.
	s.SetActivity("u1", false, "u2")
	rec, _ = s.Get("u1")
	if rec.ActiveInChat {
		t.Fatal("expected inactive")
	}
	if rec.ActiveChatWith != "" {
		t.Fatalf("activeChatWith must be cleared on deactivation, got %q", rec.ActiveChatWith)
	}
}

func TestSetActivity_UnknownUserIsDropped(t *testing.T) {
	s := NewStore()

	s.SetActivity("ghost", true, "u2")
	if s.Connected("ghost") {
		t.Fatal("activity update must not create a record for a disconnected user")
	}
}

func TestConnect_ResetsStateOnReconnect(t *testing.T) {
	s := NewStore()
	s.Connect("u1")
	s.SetActivity("u1", true, "u2")

	s.Connect("u1")
	rec, _ := s.Get("u1")
	if rec.ActiveInChat || rec.ActiveChatWith != "" {
		t.Fatalf("reconnect must reset to the default state, got %+v", rec)
	}
}

func TestActiveInChatWith(t *testing.T) {
	s := NewStore()
	s.Connect("recipient")

	cases := []struct {
		name     string
		active   bool
		chatWith string
		sender   string
		want     bool
	}{
		{"active with sender", true, "sender", "sender", true},
		{"active with someone else", true, "other", "sender", false},
		{"inactive", false, "", "sender", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.SetActivity("recipient", tc.active, tc.chatWith)
			if got := s.ActiveInChatWith("recipient", tc.sender); got != tc.want {
				t.Errorf("ActiveInChatWith() = %v, want %v", got, tc.want)
			}
		})
	}

	if s.ActiveInChatWith("never-connected", "sender") {
		t.Error("no record must mean not active")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%8)
			s.Connect(user)
			s.SetActivity(user, true, "peer")
			s.ActiveInChatWith(user, "peer")
			s.Get(user)
			s.Disconnect(user)
		}(i)
	}
	wg.Wait()
}
