package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Decoding a presence_update envelope
// ---------------------------------------------------------------------------

func TestDecodeEnvelope_PresenceUpdate(t *testing.T) {
	input := []byte(`{"event":"presence_update","payload":{"status":"active","chatWith":"user-v"}}`)

	env, err := DecodeEnvelope(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !env.IsPresenceUpdate() {
		t.Fatal("expected presence_update branch")
	}

	p, err := env.DecodePresencePayload()
	if err != nil {
		t.Fatalf("DecodePresencePayload() error: %v", err)
	}
	if p.Status != StatusActive {
		t.Errorf("expected status %q, got %q", StatusActive, p.Status)
	}
	if p.ChatWith != "user-v" {
		t.Errorf("expected chatWith %q, got %q", "user-v", p.ChatWith)
	}
}

// ---------------------------------------------------------------------------
// Test: Chat branch resolution, including the compatibility fallthrough
// ---------------------------------------------------------------------------

func TestDecodeEnvelope_ChatBranch(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"explicit tag", `{"event":"chat_message","payload":{"to":"user-v","message":"hi"}}`},
		{"unknown tag", `{"event":"typing_indicator","payload":{"to":"user-v","message":"hi"}}`},
		{"missing tag", `{"payload":{"to":"user-v","message":"hi"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.IsPresenceUpdate() {
				t.Fatal("expected chat branch, got presence_update")
			}

			p, err := env.DecodeChatPayload()
			if err != nil {
				t.Fatalf("DecodeChatPayload() error: %v", err)
			}
			if p.To != "user-v" {
				t.Errorf("expected to %q, got %q", "user-v", p.To)
			}
			if p.Message != "hi" {
				t.Errorf("expected message %q, got %q", "hi", p.Message)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Test: Malformed input
// ---------------------------------------------------------------------------

func TestDecodeEnvelope_MalformedJSON(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{"event":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"presence_update","payload":"not-an-object"}`))
	if err != nil {
		t.Fatalf("unexpected envelope error: %v", err)
	}
	if _, err := env.DecodePresencePayload(); err == nil {
		t.Fatal("expected error for non-object presence payload")
	}

	env = Envelope{Event: "chat_message"}
	if _, err := env.DecodeChatPayload(); err == nil {
		t.Fatal("expected error for absent chat payload")
	}
}

// ---------------------------------------------------------------------------
// Test: Outbound frame shapes
// ---------------------------------------------------------------------------

func TestNewFriendStatusUpdate_NullChatWith(t *testing.T) {
	out, err := NewFriendStatusUpdate("user-u", false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// chatWith must serialize as an explicit null when absent.
	if !strings.Contains(string(out), `"chatWith":null`) {
		t.Errorf("expected explicit null chatWith, got %s", out)
	}

	var frame FriendStatusUpdate
	if err := json.Unmarshal(out, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Event != EventFriendStatusUpdate {
		t.Errorf("expected event %q, got %q", EventFriendStatusUpdate, frame.Event)
	}
	if frame.UserID != "user-u" || frame.IsActive || frame.ChatWith != nil {
		t.Errorf("unexpected frame contents: %+v", frame)
	}
}

func TestNewPeerPresence_ActivePeer(t *testing.T) {
	out, err := NewPeerPresence("user-v", true, "user-u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var frame PeerPresence
	if err := json.Unmarshal(out, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Event != EventPeerPresence {
		t.Errorf("expected event %q, got %q", EventPeerPresence, frame.Event)
	}
	if frame.UserID != "user-v" {
		t.Errorf("expected userId %q, got %q", "user-v", frame.UserID)
	}
	if !frame.IsActive {
		t.Error("expected isActive=true")
	}
	if frame.ChatWith == nil || *frame.ChatWith != "user-u" {
		t.Errorf("expected chatWith echo %q, got %v", "user-u", frame.ChatWith)
	}
}
