package identity

import (
	"testing"
	"time"
)

func TestResolve_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign(secret, "user-42", time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	userID, err := NewResolver(secret).Resolve(token)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected user-42, got %q", userID)
	}
}

func TestResolve_Rejections(t *testing.T) {
	secret := []byte("test-secret")

	expired, err := Sign(secret, "user-42", -time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	wrongKey, err := Sign([]byte("other-secret"), "user-42", time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	noSubject, err := Sign(secret, "", time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"expired", expired},
		{"wrong key", wrongKey},
		{"no subject", noSubject},
	}

	r := NewResolver(secret)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Resolve(tc.token); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}
