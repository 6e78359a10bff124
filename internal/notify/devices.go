package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// TokenResolver matches the transport's resolver; device registration uses
// the same bearer tokens as the WebSocket handshake.
type TokenResolver interface {
	Resolve(token string) (string, error)
}

type deviceRequest struct {
	DeviceToken string `json:"deviceToken"`
}

// DeviceHandler serves the device token endpoint: POST registers a token for
// the authenticated user, DELETE removes one.
func DeviceHandler(store *TokenStore, resolver TokenResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		auth := r.Header.Get("Authorization")
		bearer, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || bearer == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		userID, err := resolver.Resolve(bearer)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var req deviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceToken == "" {
			http.Error(w, "missing deviceToken", http.StatusBadRequest)
			return
		}

		if r.Method == http.MethodPost {
			err = store.Register(r.Context(), userID, req.DeviceToken)
		} else {
			err = store.Remove(r.Context(), userID, req.DeviceToken)
		}
		if err != nil {
			log.Printf("notify: device token update for user=%s failed: %v", userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
