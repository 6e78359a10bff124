package message

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// TokenResolver matches the transport's resolver; the history endpoint
// authenticates with the same bearer tokens as the WebSocket handshake.
type TokenResolver interface {
	Resolve(token string) (string, error)
}

// HistoryHandler serves GET /api/chat/history/{friendId}?page=&size=,
// returning one page of the authenticated caller's conversation with
// friendId, newest first.
func HistoryHandler(store *Store, resolver TokenResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authenticate(w, r, resolver)
		if !ok {
			return
		}

		friendID := strings.TrimPrefix(r.URL.Path, "/api/chat/history/")
		if friendID == "" || strings.Contains(friendID, "/") {
			http.Error(w, "missing friend id", http.StatusBadRequest)
			return
		}

		page := queryInt(r, "page", 0)
		size := queryInt(r, "size", defaultPageSize)
		if size < 1 || size > maxPageSize {
			size = defaultPageSize
		}
		if page < 0 {
			page = 0
		}

		messages, err := store.Conversation(r.Context(), userID, friendID, page, size)
		if err != nil {
			log.Printf("message: history query user=%s friend=%s failed: %v", userID, friendID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messages)
	})
}

// authenticate resolves the Authorization bearer token, writing a 401 on
// failure.
func authenticate(w http.ResponseWriter, r *http.Request, resolver TokenResolver) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return "", false
	}

	userID, err := resolver.Resolve(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
