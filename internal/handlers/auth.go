package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sohana-dev/nammai-web/internal/services"
)

// principal extracts and verifies the request's bearer token. The token is
// read from the Authorization header, falling back to a "token" form value
// or query parameter for form posts and the SSE endpoint.
func (m *Main) principal(r *http.Request) (services.Principal, error) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	if token == "" {
		token = r.FormValue("token")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return services.Principal{}, errors.New("missing token")
	}
	return m.identity.Verify(r.Context(), token)
}

// HandleSignIn exchanges a verified bearer token for a loaded chat service:
// the user's persisted sessions are fetched, conversation handles rebuilt,
// and the most recent session activated (or a fresh one created).
func (m *Main) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal, err := m.principal(r)
	if err != nil {
		m.logger.Error("Sign-in rejected", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	svc := m.service(principal.UID)
	if err := svc.SignIn(r.Context(), principal.UID); err != nil {
		m.logger.Error("Failed to load sessions",
			slog.String("uid", principal.UID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"uid":         principal.UID,
		"email":       principal.Email,
		"displayName": principal.DisplayName,
		"photoURL":    principal.PhotoURL,
	}); err != nil {
		m.logger.Error("Failed to encode sign-in response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleSignOut clears the user's local session state. Persisted sessions
// stay in the document store and are reloaded on the next sign-in.
func (m *Main) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.authedService(w, r)
	if !ok {
		return
	}
	svc.SignOut()
	w.WriteHeader(http.StatusNoContent)
}
