package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sohana-dev/nammai-web/internal/chat"
	"github.com/sohana-dev/nammai-web/internal/handlers"
	"github.com/sohana-dev/nammai-web/internal/services"
)

type mockIdentity struct {
	principals map[string]services.Principal
}

type mockTransport struct {
	responses []string
	err       error
}

func newTestMain(t *testing.T, transport *mockTransport) *handlers.Main {
	t.Helper()

	identity := mockIdentity{principals: map[string]services.Principal{
		"valid-token": {UID: "user-1", DisplayName: "Sohan"},
		"other-token": {UID: "user-2"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	main, err := handlers.NewMain(identity, transport, nil, logger)
	if err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}
	return main
}

// signIn loads a chat service for the token's user.
func signIn(t *testing.T, main *handlers.Main, token string) {
	t.Helper()

	form := url.Values{"token": {token}}
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	main.HandleSignIn(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("HandleSignIn() status = %v, want %v", w.Code, http.StatusOK)
	}
}

// chatForm builds the multipart body HandleChats expects.
func chatForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestNewMain(t *testing.T) {
	main := newTestMain(t, &mockTransport{})

	if main.Shutdown(context.Background()) != nil {
		t.Error("Shutdown() should not return error")
	}
}

func TestHandleHome(t *testing.T) {
	main := newTestMain(t, &mockTransport{})
	signIn(t, main, "valid-token")

	tests := []struct {
		name     string
		token    string
		wantBody string
	}{
		{
			name:     "Unauthenticated gets login page",
			token:    "",
			wantBody: "Sign in to save your chats",
		},
		{
			name:     "Valid token without sign-in gets login page",
			token:    "other-token",
			wantBody: "Sign in to save your chats",
		},
		{
			name:     "Signed-in user gets chat page",
			token:    "valid-token",
			wantBody: "Hosa Chat", // default-language title of the seeded session
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			main.HandleHome(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("HandleHome() status = %v, want %v", w.Code, http.StatusOK)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("HandleHome() body = %v, want to contain %v", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandleSignIn(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		token      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			token:      "valid-token",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Unknown token",
			method:     http.MethodPost,
			token:      "bogus",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Valid token",
			method:     http.MethodPost,
			token:      "valid-token",
			wantStatus: http.StatusOK,
			wantBody:   "user-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main := newTestMain(t, &mockTransport{})

			form := url.Values{"token": {tt.token}}
			req := httptest.NewRequest(tt.method, "/auth/signin", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			main.HandleSignIn(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleSignIn() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("HandleSignIn() body = %v, want to contain %v", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandleChats(t *testing.T) {
	main := newTestMain(t, &mockTransport{responses: []string{"AI response"}})
	signIn(t, main, "valid-token")

	tests := []struct {
		name       string
		method     string
		token      string
		message    string
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			token:      "valid-token",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Missing token",
			method:     http.MethodPost,
			message:    "Hello",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Not signed in",
			method:     http.MethodPost,
			token:      "other-token",
			message:    "Hello",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			token:      "valid-token",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Valid message",
			method:     http.MethodPost,
			token:      "valid-token",
			message:    "Hello",
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := chatForm(t, map[string]string{"message": tt.message})
			req := httptest.NewRequest(tt.method, "/chats", body)
			req.Header.Set("Content-Type", contentType)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			main.HandleChats(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChats() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleChatsRejectsNonImageAttachment(t *testing.T) {
	main := newTestMain(t, &mockTransport{})
	signIn(t, main, "valid-token")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("plain text")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/chats", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	main.HandleChats(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("HandleChats() status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestHandleNewChat(t *testing.T) {
	main := newTestMain(t, &mockTransport{})
	signIn(t, main, "valid-token")

	tests := []struct {
		name       string
		method     string
		token      string
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			token:      "valid-token",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Missing token",
			method:     http.MethodPost,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Signed in",
			method:     http.MethodPost,
			token:      "valid-token",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/chats/new", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			main.HandleNewChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleNewChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleSelectAndDeleteChat(t *testing.T) {
	main := newTestMain(t, &mockTransport{})
	signIn(t, main, "valid-token")

	tests := []struct {
		name       string
		handler    func(http.ResponseWriter, *http.Request)
		chatID     string
		wantStatus int
	}{
		{
			name:       "Select without chat_id",
			handler:    main.HandleSelectChat,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Select unknown chat",
			handler:    main.HandleSelectChat,
			chatID:     "missing",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Delete without chat_id",
			handler:    main.HandleDeleteChat,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Delete unknown chat",
			handler:    main.HandleDeleteChat,
			chatID:     "missing",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.chatID != "" {
				form.Set("chat_id", tt.chatID)
			}
			req := httptest.NewRequest(http.MethodPost, "/chats/select", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Authorization", "Bearer valid-token")
			w := httptest.NewRecorder()

			tt.handler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleLanguage(t *testing.T) {
	main := newTestMain(t, &mockTransport{})
	signIn(t, main, "valid-token")

	tests := []struct {
		name       string
		language   string
		wantStatus int
	}{
		{
			name:       "Switch to english",
			language:   "english",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Unknown language",
			language:   "klingon",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"language": {tt.language}}
			req := httptest.NewRequest(http.MethodPost, "/language", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Authorization", "Bearer valid-token")
			w := httptest.NewRecorder()

			main.HandleLanguage(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleLanguage() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleSignOut(t *testing.T) {
	main := newTestMain(t, &mockTransport{})
	signIn(t, main, "valid-token")

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	main.HandleSignOut(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("HandleSignOut() status = %v, want %v", w.Code, http.StatusNoContent)
	}
}

func (m mockIdentity) Verify(_ context.Context, token string) (services.Principal, error) {
	principal, ok := m.principals[token]
	if !ok {
		return services.Principal{}, errors.New("invalid token")
	}
	return principal, nil
}

func (m *mockTransport) CreateConversation(_ context.Context, _ string) (chat.Conversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return mockConversation{responses: m.responses}, nil
}

type mockConversation struct {
	responses []string
}

func (c mockConversation) StreamSend(_ context.Context, _ []chat.Part) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, resp := range c.responses {
			if !yield(resp, nil) {
				return
			}
		}
	}
}
