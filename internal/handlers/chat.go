package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sohana-dev/nammai-web/internal/chat"
	"github.com/sohana-dev/nammai-web/internal/models"
	"github.com/tmaxmax/go-sse"
)

type chatView struct {
	ID    string
	Title string

	Active bool
}

// maxAttachmentSize caps uploaded images at 5 MiB.
const maxAttachmentSize = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// HandleChats accepts user messages through multipart form data and starts
// the streaming reconciliation for the active session. The form carries a
// "message" field, an optional "mode" field (chat, slides, code), and an
// optional "file" image attachment. The streamed response and all session
// updates reach the client over SSE; the handler itself returns as soon as
// the send is admitted.
func (m *Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal, err := m.principal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	svc, ok := m.lookupService(principal.UID)
	if !ok {
		http.Error(w, "Sign in first", http.StatusConflict)
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentSize + 1<<20); err != nil {
		m.logger.Error("Failed to parse form", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	msg := r.FormValue("message")
	filePart, err := m.attachment(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(msg) == "" && filePart == nil {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	mode := chat.GenerationMode(r.FormValue("mode"))
	if mode == "" {
		mode = chat.ModeChat
	}

	// The stream outlives this request; SSE carries its updates.
	go func() {
		if err := svc.SendMessage(context.Background(), msg, filePart, mode); err != nil {
			m.logger.Error("Failed to send message",
				slog.String("uid", principal.UID),
				slog.String(errLoggerKey, err.Error()))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// attachment validates and reads the optional image upload. Validation
// failures reject the request before any session state changes.
func (m *Main) attachment(r *http.Request) (*chat.Part, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedImageTypes[mimeType] {
		return nil, errors.New("only image files are supported (JPEG, PNG, GIF, WebP)")
	}
	if header.Size > maxAttachmentSize {
		return nil, errors.New("file size must be less than 5MB")
	}

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	return &chat.Part{Data: data, MIMEType: mimeType}, nil
}

// HandleNewChat creates a fresh session in the user's current language and
// makes it active.
func (m *Main) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.authedService(w, r)
	if !ok {
		return
	}

	if _, err := svc.NewSession(r.Context()); err != nil {
		m.logger.Error("Failed to create session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSelectChat activates the session named by the "chat_id" form field
// and recomputes the preview from it. Unknown ids are ignored.
func (m *Main) HandleSelectChat(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.authedService(w, r)
	if !ok {
		return
	}

	chatID := r.FormValue("chat_id")
	if chatID == "" {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}
	svc.SelectSession(chatID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteChat removes the session named by the "chat_id" form field.
// Deleting the last remaining session leaves the user with a fresh one.
func (m *Main) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.authedService(w, r)
	if !ok {
		return
	}

	chatID := r.FormValue("chat_id")
	if chatID == "" {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}
	if err := svc.DeleteSession(r.Context(), chatID); err != nil {
		m.logger.Error("Failed to delete session",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLanguage switches the user's language. The active session only picks
// up the change while it has no user turns yet.
func (m *Main) HandleLanguage(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.authedService(w, r)
	if !ok {
		return
	}

	lang := models.Language(r.FormValue("language"))
	if err := svc.ChangeLanguage(r.Context(), lang); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authedService resolves the request's principal to an existing chat
// service, writing the error response when either step fails.
func (m *Main) authedService(w http.ResponseWriter, r *http.Request) (*chat.Service, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	principal, err := m.principal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	svc, ok := m.lookupService(principal.UID)
	if !ok {
		http.Error(w, "Sign in first", http.StatusConflict)
		return nil, false
	}
	return svc, true
}

func (m *Main) publishChats(uid string) {
	svc, ok := m.lookupService(uid)
	if !ok {
		return
	}

	divs, err := m.chatDivs(svc)
	if err != nil {
		m.logger.Error("Failed to generate chat divs", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: chatsSSEType}
	msg.AppendData(divs)
	if err := m.sseSrv.Publish(&msg, userTopic(uid, "chats")); err != nil {
		m.logger.Error("Failed to publish chats", slog.String(errLoggerKey, err.Error()))
	}
}

func (m *Main) publishMessages(uid, sessionID string) {
	svc, ok := m.lookupService(uid)
	if !ok {
		return
	}
	// Streams can keep filling a session the user has switched away from;
	// only the active session is mirrored to the client.
	if svc.Store().ActiveID() != sessionID {
		return
	}
	sess, found := svc.Store().Get(sessionID)
	if !found {
		return
	}

	var sb strings.Builder
	for _, message := range sess.Messages {
		if err := m.renderMessage(&sb, message); err != nil {
			m.logger.Error("Failed to render message",
				slog.String("sessionID", sessionID),
				slog.String(errLoggerKey, err.Error()))
			return
		}
	}

	msg := sse.Message{Type: messagesSSEType}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, userTopic(uid, "messages")); err != nil {
		m.logger.Error("Failed to publish messages", slog.String(errLoggerKey, err.Error()))
	}
}

func (m *Main) publishPreview(uid, doc string, ok bool) {
	msg := sse.Message{Type: previewSSEType}
	if !ok {
		doc = ""
	}
	msg.AppendData(doc)
	if err := m.sseSrv.Publish(&msg, userTopic(uid, "preview")); err != nil {
		m.logger.Error("Failed to publish preview", slog.String(errLoggerKey, err.Error()))
	}
}

func (m *Main) publishComposing(uid string, composing bool) {
	msg := sse.Message{Type: composingSSEType}
	if composing {
		msg.AppendData("true")
	} else {
		msg.AppendData("false")
	}
	if err := m.sseSrv.Publish(&msg, userTopic(uid, "composing")); err != nil {
		m.logger.Error("Failed to publish composing state", slog.String(errLoggerKey, err.Error()))
	}
}

func (m *Main) renderMessage(w io.Writer, message models.Message) error {
	content, err := renderMarkdown(message.Text)
	if err != nil {
		return fmt.Errorf("failed to render contents: %w", err)
	}

	tmplName := "ai_message"
	if message.Sender == models.SenderUser {
		tmplName = "user_message"
	}
	return m.templates.ExecuteTemplate(w, tmplName, struct {
		ID       int64
		Content  any
		IsTyping bool
	}{
		ID:       message.ID,
		Content:  content,
		IsTyping: message.IsTyping,
	})
}

func (m *Main) chatDivs(svc *chat.Service) (string, error) {
	activeID := svc.Store().ActiveID()

	var sb strings.Builder
	for _, sess := range svc.Store().Sessions() {
		err := m.templates.ExecuteTemplate(&sb, "chat_title", chatView{
			ID:     sess.ID,
			Title:  sess.Title,
			Active: sess.ID == activeID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to execute chat_title template: %w", err)
		}
	}
	return sb.String(), nil
}
