package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	nammaiweb "github.com/sohana-dev/nammai-web"
	"github.com/sohana-dev/nammai-web/internal/chat"
	"github.com/sohana-dev/nammai-web/internal/services"
	"github.com/tmaxmax/go-sse"
)

// Identity verifies bearer tokens and reports the authenticated principal.
type Identity interface {
	Verify(ctx context.Context, token string) (services.Principal, error)
}

const errLoggerKey = "err"

// SSE event types for real-time updates.
var (
	chatsSSEType     = sse.Type("chats")
	messagesSSEType  = sse.Type("messages")
	previewSSEType   = sse.Type("preview")
	composingSSEType = sse.Type("composing")
)

// Main handles the core functionality of the chat application, managing
// server-sent events, HTML templates, and one chat service per authenticated
// user.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	identity  Identity
	transport chat.Transport
	docs      chat.Store
	logger    *slog.Logger

	mu       sync.Mutex
	services map[string]*chat.Service
}

// NewMain creates a new Main instance over the given identity provider,
// model transport, and document store. It parses the embedded HTML templates
// and configures the SSE server to scope every subscription to the
// authenticated principal's topics.
func NewMain(identity Identity, transport chat.Transport, docs chat.Store, logger *slog.Logger) (*Main, error) {
	tmpl, err := template.ParseFS(
		nammaiweb.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, err
	}

	m := &Main{
		templates: tmpl,
		identity:  identity,
		transport: transport,
		docs:      docs,
		logger:    logger.With(slog.String("module", "handlers")),
		services:  make(map[string]*chat.Service),
	}
	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			principal, err := m.identity.Verify(s.Req.Context(), s.Req.URL.Query().Get("token"))
			if err != nil {
				return sse.Subscription{}, false
			}

			topics := []string{
				sse.DefaultTopic,
				userTopic(principal.UID, "chats"),
				userTopic(principal.UID, "messages"),
				userTopic(principal.UID, "preview"),
				userTopic(principal.UID, "composing"),
			}
			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      topics,
			}, true
		},
	}
	return m, nil
}

func userTopic(uid, kind string) string {
	return fmt.Sprintf("%s-%s", kind, uid)
}

// HandleSSE serves the event stream carrying chat-list, message, preview,
// and composing updates for the authenticated user.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// service returns the per-user chat service, creating and wiring it to the
// user's SSE topics on first use.
func (m *Main) service(uid string) *chat.Service {
	m.mu.Lock()
	defer m.mu.Unlock()

	if svc, ok := m.services[uid]; ok {
		return svc
	}

	svc := chat.NewService(m.transport, m.docs, chat.Events{
		SessionsChanged:  func() { m.publishChats(uid) },
		MessagesChanged:  func(sessionID string) { m.publishMessages(uid, sessionID) },
		ComposingChanged: func(composing bool) { m.publishComposing(uid, composing) },
		PreviewChanged:   func(doc string, ok bool) { m.publishPreview(uid, doc, ok) },
	}, m.logger)
	m.services[uid] = svc
	return svc
}

// lookupService returns the user's service without creating one.
func (m *Main) lookupService(uid string) (*chat.Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[uid]
	return svc, ok
}

// Shutdown gracefully terminates the SSE server, broadcasting a close
// message and waiting up to 5 seconds for connections to drain.
func (m *Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// The close event needs a payload to comply with the SSE spec.
	e.AppendData("bye")

	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
