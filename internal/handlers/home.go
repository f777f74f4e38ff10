package handlers

import (
	"html/template"
	"net/http"
)

type homeMessage struct {
	ID       int64
	Sender   string
	Content  template.HTML
	IsTyping bool
}

type homePageData struct {
	DisplayName string
	Language    string
	Chats       []chatView
	Messages    []homeMessage
	PreviewDoc  string
	HasPreview  bool
	Composing   bool
}

// HandleHome renders the main page. Unauthenticated visitors get the login
// page; signed-in users get the sidebar, the active session's messages, and
// the preview pane restored from its last assistant message.
func (m *Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	principal, err := m.principal(r)
	if err != nil {
		if tErr := m.templates.ExecuteTemplate(w, "login.html", nil); tErr != nil {
			http.Error(w, tErr.Error(), http.StatusInternalServerError)
		}
		return
	}

	svc, ok := m.lookupService(principal.UID)
	if !ok {
		if tErr := m.templates.ExecuteTemplate(w, "login.html", nil); tErr != nil {
			http.Error(w, tErr.Error(), http.StatusInternalServerError)
		}
		return
	}

	activeID := svc.Store().ActiveID()
	data := homePageData{
		DisplayName: principal.DisplayName,
		Language:    string(svc.Language()),
		Composing:   svc.Composing(),
	}
	data.PreviewDoc, data.HasPreview = svc.Preview()

	for _, sess := range svc.Store().Sessions() {
		data.Chats = append(data.Chats, chatView{
			ID:     sess.ID,
			Title:  sess.Title,
			Active: sess.ID == activeID,
		})
	}

	if active, found := svc.Store().Active(); found {
		for _, message := range active.Messages {
			content, rErr := renderMarkdown(message.Text)
			if rErr != nil {
				http.Error(w, rErr.Error(), http.StatusInternalServerError)
				return
			}
			data.Messages = append(data.Messages, homeMessage{
				ID:       message.ID,
				Sender:   string(message.Sender),
				Content:  content,
				IsTyping: message.IsTyping,
			})
		}
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
