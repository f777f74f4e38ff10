package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/sohana-dev/nammai-web/internal/chat"
)

// Ollama provides the model transport for a local or remote Ollama server.
type Ollama struct {
	model  string
	client *api.Client
}

// NewOllama creates an Ollama transport for the given host URL and model
// name. The host must be a valid URL.
func NewOllama(host, model string) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host: %w", err)
	}

	return Ollama{
		model:  model,
		client: api.NewClient(u, &http.Client{}),
	}, nil
}

// CreateConversation opens a conversation whose history starts with the
// system preamble.
func (o Ollama) CreateConversation(_ context.Context, systemInstruction string) (chat.Conversation, error) {
	return &ollamaConversation{
		model:  o.model,
		client: o.client,
		history: []api.Message{{
			Role:    "system",
			Content: systemInstruction,
		}},
	}, nil
}

type ollamaConversation struct {
	model   string
	client  *api.Client
	history []api.Message
}

// StreamSend streams one chat turn from the Ollama server, yielding each
// response fragment. Inline binary parts are forwarded as images.
func (c *ollamaConversation) StreamSend(ctx context.Context, parts []chat.Part) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		userMsg := api.Message{Role: "user"}
		for _, p := range parts {
			if p.Text != "" {
				userMsg.Content += p.Text
			}
			if len(p.Data) > 0 {
				userMsg.Images = append(userMsg.Images, api.ImageData(p.Data))
			}
		}
		msgs := append(append([]api.Message{}, c.history...), userMsg)

		t := true
		req := api.ChatRequest{
			Model:    c.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var reply string
		if err := c.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			reply += res.Message.Content
			if !yield(res.Message.Content, nil) {
				cancel()
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}

		c.history = append(c.history, userMsg, api.Message{
			Role:    "assistant",
			Content: reply,
		})
	}
}
