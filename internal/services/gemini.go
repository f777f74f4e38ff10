package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/sohana-dev/nammai-web/internal/chat"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when the configuration does not name one.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini provides the model transport over Google's Gemini API. Each
// conversation it opens keeps its own history client-side and replays it on
// every send, with the system instruction carried in the request config.
type Gemini struct {
	model  string
	client *genai.Client

	logger *slog.Logger
}

// NewGemini creates a Gemini transport with the given API key and model
// name. An empty API key is a configuration error.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (Gemini, error) {
	if apiKey == "" {
		return Gemini{}, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return Gemini{}, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return Gemini{
		model:  model,
		client: client,
		logger: logger.With(slog.String("module", "gemini")),
	}, nil
}

// CreateConversation opens a stateful conversation scoped to the given
// system instruction.
func (g Gemini) CreateConversation(_ context.Context, systemInstruction string) (chat.Conversation, error) {
	return &geminiConversation{
		model:  g.model,
		client: g.client,
		logger: g.logger,
		config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction}},
			},
		},
	}, nil
}

type geminiConversation struct {
	model   string
	client  *genai.Client
	config  *genai.GenerateContentConfig
	history []*genai.Content

	logger *slog.Logger
}

func geminiParts(parts []chat.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			out = append(out, &genai.Part{Text: p.Text})
		}
		if len(p.Data) > 0 {
			out = append(out, &genai.Part{InlineData: &genai.Blob{
				MIMEType: p.MIMEType,
				Data:     p.Data,
			}})
		}
	}
	return out
}

// StreamSend sends the content parts over the conversation and yields text
// deltas as they arrive. The model's full reply is appended to the history
// once the stream is exhausted.
func (c *geminiConversation) StreamSend(ctx context.Context, parts []chat.Part) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := append([]*genai.Content{}, c.history...)
		userContent := &genai.Content{
			Role:  genai.RoleUser,
			Parts: geminiParts(parts),
		}
		contents = append(contents, userContent)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var reply string
		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, c.config) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			var text string
			if len(chunk.Candidates) > 0 && chunk.Candidates[0].Content != nil {
				for _, p := range chunk.Candidates[0].Content.Parts {
					text += p.Text
				}
			}
			if text == "" {
				continue
			}
			reply += text
			if !yield(text, nil) {
				return
			}
		}

		c.history = append(c.history, userContent, &genai.Content{
			Role:  genai.RoleModel,
			Parts: []*genai.Part{{Text: reply}},
		})
	}
}
