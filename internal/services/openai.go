package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"iter"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sohana-dev/nammai-web/internal/chat"
)

// OpenAI provides the model transport over OpenAI's chat completion API.
type OpenAI struct {
	model  string
	client *goopenai.Client
}

// NewOpenAI creates an OpenAI transport with the specified API key and model
// name.
func NewOpenAI(apiKey, model string) (OpenAI, error) {
	if apiKey == "" {
		return OpenAI{}, errors.New("openai api key is required")
	}
	return OpenAI{
		model:  model,
		client: goopenai.NewClient(apiKey),
	}, nil
}

// CreateConversation opens a conversation whose history starts with the
// system preamble.
func (o OpenAI) CreateConversation(_ context.Context, systemInstruction string) (chat.Conversation, error) {
	return &openAIConversation{
		model:  o.model,
		client: o.client,
		history: []goopenai.ChatCompletionMessage{{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemInstruction,
		}},
	}, nil
}

type openAIConversation struct {
	model   string
	client  *goopenai.Client
	history []goopenai.ChatCompletionMessage
}

func openAIUserMessage(parts []chat.Part) goopenai.ChatCompletionMessage {
	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}

	hasInline := false
	for _, p := range parts {
		if len(p.Data) > 0 {
			hasInline = true
		}
	}
	if !hasInline {
		for _, p := range parts {
			msg.Content += p.Text
		}
		return msg
	}

	for _, p := range parts {
		if p.Text != "" {
			msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		}
		if len(p.Data) > 0 {
			msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Data)),
				},
			})
		}
	}
	return msg
}

// StreamSend streams one chat completion, yielding content deltas.
func (c *openAIConversation) StreamSend(ctx context.Context, parts []chat.Part) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		userMsg := openAIUserMessage(parts)
		msgs := append(append([]goopenai.ChatCompletionMessage{}, c.history...), userMsg)

		req := goopenai.ChatCompletionRequest{
			Model:    c.model,
			Messages: msgs,
			Stream:   true,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		var reply string
		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}
			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			reply += delta
			if !yield(delta, nil) {
				return
			}
		}

		c.history = append(c.history, userMsg, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleAssistant,
			Content: reply,
		})
	}
}
