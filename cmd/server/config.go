package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sohana-dev/nammai-web/internal/chat"
	"github.com/sohana-dev/nammai-web/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	transport(ctx context.Context, logger *slog.Logger) (chat.Transport, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port       string      `yaml:"port"`
	AuthSecret string      `yaml:"authSecret"`
	LLM        llmConfig   `yaml:"llm"`
	Store      storeConfig `yaml:"store"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

type storeConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port       string         `yaml:"port"`
		AuthSecret string         `yaml:"authSecret"`
		LLM        map[string]any `yaml:"llm"`
		Store      storeConfig    `yaml:"store"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.AuthSecret = rawConfig.AuthSecret
	c.Store = rawConfig.Store

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

func (g geminiConfig) transport(ctx context.Context, logger *slog.Logger) (chat.Transport, error) {
	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return services.NewGemini(ctx, apiKey, g.Model, logger)
}

func (o ollamaConfig) transport(context.Context, *slog.Logger) (chat.Transport, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model)
}

func (o openAIConfig) transport(context.Context, *slog.Logger) (chat.Transport, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.Model)
}

// docs builds the document store backing the persistence bridge. The close
// function releases any underlying resources.
func (s storeConfig) docs(ctx context.Context, defaultPath string) (chat.Store, func() error, error) {
	switch s.Backend {
	case "", "bolt":
		path := s.Path
		if path == "" {
			path = defaultPath
		}
		boltDB, err := services.NewBoltDB(path)
		if err != nil {
			return nil, nil, err
		}
		return boltDB, boltDB.Close, nil
	case "mongo":
		uri := s.URI
		if uri == "" {
			uri = os.Getenv("MONGODB_URI")
		}
		database := s.Database
		if database == "" {
			database = "nammai"
		}
		mongoDB, err := services.NewMongo(ctx, uri, database)
		if err != nil {
			return nil, nil, err
		}
		return mongoDB, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", s.Backend)
	}
}
