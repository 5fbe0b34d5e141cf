package llm

import (
	"context"
	"net/http"
	"strings"
)

// Ollama implements Provider against a local Ollama server's /api/chat.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

func NewOllama(client *http.Client, baseURL, model string) *Ollama {
	return &Ollama{
		client:  defaultClient(client),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
}

func (o *Ollama) Complete(ctx context.Context, request Request) (*Response, error) {
	wire := ollamaRequest{Model: o.model, Messages: wireMessages(request)}
	if request.Temperature != nil {
		wire.Options = &ollamaOptions{Temperature: request.Temperature}
	}

	var out ollamaResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/api/chat", "", wire, &out, "llm/ollama"); err != nil {
		return nil, err
	}
	return &Response{Content: out.Message.Content, Model: out.Model}, nil
}
