package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OpenAI implements Provider for any server speaking the OpenAI chat
// completions format (OpenAI, vLLM, llama.cpp, OpenRouter).
type OpenAI struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAI(client *http.Client, baseURL, apiKey, model string) *OpenAI {
	return &OpenAI{
		client:  defaultClient(client),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (o *OpenAI) Name() string { return "openai" }

type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	wire := openaiRequest{
		Model:       o.model,
		Messages:    wireMessages(request),
		Temperature: request.Temperature,
	}

	var out openaiResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/v1/chat/completions", o.apiKey, wire, &out, "llm/openai"); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("llm/openai: response has no choices")
	}
	return &Response{Content: out.Choices[0].Message.Content, Model: out.Model}, nil
}
