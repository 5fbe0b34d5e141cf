// Package llm talks to chat-completion backends. Each Provider turns a
// Request into its vendor's wire format and returns the assistant text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one non-streaming completion. System, when set, is sent
// ahead of Messages.
type Request struct {
	System      string
	Messages    []Message
	Temperature *float64
}

type Response struct {
	Content string
	Model   string
}

// Provider is a chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, request Request) (*Response, error)
	Name() string
}

// ProviderError is a non-200 answer from the backend.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (err *ProviderError) Error() string {
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsTimeout reports whether err came from a deadline, either the caller's
// context or the transport.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

func wireMessages(request Request) []Message {
	messages := make([]Message, 0, len(request.Messages)+1)
	if request.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: request.System})
	}
	return append(messages, request.Messages...)
}

// postJSON sends body to endpoint and decodes a 200 answer into out.
func postJSON(ctx context.Context, client *http.Client, endpoint, bearer string, body, out any, prefix string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", prefix, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", prefix, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readProviderError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", prefix, err)
	}
	return nil
}

// readProviderError accepts both {"error":"..."} (Ollama) and
// {"error":{"message":"..."}} (OpenAI) bodies.
func readProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return &ProviderError{StatusCode: resp.StatusCode, Message: flat.Error}
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return &ProviderError{StatusCode: resp.StatusCode, Message: nested.Error.Message}
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
}
