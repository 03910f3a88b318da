package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint and
// forces the response through the requested tool schema.
type OpenAICompleter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

func NewOpenAICompleter(baseURL, apiKey string, log *zap.Logger) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

type chatCompletionRequest struct {
	Model      string          `json:"model"`
	Messages   []ChatMessage   `json:"messages"`
	Tools      []chatTool      `json:"tools"`
	ToolChoice json.RawMessage `json:"tool_choice"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error) {
	payload := chatCompletionRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Tools: []chatTool{{
			Type: "function",
			Function: chatToolFunction{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}},
	}
	choice, err := json.Marshal(map[string]any{
		"type":     "function",
		"function": map[string]string{"name": req.Tool.Name},
	})
	if err != nil {
		return nil, err
	}
	payload.ToolChoice = choice

	body, err := mergeModelParams(payload, req.ModelParams)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: completion request failed: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read completion response: %v", domain.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Completion endpoint returned an error",
			zap.String("model", req.Model),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: completion endpoint returned status %d", domain.ErrProvider, resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed completion response: %v", domain.ErrProvider, err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: completion returned no tool call", domain.ErrProvider)
	}
	return json.RawMessage(parsed.Choices[0].Message.ToolCalls[0].Function.Arguments), nil
}

// mergeModelParams folds stored model parameters (temperature, top_p, ...)
// into the request body without letting them override the structural fields.
func mergeModelParams(req chatCompletionRequest, params json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 || string(params) == "null" {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(params, &merged); err != nil {
		return nil, fmt.Errorf("%w: malformed model parameters: %v", domain.ErrValidation, err)
	}
	var structural map[string]json.RawMessage
	if err := json.Unmarshal(base, &structural); err != nil {
		return nil, err
	}
	for key, value := range structural {
		merged[key] = value
	}
	return json.Marshal(merged)
}
