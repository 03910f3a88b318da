package eval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

// ChatMessage is one message of a completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const RoleSystem = "system"

// ToolSchema is the structured function/tool definition a completion must
// answer through.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// CompletionRequest is everything the completion function needs: messages,
// model identity and parameters, and the required output schema.
type CompletionRequest struct {
	Messages    []ChatMessage
	Provider    string
	Model       string
	ModelParams json.RawMessage
	Tool        ToolSchema
}

// Completer is the black-box language-model completion function. It returns
// the tool-call arguments as raw JSON, to be validated by the caller.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error)
}

// Evaluation is the structured verdict an eval completion must produce.
type Evaluation struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// evaluationSchema builds the JSON schema requiring a numeric score and a
// string reasoning, described by the template's output schema.
func evaluationSchema(output domain.OutputSchema) (json.RawMessage, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "number",
				"description": output.Score,
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": output.Reasoning,
			},
		},
		"required":             []string{"score", "reasoning"},
		"additionalProperties": false,
	}
	return json.Marshal(schema)
}

// parseEvaluation validates the completion output strictly against the
// evaluation schema before decoding it.
func parseEvaluation(raw json.RawMessage, schema json.RawMessage) (*Evaluation, error) {
	compiled, err := jsonschema.CompileString("evaluation.json", string(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile evaluation schema: %w", err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("%w: completion output is not JSON: %v", domain.ErrProvider, err)
	}
	if err := compiled.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: completion output violates schema: %v", domain.ErrProvider, err)
	}

	evaluation := &Evaluation{}
	if err := json.Unmarshal(raw, evaluation); err != nil {
		return nil, fmt.Errorf("%w: failed to decode completion output: %v", domain.ErrProvider, err)
	}
	return evaluation, nil
}
