// Package provider provides LLM provider abstraction using Eino framework.
package provider

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/laceai/lace-core/pkg/types"
)

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	TopP        float64           `json:"topP,omitempty"`
	StopWords   []string          `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ToolInfo represents a tool definition for the LLM.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts internal tool definitions to Eino format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		// Parse parameters from JSON schema
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name: t.Name,
			Desc: t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertEventsToEinoMessages projects a thread's replayed event log
// into the message sequence a ToolCallingChatModel expects: one
// message per USER_MESSAGE / AGENT_MESSAGE / TOOL_RESULT event,
// tool-call intents folded onto their originating AGENT_MESSAGE.
func ConvertEventsToEinoMessages(events []*types.Event) ([]*schema.Message, error) {
	var result []*schema.Message
	var pendingText string
	var pendingCalls []schema.ToolCall

	flushAssistant := func() {
		if pendingText == "" && len(pendingCalls) == 0 {
			return
		}
		result = append(result, &schema.Message{
			Role:      schema.Assistant,
			Content:   pendingText,
			ToolCalls: pendingCalls,
		})
		pendingText = ""
		pendingCalls = nil
	}

	for _, e := range events {
		switch e.Type {
		case types.EventUserMessage:
			var d types.UserMessageData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, err
			}
			flushAssistant()
			result = append(result, &schema.Message{Role: schema.User, Content: d.Text})
		case types.EventAgentMessage:
			var d types.AgentMessageData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, err
			}
			flushAssistant()
			pendingText = d.Text
		case types.EventToolCall:
			var d types.ToolCallData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, err
			}
			argsJSON, _ := json.Marshal(d.Arguments)
			pendingCalls = append(pendingCalls, schema.ToolCall{
				ID: d.CallID,
				Function: schema.FunctionCall{
					Name:      d.ToolName,
					Arguments: string(argsJSON),
				},
			})
		case types.EventToolResult:
			var d types.ToolResultData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, err
			}
			flushAssistant()
			result = append(result, &schema.Message{
				Role:       schema.Tool,
				Content:    toolResultText(d),
				ToolCallID: d.CallID,
			})
		}
	}
	flushAssistant()

	return result, nil
}

func toolResultText(d types.ToolResultData) string {
	if d.Error != "" {
		return d.Error
	}
	var sb []byte
	for _, part := range d.Content {
		if text, ok := part.(*types.TextPart); ok {
			sb = append(sb, []byte(text.Text)...)
		}
	}
	return string(sb)
}
