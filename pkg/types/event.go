package types

import "encoding/json"

// EventType is the tagged kind of an Event. The set is closed: these are
// the only kinds the Core appends.
type EventType string

const (
	EventUserMessage          EventType = "USER_MESSAGE"
	EventAgentMessage         EventType = "AGENT_MESSAGE"
	EventToolCall             EventType = "TOOL_CALL"
	EventToolResult           EventType = "TOOL_RESULT"
	EventToolApprovalRequest  EventType = "TOOL_APPROVAL_REQUEST"
	EventToolApprovalResponse EventType = "TOOL_APPROVAL_RESPONSE"
	EventSystemNote           EventType = "SYSTEM_NOTE"
)

// Event is the atomic unit of history: append-only, never mutated or
// deleted except by cascade deletion of the owning thread.
type Event struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"threadID"`
	Timestamp int64           `json:"timestamp"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// ToolOutcome is the closed set of outcomes a TOOL_RESULT may carry.
type ToolOutcome string

const (
	ToolOutcomeCompleted ToolOutcome = "completed"
	ToolOutcomeFailed    ToolOutcome = "failed"
	ToolOutcomeDenied    ToolOutcome = "denied"
)

// ApprovalDecision is the closed vocabulary a TOOL_APPROVAL_RESPONSE
// carries.
type ApprovalDecision string

const (
	DecisionAllowOnce    ApprovalDecision = "allow_once"
	DecisionAllowSession ApprovalDecision = "allow_session"
	DecisionAllowProject ApprovalDecision = "allow_project"
	DecisionAllowAlways  ApprovalDecision = "allow_always"
	DecisionDeny         ApprovalDecision = "deny"
	DecisionDisable      ApprovalDecision = "disable"
)

// IsAllow reports whether the decision grants execution.
func (d ApprovalDecision) IsAllow() bool {
	switch d {
	case DecisionAllowOnce, DecisionAllowSession, DecisionAllowProject, DecisionAllowAlways:
		return true
	default:
		return false
	}
}

// Policy is what the Policy Resolver returns for a (session, tool) pair.
type Policy string

const (
	PolicyAllow           Policy = "allow"
	PolicyRequireApproval Policy = "require-approval"
	PolicyDeny            Policy = "deny"
	PolicyDisable         Policy = "disable"
)

// TokenUsage mirrors the token-usage record an AGENT_MESSAGE may carry.
type TokenUsage struct {
	Input     int        `json:"input"`
	Output    int        `json:"output"`
	Reasoning int        `json:"reasoning,omitempty"`
	Cache     CacheUsage `json:"cache,omitempty"`
}

// CacheUsage contains cache hit/write statistics.
type CacheUsage struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

// UserMessageData is the payload of a USER_MESSAGE event.
type UserMessageData struct {
	Text string `json:"text"`
}

// AgentMessageData is the payload of an AGENT_MESSAGE event.
type AgentMessageData struct {
	Text  string      `json:"text"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// ToolCallData is the payload of a TOOL_CALL event.
type ToolCallData struct {
	CallID    string         `json:"callId"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultData is the payload of a TOOL_RESULT event.
type ToolResultData struct {
	CallID  string        `json:"callId"`
	Outcome ToolOutcome   `json:"outcome"`
	Content []ContentPart `json:"content"`
	Error   string        `json:"error,omitempty"`
}

// toolResultDataWire is the JSON-on-the-wire shape of ToolResultData;
// Content is decoded field-by-field since ContentPart is an interface.
type toolResultDataWire struct {
	CallID  string            `json:"callId"`
	Outcome ToolOutcome       `json:"outcome"`
	Content []json.RawMessage `json:"content"`
	Error   string            `json:"error,omitempty"`
}

func (d ToolResultData) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CallID  string        `json:"callId"`
		Outcome ToolOutcome   `json:"outcome"`
		Content []ContentPart `json:"content"`
		Error   string        `json:"error,omitempty"`
	}{d.CallID, d.Outcome, d.Content, d.Error})
}

func (d *ToolResultData) UnmarshalJSON(data []byte) error {
	var wire toolResultDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.CallID = wire.CallID
	d.Outcome = wire.Outcome
	d.Error = wire.Error
	d.Content = make([]ContentPart, 0, len(wire.Content))
	for _, raw := range wire.Content {
		p, err := UnmarshalContentPart(raw)
		if err != nil {
			return err
		}
		d.Content = append(d.Content, p)
	}
	return nil
}

// ToolApprovalRequestData is the payload of a TOOL_APPROVAL_REQUEST event.
type ToolApprovalRequestData struct {
	CallID string `json:"callId"`
}

// ToolApprovalResponseData is the payload of a TOOL_APPROVAL_RESPONSE event.
type ToolApprovalResponseData struct {
	CallID   string           `json:"callId"`
	Decision ApprovalDecision `json:"decision"`
}

// SystemNoteData is the payload of a SYSTEM_NOTE event.
type SystemNoteData struct {
	Text string `json:"text"`
}
