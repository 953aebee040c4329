package thread

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/laceai/lace-core/pkg/types"
)

// OpenToolCall is a TOOL_CALL with no matching TOOL_RESULT yet.
type OpenToolCall struct {
	CallID    string
	ToolName  string
	Arguments map[string]any
	HasResult bool
}

// ReplayView is the logical view the Agent and the UI project a
// thread's event log into: the ordered events, which tool calls are
// still open, which are awaiting approval, and cumulative token usage.
type ReplayView struct {
	Thread           *types.Thread
	Events           []*types.Event
	OpenToolCalls    map[string]*OpenToolCall
	AwaitingApproval map[string]bool // callId -> approval requested, no response yet
	TotalTokens      types.TokenUsage
}

// Replay loads a thread's full event log and folds it into a
// ReplayView. This is the sole place semantic interpretation of raw
// events for scheduling purposes happens outside the Agent; it derives
// only the facts the data model defines (open calls, pending approvals, token
// aggregates), never message content composition — that is the Agent's
// job.
func (m *Manager) Replay(ctx context.Context, threadID string) (*ReplayView, error) {
	t, err := m.store.LoadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	events, err := m.store.LoadEvents(ctx, threadID)
	if err != nil {
		return nil, err
	}

	view := &ReplayView{
		Thread:           t,
		Events:           events,
		OpenToolCalls:    make(map[string]*OpenToolCall),
		AwaitingApproval: make(map[string]bool),
	}

	requested := make(map[string]bool)

	for _, e := range events {
		switch e.Type {
		case types.EventToolCall:
			var d types.ToolCallData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("decode TOOL_CALL %s: %w", e.ID, err)
			}
			view.OpenToolCalls[d.CallID] = &OpenToolCall{
				CallID:    d.CallID,
				ToolName:  d.ToolName,
				Arguments: d.Arguments,
			}
		case types.EventToolResult:
			var d types.ToolResultData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("decode TOOL_RESULT %s: %w", e.ID, err)
			}
			if call, ok := view.OpenToolCalls[d.CallID]; ok {
				call.HasResult = true
			}
			delete(view.AwaitingApproval, d.CallID)
		case types.EventToolApprovalRequest:
			var d types.ToolApprovalRequestData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("decode TOOL_APPROVAL_REQUEST %s: %w", e.ID, err)
			}
			requested[d.CallID] = true
			view.AwaitingApproval[d.CallID] = true
		case types.EventToolApprovalResponse:
			var d types.ToolApprovalResponseData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("decode TOOL_APPROVAL_RESPONSE %s: %w", e.ID, err)
			}
			view.AwaitingApproval[d.CallID] = false
		case types.EventAgentMessage:
			var d types.AgentMessageData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("decode AGENT_MESSAGE %s: %w", e.ID, err)
			}
			if d.Usage != nil {
				view.TotalTokens.Input += d.Usage.Input
				view.TotalTokens.Output += d.Usage.Output
				view.TotalTokens.Reasoning += d.Usage.Reasoning
				view.TotalTokens.Cache.Read += d.Usage.Cache.Read
				view.TotalTokens.Cache.Write += d.Usage.Cache.Write
			}
		}
	}

	// AwaitingApproval may hold stale false entries for calls whose
	// response landed; drop them so callers only see true entries.
	for id, awaiting := range view.AwaitingApproval {
		if !awaiting {
			delete(view.AwaitingApproval, id)
		}
	}

	return view, nil
}

// OpenCallsWithoutResult returns tool calls that have no TOOL_RESULT yet
// — the set the Agent's crash/restart recovery policy walks.
func (v *ReplayView) OpenCallsWithoutResult() []*OpenToolCall {
	var out []*OpenToolCall
	for _, c := range v.OpenToolCalls {
		if !c.HasResult {
			out = append(out, c)
		}
	}
	return out
}
