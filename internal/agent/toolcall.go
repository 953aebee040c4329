package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/internal/policy"
	"github.com/laceai/lace-core/internal/tool"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/oklog/ulid/v2"
)

// handleToolCall is turn protocol step 3: mint a callId, append
// the TOOL_CALL, resolve policy, and route to denial, direct execution,
// or the approval round-trip.
func (d *Driver) handleToolCall(
	ctx context.Context,
	threadID string,
	proj *types.Project,
	sess *types.Session,
	cancelCh <-chan struct{},
	deadline time.Time,
	toolName string,
	arguments map[string]any,
) error {
	priorView, err := d.threads.Replay(ctx, threadID)
	if err != nil {
		return err
	}
	looping := repeatedToolCall(priorView.Events, toolName, arguments)

	callID := ulid.Make().String()
	if _, err := d.threads.AppendEvent(ctx, threadID, types.EventToolCall, types.ToolCallData{
		CallID:    callID,
		ToolName:  toolName,
		Arguments: arguments,
	}); err != nil {
		return err
	}

	projCfg := projectPolicyConfig(proj)
	sessCfg := sessionPolicyConfig(sess)
	resolved := policy.Resolve(projCfg, sessCfg, toolName, looping)

	switch resolved {
	case types.PolicyDisable:
		return d.denyToolResult(ctx, threadID, callID, fmt.Sprintf("tool '%s' disabled", toolName))
	case types.PolicyDeny:
		return d.denyToolResult(ctx, threadID, callID, fmt.Sprintf("tool '%s' denied by policy", toolName))
	case types.PolicyAllow:
		return d.executeTool(ctx, threadID, proj, sess, cancelCh, callID, toolName, arguments)
	default: // require-approval
		standing, err := d.standingApprovalExists(ctx, threadID, sess, toolName)
		if err != nil {
			return err
		}
		if standing {
			return d.executeTool(ctx, threadID, proj, sess, cancelCh, callID, toolName, arguments)
		}
		return d.requestAndAwaitApproval(ctx, threadID, proj, sess, cancelCh, deadline, callID, toolName, arguments)
	}
}

// requestAndAwaitApproval runs step 3.e's ask-and-wait round trip.
func (d *Driver) requestAndAwaitApproval(
	ctx context.Context,
	threadID string,
	proj *types.Project,
	sess *types.Session,
	cancelCh <-chan struct{},
	deadline time.Time,
	callID, toolName string,
	arguments map[string]any,
) error {
	if err := d.approvals.RequestApproval(ctx, threadID, callID); err != nil {
		return err
	}
	d.setState(threadID, StateAwaitingTool)

	waitCtx, cancelWait := contextWithCancelChannel(ctx, cancelCh)
	defer cancelWait()

	decision, err := d.approvals.AwaitDecision(waitCtx, threadID, callID, deadline)
	if err != nil {
		if errors.Is(err, corerr.ErrApprovalTimeout) {
			_, err := d.threads.AppendEvent(ctx, threadID, types.EventToolResult, types.ToolResultData{
				CallID:  callID,
				Outcome: types.ToolOutcomeDenied,
				Content: []types.ContentPart{&types.TextPart{Type: "text", Text: fmt.Sprintf("approval timeout for tool '%s'", toolName)}},
				Error:   corerr.ErrApprovalTimeout.Error(),
			})
			return err
		}
		if cancelled(cancelCh) {
			return d.failToolResult(ctx, threadID, callID, "cancelled")
		}
		return err
	}

	if cancelled(cancelCh) {
		return d.failToolResult(ctx, threadID, callID, "cancelled")
	}
	if !decision.IsAllow() {
		return d.denyToolResult(ctx, threadID, callID, fmt.Sprintf("tool '%s' denied by approval", toolName))
	}
	return d.executeTool(ctx, threadID, proj, sess, cancelCh, callID, toolName, arguments)
}

// executeTool runs step 3.f-g: build the Tool Context and append the
// resulting TOOL_RESULT.
func (d *Driver) executeTool(
	ctx context.Context,
	threadID string,
	proj *types.Project,
	sess *types.Session,
	cancelCh <-chan struct{},
	callID, toolName string,
	arguments map[string]any,
) error {
	t, ok := d.tools.Get(toolName)
	if !ok {
		return d.failToolResult(ctx, threadID, callID, corerr.ErrToolNotFound.Error())
	}

	argsJSON, err := json.Marshal(arguments)
	if err != nil {
		return d.failToolResult(ctx, threadID, callID, err.Error())
	}

	toolCtx := &tool.Context{
		ThreadID:  threadID,
		SessionID: sessionID(sess),
		ProjectID: projectID(proj),
		CallID:    callID,
		WorkDir:   workingDirectory(proj, sess),
		Env:       environment(sess),
		AbortCh:   cancelCh,
		Threads:   d.threads,
	}

	result, execErr := t.Execute(ctx, argsJSON, toolCtx)
	if cancelled(cancelCh) {
		return d.failToolResult(ctx, threadID, callID, "cancelled")
	}
	if execErr != nil {
		return d.failToolResult(ctx, threadID, callID, execErr.Error())
	}

	content := []types.ContentPart{&types.TextPart{Type: "text", Text: result.Output}}
	_, err = d.threads.AppendEvent(ctx, threadID, types.EventToolResult, types.ToolResultData{
		CallID:  callID,
		Outcome: types.ToolOutcomeCompleted,
		Content: content,
	})
	return err
}

func (d *Driver) denyToolResult(ctx context.Context, threadID, callID, reason string) error {
	_, err := d.threads.AppendEvent(ctx, threadID, types.EventToolResult, types.ToolResultData{
		CallID:  callID,
		Outcome: types.ToolOutcomeDenied,
		Content: []types.ContentPart{&types.TextPart{Type: "text", Text: reason}},
	})
	return err
}

func (d *Driver) failToolResult(ctx context.Context, threadID, callID, reason string) error {
	_, err := d.threads.AppendEvent(ctx, threadID, types.EventToolResult, types.ToolResultData{
		CallID:  callID,
		Outcome: types.ToolOutcomeFailed,
		Error:   reason,
	})
	return err
}

// standingApprovalExists implements "consult previous decisions
// in this thread/session/project for the same tool": it scans this
// thread's replay, then every sibling thread in the same session, for a
// still-in-scope allow_session/allow_project/allow_always decision
// against toolName. Project-wide scope across sessions is intentionally
// not walked here — see DESIGN.md for why.
func (d *Driver) standingApprovalExists(ctx context.Context, threadID string, sess *types.Session, toolName string) (bool, error) {
	view, err := d.threads.Replay(ctx, threadID)
	if err != nil {
		return false, err
	}
	if toolHasStandingDecision(view.Events, toolName) {
		return true, nil
	}
	if sess == nil {
		return false, nil
	}

	siblings, err := d.threads.ListThreadsBySession(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	for _, sibling := range siblings {
		if sibling.ID == threadID {
			continue
		}
		view, err := d.threads.Replay(ctx, sibling.ID)
		if err != nil {
			return false, err
		}
		if toolHasStandingDecision(view.Events, toolName) {
			return true, nil
		}
	}
	return false, nil
}

// toolHasStandingDecision reports whether an events slice carries a
// session/project/always-scoped allow decision for toolName.
func toolHasStandingDecision(events []*types.Event, toolName string) bool {
	callTool := make(map[string]string)
	for _, e := range events {
		if e.Type != types.EventToolCall {
			continue
		}
		var d types.ToolCallData
		if json.Unmarshal(e.Data, &d) == nil {
			callTool[d.CallID] = d.ToolName
		}
	}

	for _, e := range events {
		if e.Type != types.EventToolApprovalResponse {
			continue
		}
		var d types.ToolApprovalResponseData
		if json.Unmarshal(e.Data, &d) != nil {
			continue
		}
		if callTool[d.CallID] != toolName {
			continue
		}
		switch d.Decision {
		case types.DecisionAllowSession, types.DecisionAllowProject, types.DecisionAllowAlways:
			return true
		}
	}
	return false
}

func sessionID(s *types.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func projectID(p *types.Project) string {
	if p == nil {
		return ""
	}
	return p.ID
}

// contextWithCancelChannel derives a context that is cancelled either
// when parent is done or when cancelCh closes, whichever comes first.
func contextWithCancelChannel(parent context.Context, cancelCh <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-cancelCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
