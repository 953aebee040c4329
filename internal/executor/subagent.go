// Package executor provides the concrete TaskExecutor the Task tool
// drives to run subagent work.
package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/laceai/lace-core/internal/agent"
	"github.com/laceai/lace-core/internal/persona"
	"github.com/laceai/lace-core/internal/session"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/internal/tool"
	"github.com/laceai/lace-core/pkg/types"
)

// SubagentExecutor implements tool.TaskExecutor by seeding a fresh
// Thread with the subtask's prompt and running one full turn on it
// with the named persona. Each subtask gets its own Thread rather than
// its own Session: the Session (and the tool policies and allowlist it
// carries) belongs to the conversation the Task tool was invoked from,
// and a subagent's Thread inherits that scope the same way any other
// Thread a Driver runs does. A subtask is otherwise stateless — it
// never sees sibling subtasks or the parent Thread's event log.
type SubagentExecutor struct {
	driver   *agent.Driver
	threads  *thread.Manager
	sessions *session.Service
	personas *persona.Registry
}

// NewSubagentExecutor builds a SubagentExecutor over a running Driver.
func NewSubagentExecutor(driver *agent.Driver, threads *thread.Manager, sessions *session.Service, personas *persona.Registry) *SubagentExecutor {
	return &SubagentExecutor{driver: driver, threads: threads, sessions: sessions, personas: personas}
}

// ExecuteSubtask implements tool.TaskExecutor.
func (e *SubagentExecutor) ExecuteSubtask(ctx context.Context, parentSessionID, agentName, prompt string, opts tool.TaskOptions) (*tool.TaskResult, error) {
	ag, err := e.personas.Get(agentName)
	if err != nil {
		return nil, fmt.Errorf("agent not found: %s: %w", agentName, err)
	}
	if !ag.IsSubagent() {
		return nil, fmt.Errorf("agent %s cannot be used as subagent (mode: %s)", agentName, ag.Mode)
	}

	var sessionID *string
	if parentSessionID != "" {
		if _, err := e.sessions.Get(ctx, parentSessionID); err != nil {
			return nil, fmt.Errorf("parent session %s not found: %w", parentSessionID, err)
		}
		sessionID = &parentSessionID
	}

	th, err := e.threads.CreateThread(ctx, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating subagent thread: %w", err)
	}
	if _, err := e.threads.AppendEvent(ctx, th.ID, types.EventUserMessage, types.UserMessageData{Text: prompt}); err != nil {
		return nil, fmt.Errorf("seeding subagent prompt: %w", err)
	}

	runErr := e.driver.RunTurn(ctx, th.ID, agent.RunOptions{Persona: agentName, Model: opts.Model})

	view, replayErr := e.threads.Replay(ctx, th.ID)
	if replayErr != nil {
		if runErr != nil {
			return nil, fmt.Errorf("subtask failed: %w", runErr)
		}
		return nil, replayErr
	}

	if runErr != nil {
		return &tool.TaskResult{
			Output:    fmt.Sprintf("Error executing subtask: %s", runErr.Error()),
			SessionID: parentSessionID,
			AgentID:   th.ID,
			Error:     runErr.Error(),
			Metadata: map[string]any{
				"threadID": th.ID,
				"persona":  agentName,
			},
		}, nil
	}

	return &tool.TaskResult{
		Output:    lastAgentMessageText(view),
		SessionID: parentSessionID,
		AgentID:   th.ID,
		Metadata: map[string]any{
			"threadID": th.ID,
			"persona":  agentName,
		},
	}, nil
}

// lastAgentMessageText returns the text of the final AGENT_MESSAGE in
// a thread's event log — the subagent's answer to its prompt. A turn
// that ends after tool calls with no trailing text (unusual, but not
// forbidden) yields an empty string rather than an error.
func lastAgentMessageText(view *thread.ReplayView) string {
	var texts []string
	for _, e := range view.Events {
		if e.Type != types.EventAgentMessage {
			continue
		}
		var d types.AgentMessageData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			continue
		}
		if d.Text != "" {
			texts = append(texts, d.Text)
		}
	}
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}
