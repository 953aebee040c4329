package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/internal/provider"
	"github.com/laceai/lace-core/pkg/types"
)

// RunTurn drives one assistant turn end-to-end on threadID: compose,
// call the Provider, handle any tool intents, loop until the Provider
// produces a turn with no tool calls or cancellation fires, then
// complete (steps 1-5).
func (d *Driver) RunTurn(ctx context.Context, threadID string, opts RunOptions) error {
	cancelCh, release, err := d.acquire(threadID)
	if err != nil {
		return err
	}
	defer release()

	th, err := d.threads.LoadThread(ctx, threadID)
	if err != nil {
		return err
	}

	sess, proj, err := d.loadScope(ctx, th)
	if err != nil {
		return err
	}

	personaName := opts.Persona
	if personaName == "" {
		personaName = DefaultPersona
	}
	ag, err := d.personas.Get(personaName)
	if err != nil {
		return err
	}

	prov, model, err := d.resolveModel(opts.Model)
	if err != nil {
		return err
	}

	deadline := d.approvalDeadline(opts)

	if initialView, err := d.threads.Replay(ctx, threadID); err == nil {
		d.maybeGenerateTitle(ctx, sess, initialView)
	}

	for iter := 0; iter < MaxToolIterations; iter++ {
		if cancelled(cancelCh) {
			return nil
		}
		d.setState(threadID, StateThinking)

		view, err := d.threads.Replay(ctx, threadID)
		if err != nil {
			return err
		}
		view = d.maybeCompact(ctx, threadID, view, model)

		curThread, err := d.threads.LoadThread(ctx, threadID)
		if err != nil {
			return err
		}
		history, err := composeHistory(curThread, view)
		if err != nil {
			return err
		}

		system := buildSystemPrompt(ag, proj, sess)
		messages := make([]*schema.Message, 0, len(history)+1)
		messages = append(messages, &schema.Message{Role: schema.System, Content: system})
		messages = append(messages, history...)

		toolInfos, err := d.advertisedToolInfos(proj, sess, ag)
		if err != nil {
			return err
		}

		req := &provider.CompletionRequest{
			Model:       model.ID,
			Messages:    messages,
			Tools:       provider.ConvertToEinoTools(toolInfos),
			Temperature: ag.Temperature,
			TopP:        ag.TopP,
			MaxTokens:   opts.MaxTokens,
		}

		stream, err := callProvider(ctx, prov, req)
		if err != nil {
			return d.recordProviderFailure(ctx, threadID, err)
		}

		d.setState(threadID, StateStreaming)
		text, calls, usage, err := streamResponse(stream, cancelCh, nil)
		if err != nil {
			if errors.Is(err, corerr.ErrCancelled) {
				return nil
			}
			return d.recordProviderFailure(ctx, threadID, err)
		}

		if text != "" || len(calls) > 0 || usage != nil {
			if _, err := d.threads.AppendEvent(ctx, threadID, types.EventAgentMessage, types.AgentMessageData{
				Text:  text,
				Usage: usage,
			}); err != nil {
				return err
			}
		}

		if len(calls) == 0 {
			return nil
		}

		d.setState(threadID, StateAwaitingTool)
		for _, call := range calls {
			if cancelled(cancelCh) {
				return nil
			}
			if call.Name == "" {
				continue
			}
			if err := d.handleToolCall(ctx, threadID, proj, sess, cancelCh, time.Now().Add(deadline), call.Name, call.Args); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("agent: exceeded %d tool iterations on thread %s", MaxToolIterations, threadID)
}

// loadScope resolves a thread's owning Session and Project, either of
// which may be nil for a standalone thread (both are allowed to be
// optional).
func (d *Driver) loadScope(ctx context.Context, th *types.Thread) (*types.Session, *types.Project, error) {
	var sess *types.Session
	var proj *types.Project
	var err error

	if th.SessionID != nil {
		sess, err = d.sessions.Get(ctx, *th.SessionID)
		if err != nil {
			return nil, nil, err
		}
	}

	switch {
	case th.ProjectID != nil:
		proj, err = d.projects.Get(ctx, *th.ProjectID)
	case sess != nil && sess.ProjectID != "":
		proj, err = d.projects.Get(ctx, sess.ProjectID)
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, proj, nil
}

// resolveModel picks the Provider and model for this turn: an explicit
// "provider/model" override, or the Registry's configured default. The
// full Model (not just its id) is returned so callers can read its
// ContextLength for compaction's threshold check.
func (d *Driver) resolveModel(override string) (provider.Provider, *types.Model, error) {
	if override != "" {
		providerID, modelID := provider.ParseModelString(override)
		prov, err := d.providers.Get(providerID)
		if err != nil {
			return nil, nil, err
		}
		model, err := d.providers.GetModel(providerID, modelID)
		if err != nil {
			return nil, nil, err
		}
		return prov, model, nil
	}

	model, err := d.providers.DefaultModel()
	if err != nil {
		return nil, nil, err
	}
	prov, err := d.providers.Get(model.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	return prov, model, nil
}

// approvalDeadline resolves RunOptions into a concrete wait duration,
// honoring the boundary case of an immediate timeout.
func (d *Driver) approvalDeadline(opts RunOptions) time.Duration {
	if opts.NegativeApprovalDeadline {
		return 0
	}
	if opts.ApprovalDeadline > 0 {
		return opts.ApprovalDeadline
	}
	return DefaultApprovalDeadline
}

// recordProviderFailure materializes "Provider errors propagate as
// a failed AGENT_MESSAGE ... and terminate the turn" by writing a
// SYSTEM_NOTE and returning the original error to the caller — the Core
// does not retry internally past this point.
func (d *Driver) recordProviderFailure(ctx context.Context, threadID string, cause error) error {
	_, appendErr := d.threads.AppendEvent(ctx, threadID, types.EventSystemNote, types.SystemNoteData{
		Text: fmt.Sprintf("turn failed: %s", cause),
	})
	if appendErr != nil {
		return appendErr
	}
	return cause
}
