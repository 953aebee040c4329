package agent

import (
	"context"
)

// RecoverThread implements the crash/restart recovery policy: for
// every TOOL_CALL on the thread with no matching TOOL_RESULT, decide
// whether to leave it pending or synthesize a terminal failed result.
// It is idempotent — calling it twice on an already-recovered thread is
// a no-op, since a synthesized TOOL_RESULT removes the call from
// OpenCallsWithoutResult on the next replay.
func (d *Driver) RecoverThread(ctx context.Context, threadID string) error {
	view, err := d.threads.Replay(ctx, threadID)
	if err != nil {
		return err
	}

	for _, call := range view.OpenCallsWithoutResult() {
		if view.AwaitingApproval[call.CallID] {
			// A TOOL_APPROVAL_REQUEST exists with no response yet:
			// leave it pending, visible to the UI.
			continue
		}

		decision, err := d.threads.GetApprovalDecision(ctx, threadID, call.CallID)
		if err != nil {
			return err
		}

		switch {
		case decision != nil && decision.IsAllow():
			// A response granted execution but no result was ever
			// appended: the process died mid-execution.
			if err := d.failToolResult(ctx, threadID, call.CallID, "interrupted"); err != nil {
				return err
			}
		case decision != nil:
			// A deny/disable decision landed but the turn never got
			// to write the denied result before terminating.
			if err := d.denyToolResult(ctx, threadID, call.CallID, "interrupted before denial was recorded"); err != nil {
				return err
			}
		default:
			// No approval request at all: either the tool's policy
			// was allow and execution was interrupted before a
			// result was appended, or the turn died before resolving
			// policy. Either way the call is stuck and not
			// automatically re-run.
			if err := d.failToolResult(ctx, threadID, call.CallID, "interrupted"); err != nil {
				return err
			}
		}
	}

	return nil
}

// RecoverAllThreadsForSession is a convenience wrapper for cold-start
// recovery scoped to a session's threads.
func (d *Driver) RecoverAllThreadsForSession(ctx context.Context, sessionID string) error {
	threads, err := d.threads.ListThreadsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, t := range threads {
		if err := d.RecoverThread(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}
