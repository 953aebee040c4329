// Package approval is the Approval Coordinator: it turns the
// ask-and-wait tool-approval protocol into a pure function of the
// event log. It holds no in-process approval state — a process-wide
// approved/patterns/pending map is exactly the kind of singleton state
// that doesn't survive a process restart or scale past one instance.
// Two threads can never share a decision here because every read and
// write goes through the Event Store, scoped by threadId.
package approval

import (
	"context"
	"time"

	"github.com/laceai/lace-core/internal/corerr"
	"github.com/laceai/lace-core/internal/store"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/pkg/types"
)

// Coordinator brokers approval requests and responses through the
// Event Store, appending via the Thread Manager so every request and
// response gets the same ulid/timestamp minting as any other event.
type Coordinator struct {
	store   store.Store
	threads *thread.Manager
}

// NewCoordinator builds an Approval Coordinator over a Thread Manager.
func NewCoordinator(s store.Store, threads *thread.Manager) *Coordinator {
	return &Coordinator{store: s, threads: threads}
}

// RequestApproval appends a TOOL_APPROVAL_REQUEST for callId. Idempotent:
// if a request already exists for this callId (decided or not), the
// call is a no-op.
func (c *Coordinator) RequestApproval(ctx context.Context, threadID, callID string) error {
	requested, _, err := c.lookup(ctx, threadID, callID)
	if err != nil {
		return err
	}
	if requested {
		return nil
	}

	_, err = c.threads.AppendEvent(ctx, threadID, types.EventToolApprovalRequest, types.ToolApprovalRequestData{CallID: callID})
	return err
}

// SubmitDecision appends a TOOL_APPROVAL_RESPONSE for callId. Fails
// with ErrNoPendingApproval if no request exists, and ErrAlreadyDecided
// if a response has already been recorded — exactly one transition per
// call-id.
func (c *Coordinator) SubmitDecision(ctx context.Context, threadID, callID string, decision types.ApprovalDecision) error {
	requested, decided, err := c.lookup(ctx, threadID, callID)
	if err != nil {
		return err
	}
	if !requested {
		return corerr.ErrNoPendingApproval
	}
	if decided {
		return corerr.ErrAlreadyDecided
	}

	payload := types.ToolApprovalResponseData{CallID: callID, Decision: decision}
	_, err = c.threads.AppendEvent(ctx, threadID, types.EventToolApprovalResponse, payload)
	return err
}

// AwaitDecision polls the log until a decision for callId appears or
// the deadline elapses. On timeout it returns ErrApprovalTimeout; the
// Agent treats that as deny for the purposes of the current
// turn without writing anything further — a decision that lands later
// is still visible in the log.
func (c *Coordinator) AwaitDecision(ctx context.Context, threadID, callID string, deadline time.Time) (types.ApprovalDecision, error) {
	const pollInterval = 50 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		decision, err := c.store.GetApprovalDecision(ctx, threadID, callID)
		if err != nil {
			return "", err
		}
		if decision != nil {
			return *decision, nil
		}
		if time.Now().After(deadline) {
			return "", corerr.ErrApprovalTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// lookup reports whether a TOOL_APPROVAL_REQUEST exists for callId, and
// whether it has already been decided.
func (c *Coordinator) lookup(ctx context.Context, threadID, callID string) (requested, decided bool, err error) {
	decision, err := c.store.GetApprovalDecision(ctx, threadID, callID)
	if err != nil {
		return false, false, err
	}
	if decision != nil {
		return true, true, nil
	}

	pending, err := c.store.GetPendingApprovals(ctx, []string{threadID})
	if err != nil {
		return false, false, err
	}
	for _, p := range pending {
		if p.CallID == callID {
			return true, false, nil
		}
	}
	return false, false, nil
}
