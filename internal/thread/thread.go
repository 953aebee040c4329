// Package thread is the Thread Manager: the one door through
// which the Agent and the UI touch the Event Store for conversation
// data. It never interprets event payloads beyond structural
// invariants (ordering, at-most-one-result-per-call) — semantic
// interpretation lives in internal/agent.
package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/laceai/lace-core/internal/store"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/oklog/ulid/v2"
)

// Manager is the Thread Manager.
type Manager struct {
	store store.Store
}

// NewManager builds a Thread Manager over an Event Store.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// CreateThread creates a new thread, optionally linked to a session
// and/or project. A thread is normally created by the Agent the first
// time a turn runs against it.
func (m *Manager) CreateThread(ctx context.Context, sessionID, projectID *string) (*types.Thread, error) {
	now := time.Now().UnixMilli()
	t := &types.Thread{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveThread(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadThread returns a thread's header.
func (m *Manager) LoadThread(ctx context.Context, id string) (*types.Thread, error) {
	return m.store.LoadThread(ctx, id)
}

// DeleteThread removes a thread and cascades to its events.
func (m *Manager) DeleteThread(ctx context.Context, id string) error {
	return m.store.DeleteThread(ctx, id)
}

// ListThreadsBySession lists threads owned by a session.
func (m *Manager) ListThreadsBySession(ctx context.Context, sessionID string) ([]*types.Thread, error) {
	return m.store.ListThreadsBySession(ctx, sessionID)
}

// AppendEvent mints an id and timestamp, marshals payload, and appends
// the event to a thread. Timestamps must be non-decreasing in append
// order: if the clock has not advanced past the thread's last event,
// the append is bumped forward by one millisecond.
func (m *Manager) AppendEvent(ctx context.Context, threadID string, kind types.EventType, payload any) (*types.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	t, err := m.store.LoadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UnixMilli()
	if ts <= t.UpdatedAt {
		ts = t.UpdatedAt + 1
	}

	e := &types.Event{
		ID:        ulid.Make().String(),
		ThreadID:  threadID,
		Timestamp: ts,
		Type:      kind,
		Data:      data,
	}
	if err := m.store.AppendEvent(ctx, threadID, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetMetadata merges a key into a thread's opaque metadata mapping. Used
// for non-semantic annotations only, e.g. a todo list or the compaction
// summary and cutoff.
func (m *Manager) SetMetadata(ctx context.Context, threadID, key string, value any) error {
	t, err := m.store.LoadThread(ctx, threadID)
	if err != nil {
		return err
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]any)
	}
	t.Metadata[key] = value
	t.UpdatedAt = time.Now().UnixMilli()
	return m.store.SaveThread(ctx, t)
}

// ListPendingApprovalsForSession fans out over every thread a session
// owns and returns the union of their pending approvals, ordered by
// request timestamp ascending.
func (m *Manager) ListPendingApprovalsForSession(ctx context.Context, sessionID string) ([]store.PendingApproval, error) {
	threads, err := m.store.ListThreadsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return nil, nil
	}
	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	return m.store.GetPendingApprovals(ctx, ids)
}

// GetApprovalDecision returns the decision for a call, if any has been
// recorded on the thread.
func (m *Manager) GetApprovalDecision(ctx context.Context, threadID, callID string) (*types.ApprovalDecision, error) {
	return m.store.GetApprovalDecision(ctx, threadID, callID)
}
