// Package store is the Event Store: durable, crash-consistent
// persistence of Projects, Sessions, Threads and Events, backed by
// modernc.org/sqlite, plus the derived approval queries the Thread
// Manager and the Approval Coordinator build on. Single-writer per
// process; readers see a consistent snapshot, a promise made by
// sqlite's own locking rather than a hand-rolled file lock.
package store

import (
	"context"
	"fmt"

	"github.com/laceai/lace-core/pkg/types"
)

// PendingApproval is one row of getPendingApprovals(scope): a
// TOOL_APPROVAL_REQUEST with no matching TOOL_APPROVAL_RESPONSE, joined
// against its originating TOOL_CALL for the tool name and arguments.
type PendingApproval struct {
	ThreadID         string
	CallID           string
	ToolName         string
	Arguments        map[string]any
	RequestTimestamp int64
}

// Store is the Event Store's contract. A disabled store (see NullStore)
// satisfies it too: reads return empty, writes are silent no-ops.
type Store interface {
	SaveProject(ctx context.Context, p *types.Project) error
	LoadProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	UpdateProject(ctx context.Context, p *types.Project) error
	DeleteProject(ctx context.Context, id string) error

	SaveSession(ctx context.Context, s *types.Session) error
	LoadSession(ctx context.Context, id string) (*types.Session, error)
	LoadSessionsByProject(ctx context.Context, projectID string) ([]*types.Session, error)
	UpdateSession(ctx context.Context, s *types.Session) error
	DeleteSession(ctx context.Context, id string) error

	SaveThread(ctx context.Context, t *types.Thread) error
	LoadThread(ctx context.Context, id string) (*types.Thread, error)
	DeleteThread(ctx context.Context, id string) error
	ListThreadsBySession(ctx context.Context, sessionID string) ([]*types.Thread, error)

	AppendEvent(ctx context.Context, threadID string, e *types.Event) error
	LoadEvents(ctx context.Context, threadID string) ([]*types.Event, error)

	GetPendingApprovals(ctx context.Context, threadIDs []string) ([]PendingApproval, error)
	GetApprovalDecision(ctx context.Context, threadID, callID string) (*types.ApprovalDecision, error)

	Close() error
}

// ErrThreadMissing is returned by AppendEvent when the owning thread
// does not exist: appending to a thread that was never created must fail.
var ErrThreadMissing = fmt.Errorf("thread does not exist")
