package store

import (
	"context"

	"github.com/laceai/lace-core/pkg/types"
)

// NullStore is an explicitly disabled Event Store: all reads return
// empty, all writes are silent no-ops. Used for ephemeral/test modes
// where persistence is deliberately turned off.
type NullStore struct{}

var _ Store = NullStore{}

func (NullStore) SaveProject(context.Context, *types.Project) error   { return nil }
func (NullStore) LoadProject(context.Context, string) (*types.Project, error) {
	return nil, nil
}
func (NullStore) ListProjects(context.Context) ([]*types.Project, error) { return nil, nil }
func (NullStore) UpdateProject(context.Context, *types.Project) error   { return nil }
func (NullStore) DeleteProject(context.Context, string) error          { return nil }

func (NullStore) SaveSession(context.Context, *types.Session) error { return nil }
func (NullStore) LoadSession(context.Context, string) (*types.Session, error) {
	return nil, nil
}
func (NullStore) LoadSessionsByProject(context.Context, string) ([]*types.Session, error) {
	return nil, nil
}
func (NullStore) UpdateSession(context.Context, *types.Session) error { return nil }
func (NullStore) DeleteSession(context.Context, string) error        { return nil }

func (NullStore) SaveThread(context.Context, *types.Thread) error { return nil }
func (NullStore) LoadThread(context.Context, string) (*types.Thread, error) {
	return nil, nil
}
func (NullStore) DeleteThread(context.Context, string) error { return nil }
func (NullStore) ListThreadsBySession(context.Context, string) ([]*types.Thread, error) {
	return nil, nil
}

func (NullStore) AppendEvent(context.Context, string, *types.Event) error { return nil }
func (NullStore) LoadEvents(context.Context, string) ([]*types.Event, error) {
	return nil, nil
}

func (NullStore) GetPendingApprovals(context.Context, []string) ([]PendingApproval, error) {
	return nil, nil
}
func (NullStore) GetApprovalDecision(context.Context, string, string) (*types.ApprovalDecision, error) {
	return nil, nil
}

func (NullStore) Close() error { return nil }
