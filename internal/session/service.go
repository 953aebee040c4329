// Package session provides CRUD over Sessions: the configuration
// and policy scope that groups a project's Threads. Turn-by-turn
// conversation driving lives in internal/agent, not here — this package
// only manages the Session row itself.
package session

import (
	"context"
	"time"

	"github.com/laceai/lace-core/internal/store"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/oklog/ulid/v2"
)

// Service is the CRUD surface over Sessions.
type Service struct {
	store store.Store
}

// NewService builds a Session service over an Event Store.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// CreateParams are the fields a new Session may be seeded with;
// ProjectID and Name are required, the rest are optional overrides.
type CreateParams struct {
	ProjectID            string
	Name                 string
	Description          string
	WorkingDirectory     string
	Configuration        map[string]any
	EnvironmentVariables map[string]string
	ToolPolicies         map[string]string
	ToolAllowlist        []string
}

// Create registers a new Session under a project.
func (s *Service) Create(ctx context.Context, p CreateParams) (*types.Session, error) {
	now := time.Now().UnixMilli()
	sess := &types.Session{
		ID:                   ulid.Make().String(),
		ProjectID:            p.ProjectID,
		Name:                 p.Name,
		Description:          p.Description,
		WorkingDirectory:     p.WorkingDirectory,
		Configuration:        p.Configuration,
		EnvironmentVariables: p.EnvironmentVariables,
		ToolPolicies:         p.ToolPolicies,
		ToolAllowlist:        p.ToolAllowlist,
		Status:               types.SessionActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	return s.store.LoadSession(ctx, sessionID)
}

// ListByProject lists sessions owned by a project.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]*types.Session, error) {
	return s.store.LoadSessionsByProject(ctx, projectID)
}

// SetStatus transitions a session's lifecycle status. Only the stored
// status changes; the Agent turn driver does not read it, so turns can
// still run against an archived or completed session.
func (s *Service) SetStatus(ctx context.Context, sessionID string, status types.SessionStatus) error {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Status = status
	sess.UpdatedAt = time.Now().UnixMilli()
	return s.store.UpdateSession(ctx, sess)
}

// SetName renames a session, as done once a turn driver names a
// still-default session from its first user message.
func (s *Service) SetName(ctx context.Context, sessionID, name string) error {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Name = name
	sess.UpdatedAt = time.Now().UnixMilli()
	return s.store.UpdateSession(ctx, sess)
}

// SetToolPolicy updates a single tool's policy override on a session
// (the session-level layer of the policy merge).
func (s *Service) SetToolPolicy(ctx context.Context, sessionID, toolName string, policy types.Policy) error {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.ToolPolicies == nil {
		sess.ToolPolicies = make(map[string]string)
	}
	sess.ToolPolicies[toolName] = string(policy)
	sess.UpdatedAt = time.Now().UnixMilli()
	return s.store.UpdateSession(ctx, sess)
}

// SetToolAllowlist replaces a session's tool allowlist.
func (s *Service) SetToolAllowlist(ctx context.Context, sessionID string, allowlist []string) error {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.ToolAllowlist = allowlist
	sess.UpdatedAt = time.Now().UnixMilli()
	return s.store.UpdateSession(ctx, sess)
}

// Delete removes a Session; the Event Store cascades to its Threads and
// their Events.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}
