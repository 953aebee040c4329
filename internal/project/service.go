// Package project manages Projects: the long-lived containers that own
// Sessions. Identity can be seeded from git, per FromDirectory
// below, but a Project is always a first-class stored row — never
// reconstructed on the fly.
package project

import (
	"context"
	"time"

	"github.com/laceai/lace-core/internal/store"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/oklog/ulid/v2"
)

// Service is the CRUD surface over Projects, delegating persistence to
// the Event Store.
type Service struct {
	store store.Store
}

// NewService builds a Project service over an Event Store.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Create registers a new Project rooted at workingDirectory. If the
// directory is a git worktree, its root-commit-derived identity (see
// FromDirectory) seeds the project id so re-opening the same repository
// resolves to the same Project across restarts.
func (s *Service) Create(ctx context.Context, name, workingDirectory string) (*types.Project, error) {
	id := ulid.Make().String()
	if info, err := FromDirectory(workingDirectory); err == nil && info.ID != "global" {
		id = info.ID
	}

	now := time.Now().UnixMilli()
	p := &types.Project{
		ID:               id,
		Name:             name,
		WorkingDirectory: workingDirectory,
		CreatedAt:        now,
		LastUsedAt:       now,
	}
	if err := s.store.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*types.Project, error) {
	return s.store.LoadProject(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*types.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *Service) Touch(ctx context.Context, id string) error {
	p, err := s.store.LoadProject(ctx, id)
	if err != nil {
		return err
	}
	p.LastUsedAt = time.Now().UnixMilli()
	return s.store.UpdateProject(ctx, p)
}

func (s *Service) Archive(ctx context.Context, id string, archived bool) error {
	p, err := s.store.LoadProject(ctx, id)
	if err != nil {
		return err
	}
	p.Archived = archived
	return s.store.UpdateProject(ctx, p)
}

// Delete removes a Project; the Event Store cascades to its Sessions,
// their Threads, and all Events therein.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteProject(ctx, id)
}
