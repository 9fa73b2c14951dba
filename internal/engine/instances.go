package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/repo"
)

// RegisterInstance bootstraps a calling instance with an optional starting
// role. Registering an existing id is a no-op for the instance row.
func (e Engine) RegisterInstance(ctx context.Context, instanceID, name, role string) (domain.Instance, error) {
	if instanceID == "" {
		return domain.Instance{}, missingParam("instanceId")
	}
	if role != "" {
		ok, err := e.Repo.RoleExists(ctx, role)
		if err != nil {
			return domain.Instance{}, err
		}
		if !ok {
			return domain.Instance{}, ValidationError{Code: CodeMissingParameter, Message: fmt.Sprintf("unknown role %s", role)}
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Instance{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.EnsureInstance(ctx, tx, instanceID, name, now); err != nil {
		return domain.Instance{}, err
	}
	if role != "" {
		if err := e.Repo.GrantRole(ctx, tx, instanceID, role); err != nil {
			return domain.Instance{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, events.InstanceRegister, "", "instance", instanceID, instanceID,
		events.EventPayload{"name": name, "role": role}); err != nil {
		return domain.Instance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Instance{}, err
	}
	return e.Repo.GetInstance(ctx, instanceID)
}

// GetInstance returns an instance with its roles and joined projects.
func (e Engine) GetInstance(ctx context.Context, instanceID string) (domain.Instance, error) {
	if instanceID == "" {
		return domain.Instance{}, missingParam("instanceId")
	}
	inst, err := e.Repo.GetInstance(ctx, instanceID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Instance{}, ValidationError{Code: CodeInvalidInstanceID, Message: fmt.Sprintf("unknown instance %s", instanceID)}
	}
	return inst, err
}

// TakeOnRole grants the caller an additional role from the closed role
// vocabulary.
func (e Engine) TakeOnRole(ctx context.Context, instanceID, role string) (domain.Instance, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Instance{}, err
	}
	if role == "" {
		return domain.Instance{}, missingParam("role")
	}
	ok, err := e.Repo.RoleExists(ctx, role)
	if err != nil {
		return domain.Instance{}, err
	}
	if !ok {
		return domain.Instance{}, ValidationError{Code: CodeMissingParameter, Message: fmt.Sprintf("unknown role %s", role)}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Instance{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.GrantRole(ctx, tx, instanceID, role); err != nil {
		return domain.Instance{}, err
	}
	if err := e.Events.Append(ctx, tx, events.InstanceRoleTaken, "", "instance", instanceID, instanceID,
		events.EventPayload{"role": role}); err != nil {
		return domain.Instance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Instance{}, err
	}
	return e.Repo.GetInstance(ctx, instanceID)
}

// CreateProject creates a shared workspace. Requires the project creation
// capability; the creator joins as first member.
func (e Engine) CreateProject(ctx context.Context, instanceID, projectID, name, description string) (domain.Project, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Project{}, err
	}
	if projectID == "" {
		return domain.Project{}, missingParam("projectId")
	}
	if name == "" {
		name = projectID
	}
	if err := e.Auth.RequirePermission(ctx, instanceID, repo.PermCreateProject); err != nil {
		return domain.Project{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          projectID,
		Name:        name,
		Description: description,
		CreatedBy:   instanceID,
		CreatedAt:   now,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		if errors.Is(err, repo.ErrExists) {
			return domain.Project{}, StateConflictError{Code: CodeListExists, Message: fmt.Sprintf("project %s already exists", projectID)}
		}
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.AddProjectMember(ctx, tx, domain.ProjectMember{
		ProjectID:  projectID,
		InstanceID: instanceID,
		Role:       "owner",
		JoinedAt:   now,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectCreated, projectID, "project", projectID, instanceID,
		events.EventPayload{"name": name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// JoinProject adds the caller to a project's member table.
func (e Engine) JoinProject(ctx context.Context, instanceID, projectID, role string) error {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return err
	}
	if projectID == "" {
		return missingParam("projectId")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Code: CodeProjectNotFound, Message: fmt.Sprintf("project %s not found", projectID)}
		}
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.AddProjectMember(ctx, tx, domain.ProjectMember{
		ProjectID:  projectID,
		InstanceID: instanceID,
		Role:       role,
		JoinedAt:   e.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectJoined, projectID, "project", projectID, instanceID,
		events.EventPayload{"role": role}); err != nil {
		return err
	}
	return tx.Commit()
}
