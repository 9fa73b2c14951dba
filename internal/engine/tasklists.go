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

// resolveListScope maps an optional project id onto the list's scope and
// owner key, enforcing membership for project scopes.
func (e Engine) resolveListScope(ctx context.Context, instanceID, projectID string) (domain.TaskScope, string, error) {
	if projectID == "" {
		return domain.ScopePersonal, instanceID, nil
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", "", NotFoundError{Code: CodeProjectNotFound, Message: fmt.Sprintf("project %s not found", projectID)}
		}
		return "", "", err
	}
	if err := e.Auth.RequireMember(ctx, projectID, instanceID); err != nil {
		return "", "", err
	}
	return domain.ScopeProject, projectID, nil
}

// CreateTaskList creates a named task list. Duplicate ids within a scope
// conflict; project lists additionally need the manage capability.
func (e Engine) CreateTaskList(ctx context.Context, instanceID, listID, projectID string) (domain.TaskList, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.TaskList{}, err
	}
	if listID == "" {
		return domain.TaskList{}, missingParam("listId")
	}
	scope, ownerKey, err := e.resolveListScope(ctx, instanceID, projectID)
	if err != nil {
		return domain.TaskList{}, err
	}
	if scope == domain.ScopeProject {
		if err := e.Auth.RequirePermission(ctx, instanceID, repo.PermManageTaskList); err != nil {
			return domain.TaskList{}, err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskList{}, err
	}
	defer tx.Rollback()

	l := domain.TaskList{
		Scope:     scope,
		OwnerKey:  ownerKey,
		ID:        listID,
		CreatedBy: instanceID,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertTaskList(ctx, tx, l); err != nil {
		if errors.Is(err, repo.ErrExists) {
			return domain.TaskList{}, StateConflictError{Code: CodeListExists, Message: fmt.Sprintf("list %s already exists", listID)}
		}
		return domain.TaskList{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskListCreated, projectID, "tasklist", listID, instanceID, nil); err != nil {
		return domain.TaskList{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskList{}, err
	}
	return l, nil
}

// DeleteTaskList removes a task list. The default list is protected and a
// list holding unfinished tasks refuses deletion rather than orphaning work.
func (e Engine) DeleteTaskList(ctx context.Context, instanceID, listID, projectID string) error {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return err
	}
	if listID == "" {
		return missingParam("listId")
	}
	if listID == domain.DefaultListID {
		return StateConflictError{Code: CodeCannotDeleteDefault, Message: "the default list cannot be deleted"}
	}
	scope, ownerKey, err := e.resolveListScope(ctx, instanceID, projectID)
	if err != nil {
		return err
	}
	if scope == domain.ScopeProject {
		if err := e.Auth.RequirePermission(ctx, instanceID, repo.PermManageTaskList); err != nil {
			return err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetTaskList(ctx, tx, scope, ownerKey, listID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return listNotFound(listID)
		}
		return err
	}
	open, err := e.Repo.CountOpenTasksInList(ctx, tx, scope, ownerKey, listID)
	if err != nil {
		return err
	}
	if open > 0 {
		return StateConflictError{Code: CodeListNotEmpty,
			Message: fmt.Sprintf("list %s still has %d unfinished task(s)", listID, open)}
	}
	if err := e.Repo.DeleteTaskList(ctx, tx, scope, ownerKey, listID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TaskListDeleted, projectID, "tasklist", listID, instanceID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTaskLists enumerates the lists of one scope.
func (e Engine) ListTaskLists(ctx context.Context, instanceID, projectID string) ([]domain.TaskList, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return nil, err
	}
	scope, ownerKey, err := e.resolveListScope(ctx, instanceID, projectID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListTaskLists(ctx, scope, ownerKey)
}
