package engine

import (
	"context"
	"errors"
	"fmt"

	"taskline/internal/domain"
	"taskline/internal/repo"
)

// TaskListOptions select and page tasks. ProjectID empty means the caller's
// personal scope.
type TaskListOptions struct {
	InstanceID string
	ProjectID  string
	ListID     string
	Status     string
	Skip       int
	Limit      int
}

// TaskPage is one page of results plus the filtered total before pagination.
type TaskPage struct {
	Tasks []domain.Task
	Total int
	Skip  int
}

func (e Engine) ListTasks(ctx context.Context, opts TaskListOptions) (TaskPage, error) {
	if err := e.requireInstance(ctx, opts.InstanceID); err != nil {
		return TaskPage{}, err
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}
	if opts.Limit <= 0 {
		opts.Limit = e.Config.DefaultLimit()
	}

	f := repo.TaskFilters{
		ListID: opts.ListID,
		Status: normalizeStatus(opts.Status),
		Skip:   opts.Skip,
		Limit:  opts.Limit,
	}
	if e.Config != nil && e.Config.Listing.IncludeArchived {
		f.IncludeArchived = true
	}
	if opts.ProjectID != "" {
		if err := e.Auth.RequireMember(ctx, opts.ProjectID, opts.InstanceID); err != nil {
			return TaskPage{}, err
		}
		f.Scope = domain.ScopeProject
		f.ProjectID = opts.ProjectID
	} else {
		f.Scope = domain.ScopePersonal
		f.OwnerID = opts.InstanceID
	}

	tasks, total, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{Tasks: tasks, Total: total, Skip: opts.Skip}, nil
}

// MyTasks aggregates the caller's personal tasks and the project tasks
// currently assigned to it.
type MyTasks struct {
	Personal []domain.Task
	Project  []domain.Task
}

func (e Engine) GetMyTasks(ctx context.Context, instanceID string) (MyTasks, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return MyTasks{}, err
	}
	personal, _, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		Scope:   domain.ScopePersonal,
		OwnerID: instanceID,
	})
	if err != nil {
		return MyTasks{}, err
	}
	project, _, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		Scope:      domain.ScopeProject,
		AssignedTo: instanceID,
	})
	if err != nil {
		return MyTasks{}, err
	}
	return MyTasks{Personal: personal, Project: project}, nil
}

// NextTask picks the most urgent actionable task for the caller in the given
// scope.
func (e Engine) NextTask(ctx context.Context, instanceID, projectID string) (domain.Task, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Task{}, err
	}
	scope := domain.ScopePersonal
	ownerKey := instanceID
	if projectID != "" {
		if err := e.Auth.RequireMember(ctx, projectID, instanceID); err != nil {
			return domain.Task{}, err
		}
		scope = domain.ScopeProject
		ownerKey = projectID
	}
	t, err := e.Repo.NextTask(ctx, scope, ownerKey, instanceID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, NotFoundError{Code: CodeTaskNotFound, Message: "no actionable task"}
	}
	return t, err
}

// Priorities returns the closed priority vocabulary.
func (e Engine) Priorities() []string {
	return domain.Priorities()
}

// TaskStatuses returns the closed status vocabulary as reported to callers.
func (e Engine) TaskStatuses() []string {
	return domain.TaskStatuses()
}

// TailEvents returns the newest lifecycle events, optionally filtered.
func (e Engine) TailEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		return nil, ValidationError{Code: CodeMissingParameter, Message: fmt.Sprintf("limit %d exceeds maximum 500", limit)}
	}
	return e.Repo.LatestEvents(ctx, limit, projectID, evtType, entityKind, entityID)
}
