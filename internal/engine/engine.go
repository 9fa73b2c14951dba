package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/engine/auth"
	"taskline/internal/events"
	"taskline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Auth   auth.Service
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Auth:   auth.Service{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// requireInstance validates the caller id and resolves it to a registered
// instance.
func (e Engine) requireInstance(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return missingParam("instanceId")
	}
	ok, err := e.Repo.InstanceExists(ctx, instanceID)
	if err != nil {
		return err
	}
	if !ok {
		return ValidationError{Code: CodeInvalidInstanceID, Message: fmt.Sprintf("unknown instance %s", instanceID)}
	}
	return nil
}

func normalizePriority(p string) string {
	switch p {
	case domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
		return p
	}
	return domain.PriorityMedium
}

// normalizeStatus maps the reported "not_started" alias back to the stored
// value.
func normalizeStatus(s string) string {
	if s == "not_started" {
		return domain.StatusPending
	}
	return s
}

// ensureTaskTransition is the pure status state machine guard. It assumes
// both statuses come from the closed vocabulary.
func ensureTaskTransition(oldStatus, newStatus string) error {
	if oldStatus == newStatus {
		return nil
	}
	if oldStatus == domain.StatusArchived {
		return StateConflictError{Code: CodeTaskNotCompleted, Message: "archived task cannot change status"}
	}
	switch newStatus {
	case domain.StatusPending, domain.StatusInProgress:
		// Administrative override via update; allowed from any live status.
		return nil
	case domain.StatusCompleted:
		if oldStatus == domain.StatusCompletedVerified {
			return StateConflictError{Code: CodeTaskNotCompleted, Message: "verified task cannot return to completed"}
		}
		return nil
	case domain.StatusCompletedVerified:
		if oldStatus != domain.StatusCompleted {
			return StateConflictError{Code: CodeTaskNotCompleted, Message: "task must be completed before verification"}
		}
		return nil
	case domain.StatusArchived:
		if oldStatus != domain.StatusCompleted && oldStatus != domain.StatusCompletedVerified {
			return StateConflictError{Code: CodeTaskNotCompleted, Message: "task must be completed before archiving"}
		}
		return nil
	}
	return ValidationError{Code: CodeMissingParameter, Message: fmt.Sprintf("invalid status %q", newStatus)}
}

// canEditTask applies the ownership rules for mutating a task: the owner for
// personal tasks; for project tasks the creator, the current assignee, or an
// instance holding the assign capability.
func (e Engine) canEditTask(ctx context.Context, instanceID string, t domain.Task) error {
	switch t.Scope {
	case domain.ScopePersonal:
		if t.OwnerID == nil || *t.OwnerID != instanceID {
			return auth.ForbiddenError{Capability: "personal task " + t.ID}
		}
		return nil
	case domain.ScopeProject:
		if err := e.Auth.RequireMember(ctx, *t.ProjectID, instanceID); err != nil {
			return err
		}
		if t.CreatedBy == instanceID {
			return nil
		}
		if t.AssignedTo != nil && *t.AssignedTo == instanceID {
			return nil
		}
		ok, err := e.Auth.HasPermission(ctx, instanceID, repo.PermAssignTask)
		if err != nil {
			return err
		}
		if !ok {
			return auth.ForbiddenError{Capability: "task " + t.ID}
		}
		return nil
	}
	return ValidationError{Code: CodeInvalidTaskID, Message: fmt.Sprintf("task %s has unknown scope", t.ID)}
}

// canReadTask gates lookups: owner for personal tasks, membership for
// project tasks.
func (e Engine) canReadTask(ctx context.Context, instanceID string, t domain.Task) error {
	if t.Scope == domain.ScopePersonal {
		if t.OwnerID == nil || *t.OwnerID != instanceID {
			return auth.ForbiddenError{Capability: "personal task " + t.ID}
		}
		return nil
	}
	return e.Auth.RequireMember(ctx, *t.ProjectID, instanceID)
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	InstanceID  string
	Title       string
	Description string
	Priority    string
	ListID      string
	ProjectID   string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := e.requireInstance(ctx, opts.InstanceID); err != nil {
		return domain.Task{}, err
	}
	if opts.Title == "" {
		return domain.Task{}, missingParam("title")
	}
	listID := opts.ListID
	if listID == "" {
		listID = domain.DefaultListID
	}
	scope := domain.ScopePersonal
	ownerKey := opts.InstanceID
	if opts.ProjectID != "" {
		if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Task{}, NotFoundError{Code: CodeProjectNotFound, Message: fmt.Sprintf("project %s not found", opts.ProjectID)}
			}
			return domain.Task{}, err
		}
		if err := e.Auth.RequireMember(ctx, opts.ProjectID, opts.InstanceID); err != nil {
			return domain.Task{}, err
		}
		scope = domain.ScopeProject
		ownerKey = opts.ProjectID
	}

	now := e.now()
	ts := now.UTC().Format(time.RFC3339)
	t := domain.Task{
		Scope:     scope,
		ListID:    listID,
		Title:     opts.Title,
		Priority:  normalizePriority(opts.Priority),
		Status:    domain.StatusPending,
		CreatedBy: opts.InstanceID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if opts.Description != "" {
		t.Description = &opts.Description
	}
	if scope == domain.ScopeProject {
		t.ProjectID = &opts.ProjectID
		t.ID = projectTaskID(opts.ProjectID, listID, now)
	} else {
		owner := opts.InstanceID
		t.OwnerID = &owner
		t.ID = personalTaskID(listID, now)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureTaskList(ctx, tx, domain.TaskList{
		Scope:     scope,
		OwnerKey:  ownerKey,
		ID:        listID,
		CreatedBy: opts.InstanceID,
		CreatedAt: ts,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TaskCreated, opts.ProjectID, "task", t.ID, opts.InstanceID,
		events.EventPayload{"title": t.Title, "priority": t.Priority, "list_id": t.ListID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// GetTask looks a task up by id. Archived tasks report not found even though
// the row is retained.
func (e Engine) GetTask(ctx context.Context, instanceID, taskID string) (domain.Task, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Task{}, err
	}
	if taskID == "" {
		return domain.Task{}, missingParam("taskId")
	}
	if _, ok := ParseTaskScope(taskID); !ok {
		return domain.Task{}, ValidationError{Code: CodeInvalidTaskID, Message: fmt.Sprintf("malformed task id %s", taskID)}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, taskNotFound(taskID)
	}
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == domain.StatusArchived {
		return domain.Task{}, taskNotFound(taskID)
	}
	if err := e.canReadTask(ctx, instanceID, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions carries a partial update; nil fields stay untouched.
type TaskUpdateOptions struct {
	InstanceID  string
	TaskID      string
	Title       *string
	Description *string
	Priority    *string
	Status      *string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if err := e.requireInstance(ctx, opts.InstanceID); err != nil {
		return domain.Task{}, err
	}
	if opts.TaskID == "" {
		return domain.Task{}, missingParam("taskId")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, taskNotFound(opts.TaskID)
	}
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == domain.StatusArchived {
		return domain.Task{}, taskNotFound(opts.TaskID)
	}
	if err := e.canEditTask(ctx, opts.InstanceID, t); err != nil {
		return domain.Task{}, err
	}

	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, missingParam("title")
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		if *opts.Description == "" {
			t.Description = nil
		} else {
			desc := *opts.Description
			t.Description = &desc
		}
	}
	if opts.Priority != nil {
		t.Priority = normalizePriority(*opts.Priority)
	}
	if opts.Status != nil {
		next := normalizeStatus(*opts.Status)
		switch next {
		case domain.StatusPending, domain.StatusInProgress:
		default:
			return domain.Task{}, ValidationError{Code: CodeMissingParameter,
				Message: fmt.Sprintf("status %q cannot be set via update; use the lifecycle operations", *opts.Status)}
		}
		if err := ensureTaskTransition(t.Status, next); err != nil {
			return domain.Task{}, err
		}
		t.Status = next
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskUpdated, optionalString(t.ProjectID), "task", t.ID, opts.InstanceID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// CompleteTask moves a live task to completed and records the completer for
// later verification gating.
func (e Engine) CompleteTask(ctx context.Context, instanceID, taskID string) (domain.Task, error) {
	return e.transition(ctx, instanceID, taskID, domain.StatusCompleted, events.TaskCompleted)
}

// VerifyTask moves a completed task to completed_verified. The completer can
// never verify its own work.
func (e Engine) VerifyTask(ctx context.Context, instanceID, taskID string) (domain.Task, error) {
	return e.transition(ctx, instanceID, taskID, domain.StatusCompletedVerified, events.TaskVerified)
}

// ArchiveTask soft-removes a completed task: the row stays for audit but the
// task stops resolving by id.
func (e Engine) ArchiveTask(ctx context.Context, instanceID, taskID string) error {
	_, err := e.transition(ctx, instanceID, taskID, domain.StatusArchived, events.TaskArchived)
	return err
}

func (e Engine) transition(ctx context.Context, instanceID, taskID, target, evtType string) (domain.Task, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Task{}, err
	}
	if taskID == "" {
		return domain.Task{}, missingParam("taskId")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, taskNotFound(taskID)
	}
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == domain.StatusArchived {
		return domain.Task{}, taskNotFound(taskID)
	}
	if err := ensureTaskTransition(t.Status, target); err != nil {
		return domain.Task{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	switch target {
	case domain.StatusCompleted:
		if err := e.canEditTask(ctx, instanceID, t); err != nil {
			return domain.Task{}, err
		}
		completer := instanceID
		t.CompletedBy = &completer
		t.CompletedAt = &now
	case domain.StatusCompletedVerified:
		if err := e.canReadTask(ctx, instanceID, t); err != nil {
			return domain.Task{}, err
		}
		completer := t.CreatedBy
		if t.CompletedBy != nil {
			completer = *t.CompletedBy
		}
		if !auth.VerifierAllowed(completer, instanceID) {
			return domain.Task{}, auth.SelfVerificationError{TaskID: t.ID}
		}
		verifier := instanceID
		t.VerifiedBy = &verifier
	case domain.StatusArchived:
		if err := e.canEditTask(ctx, instanceID, t); err != nil {
			return domain.Task{}, err
		}
	}
	t.Status = target
	t.UpdatedAt = now

	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, optionalString(t.ProjectID), "task", t.ID, instanceID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeleteTask purges a task. Only completed or verified tasks can be deleted.
func (e Engine) DeleteTask(ctx context.Context, instanceID, taskID string) error {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return err
	}
	if taskID == "" {
		return missingParam("taskId")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return taskNotFound(taskID)
	}
	if err != nil {
		return err
	}
	if t.Status == domain.StatusArchived {
		return taskNotFound(taskID)
	}
	if err := e.canEditTask(ctx, instanceID, t); err != nil {
		return err
	}
	switch t.Status {
	case domain.StatusCompleted, domain.StatusCompletedVerified:
	default:
		return StateConflictError{Code: CodeTaskNotCompleted, Message: "task must be completed before deletion"}
	}
	if err := e.Repo.DeleteTask(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TaskDeleted, optionalString(t.ProjectID), "task", t.ID, instanceID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AssignTask pushes a project task onto another member. Requires the assign
// capability or task creatorship.
func (e Engine) AssignTask(ctx context.Context, instanceID, taskID, assigneeID string) (domain.Task, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Task{}, err
	}
	if taskID == "" {
		return domain.Task{}, missingParam("taskId")
	}
	if assigneeID == "" {
		return domain.Task{}, missingParam("assigneeId")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, taskNotFound(taskID)
	}
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == domain.StatusArchived {
		return domain.Task{}, taskNotFound(taskID)
	}
	if t.Scope != domain.ScopeProject {
		return domain.Task{}, ValidationError{Code: CodeInvalidTaskID, Message: "personal tasks cannot be assigned"}
	}
	if err := e.Auth.RequireMember(ctx, *t.ProjectID, instanceID); err != nil {
		return domain.Task{}, err
	}
	if t.CreatedBy != instanceID && assigneeID != instanceID {
		if err := e.Auth.RequirePermission(ctx, instanceID, repo.PermAssignTask); err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.Auth.RequireMember(ctx, *t.ProjectID, assigneeID); err != nil {
		return domain.Task{}, err
	}

	t.AssignedTo = &assigneeID
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskAssigned, *t.ProjectID, "task", t.ID, instanceID,
		events.EventPayload{"assignee": assigneeID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ClaimTask is the self-service pull: any member may take an unassigned live
// task. Concurrent claims resolve through a conditional update so exactly
// one caller wins.
func (e Engine) ClaimTask(ctx context.Context, instanceID, taskID string) (domain.Task, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Task{}, err
	}
	if taskID == "" {
		return domain.Task{}, missingParam("taskId")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, taskNotFound(taskID)
	}
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == domain.StatusArchived {
		return domain.Task{}, taskNotFound(taskID)
	}
	if t.Scope == domain.ScopeProject {
		if err := e.Auth.RequireMember(ctx, *t.ProjectID, instanceID); err != nil {
			return domain.Task{}, err
		}
	} else if t.OwnerID == nil || *t.OwnerID != instanceID {
		return domain.Task{}, auth.ForbiddenError{Capability: "personal task " + t.ID}
	}

	now := e.now().UTC().Format(time.RFC3339)
	won, err := e.Repo.ClaimTask(ctx, tx, taskID, instanceID, now)
	if err != nil {
		return domain.Task{}, err
	}
	if !won {
		cur, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, taskNotFound(taskID)
		}
		if err != nil {
			return domain.Task{}, err
		}
		if cur.AssignedTo != nil {
			return domain.Task{}, StateConflictError{Code: CodeAlreadyAssigned,
				Message: fmt.Sprintf("task %s is already assigned to %s", taskID, *cur.AssignedTo)}
		}
		return domain.Task{}, StateConflictError{Code: CodeTaskNotCompleted, Message: "task is not claimable in its current status"}
	}
	if err := e.Events.Append(ctx, tx, events.TaskClaimed, optionalString(t.ProjectID), "task", t.ID, instanceID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.AssignedTo = &instanceID
	t.UpdatedAt = now
	return t, nil
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
