package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"taskline/internal/config"
	"taskline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id,scope,owner_id,project_id,list_id,title,description,priority,status,assigned_to,created_by,completed_by,verified_by,created_at,updated_at,completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var scope string
	err := row.Scan(&t.ID, &scope, &t.OwnerID, &t.ProjectID, &t.ListID, &t.Title, &t.Description,
		&t.Priority, &t.Status, &t.AssignedTo, &t.CreatedBy, &t.CompletedBy, &t.VerifiedBy,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	t.Scope = domain.TaskScope(scope)
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, string(t.Scope), t.OwnerID, t.ProjectID, t.ListID, t.Title, t.Description,
		t.Priority, t.Status, t.AssignedTo, t.CreatedBy, t.CompletedBy, t.VerifiedBy,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	return err
}

// GetTask returns the task row regardless of status. Callers that must treat
// archived tasks as missing check the status themselves.
func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET list_id=?,title=?,description=?,priority=?,status=?,assigned_to=?,completed_by=?,verified_by=?,updated_at=?,completed_at=? WHERE id=?`,
		t.ListID, t.Title, t.Description, t.Priority, t.Status, t.AssignedTo,
		t.CompletedBy, t.VerifiedBy, t.UpdatedAt, t.CompletedAt, t.ID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimTask sets assigned_to only while the task is unassigned and not in a
// terminal status. A false return means the conditional update touched no
// row; the caller re-reads the task to tell not-found from already assigned.
func (r Repo) ClaimTask(ctx context.Context, tx *sql.Tx, taskID, instanceID, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET assigned_to=?, updated_at=? WHERE id=? AND assigned_to IS NULL AND status IN (?,?)`,
		instanceID, updatedAt, taskID, domain.StatusPending, domain.StatusInProgress)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

type TaskFilters struct {
	Scope           domain.TaskScope
	OwnerID         string
	ProjectID       string
	ListID          string
	Status          string
	AssignedTo      string
	IncludeArchived bool
	Skip            int
	Limit           int
}

// ListTasks returns one page of matching tasks in insertion order plus the
// total match count before pagination.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Scope != "" {
		where = append(where, "scope=?")
		args = append(args, string(f.Scope))
	}
	if f.OwnerID != "" {
		where = append(where, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.ProjectID != "" {
		where = append(where, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.ListID != "" {
		where = append(where, "list_id=?")
		args = append(args, f.ListID)
	}
	if f.AssignedTo != "" {
		where = append(where, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	} else if !f.IncludeArchived {
		where = append(where, "status<>?")
		args = append(args, domain.StatusArchived)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + clause + ` ORDER BY rowid`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Skip)
	} else if f.Skip > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Skip)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, t)
	}
	return res, total, rows.Err()
}

// NextTask returns the highest-priority actionable task for an instance:
// pending or in_progress, unassigned or assigned to the caller. Priority
// order is critical, high, medium, low with creation-time tiebreak.
func (r Repo) NextTask(ctx context.Context, scope domain.TaskScope, ownerKey, instanceID string) (domain.Task, error) {
	col := "owner_id"
	if scope == domain.ScopeProject {
		col = "project_id"
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + col + `=?
		AND status IN (?,?) AND (assigned_to IS NULL OR assigned_to=?)
		ORDER BY CASE priority
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3 END, created_at, rowid
		LIMIT 1`
	return scanTask(r.DB.QueryRowContext(ctx, query, ownerKey, domain.StatusPending, domain.StatusInProgress, instanceID))
}

func (r Repo) CountTasksByStatus(ctx context.Context, scope domain.TaskScope, ownerKey string) (map[string]int, error) {
	col := "owner_id"
	if scope == domain.ScopeProject {
		col = "project_id"
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE `+col+`=? GROUP BY status`, ownerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		res[status] = n
	}
	return res, rows.Err()
}

// CountOpenTasksInList counts tasks in a list that are not yet in a terminal
// status, which blocks task list deletion.
func (r Repo) CountOpenTasksInList(ctx context.Context, tx *sql.Tx, scope domain.TaskScope, ownerKey, listID string) (int, error) {
	col := "owner_id"
	if scope == domain.ScopeProject {
		col = "project_id"
	}
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE `+col+`=? AND list_id=? AND status NOT IN (?,?,?)`,
		ownerKey, listID, domain.StatusCompleted, domain.StatusCompletedVerified, domain.StatusArchived).Scan(&n)
	return n, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,created_by,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.CreatedBy, p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var desc sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,description,created_by,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &desc, &p.CreatedBy, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if desc.Valid {
		p.Description = desc.String
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,''),created_by,created_at FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpsertConfig(ctx context.Context, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO configs(id,yaml) VALUES (1,?) ON CONFLICT(id) DO UPDATE SET yaml=excluded.yaml`, string(data))
	return err
}

func (r Repo) GetConfig(ctx context.Context) (*config.Config, error) {
	var data string
	err := r.DB.QueryRowContext(ctx, `SELECT yaml FROM configs WHERE id=1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return config.FromYAML([]byte(data))
}

// LatestEvents returns the newest events first, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if projectID != "" {
		where = append(where, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		where = append(where, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		where = append(where, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		where = append(where, "entity_id=?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d", limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
