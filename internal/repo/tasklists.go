package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskline/internal/domain"
)

// ErrExists signals a uniqueness conflict on caller-chosen ids.
var ErrExists = errors.New("already exists")

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertTaskList creates a task list. The primary key resolves concurrent
// creations with the same id: exactly one insert wins.
func (r Repo) InsertTaskList(ctx context.Context, tx *sql.Tx, l domain.TaskList) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_lists(scope,owner_key,id,created_by,created_at) VALUES (?,?,?,?,?)`,
		string(l.Scope), l.OwnerKey, l.ID, l.CreatedBy, l.CreatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

// EnsureTaskList creates the list if missing, used when tasks land in a list
// that was never created explicitly.
func (r Repo) EnsureTaskList(ctx context.Context, tx *sql.Tx, l domain.TaskList) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_lists(scope,owner_key,id,created_by,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(scope,owner_key,id) DO NOTHING`,
		string(l.Scope), l.OwnerKey, l.ID, l.CreatedBy, l.CreatedAt)
	return err
}

func (r Repo) GetTaskList(ctx context.Context, tx *sql.Tx, scope domain.TaskScope, ownerKey, id string) (domain.TaskList, error) {
	var l domain.TaskList
	var s string
	err := tx.QueryRowContext(ctx, `SELECT scope,owner_key,id,created_by,created_at FROM task_lists WHERE scope=? AND owner_key=? AND id=?`,
		string(scope), ownerKey, id).Scan(&s, &l.OwnerKey, &l.ID, &l.CreatedBy, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	l.Scope = domain.TaskScope(s)
	return l, err
}

func (r Repo) ListTaskLists(ctx context.Context, scope domain.TaskScope, ownerKey string) ([]domain.TaskList, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT scope,owner_key,id,created_by,created_at FROM task_lists WHERE scope=? AND owner_key=? ORDER BY created_at`,
		string(scope), ownerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskList
	for rows.Next() {
		var l domain.TaskList
		var s string
		if err := rows.Scan(&s, &l.OwnerKey, &l.ID, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Scope = domain.TaskScope(s)
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTaskList(ctx context.Context, tx *sql.Tx, scope domain.TaskScope, ownerKey, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM task_lists WHERE scope=? AND owner_key=? AND id=?`,
		string(scope), ownerKey, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
