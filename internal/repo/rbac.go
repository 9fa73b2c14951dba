package repo

import (
	"context"
	"database/sql"
)

// Capability permissions attached to roles. The configured privileged roles
// get task.assign and tasklist.manage; project creation is reserved for
// Executive, PA and COO.
const (
	PermCreateProject  = "project.create"
	PermAssignTask     = "task.assign"
	PermManageTaskList = "tasklist.manage"
)

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO roles(name) VALUES (?)`, name)
	return err
}

func (r Repo) AddRolePermission(ctx context.Context, tx *sql.Tx, role, permission string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_permissions(role, permission) VALUES (?,?)`, role, permission)
	return err
}

// SeedRoles installs the built-in role vocabulary and grants task.assign and
// tasklist.manage to each role in privileged. Safe to call repeatedly.
func (r Repo) SeedRoles(ctx context.Context, privileged []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	builtins := []string{"Executive", "PA", "COO", "PM", "Developer", "Tester", "Designer"}
	for _, role := range builtins {
		if err := r.InsertRole(ctx, tx, role); err != nil {
			return err
		}
	}
	for _, role := range []string{"Executive", "PA", "COO"} {
		if err := r.AddRolePermission(ctx, tx, role, PermCreateProject); err != nil {
			return err
		}
	}
	for _, role := range privileged {
		if err := r.InsertRole(ctx, tx, role); err != nil {
			return err
		}
		if err := r.AddRolePermission(ctx, tx, role, PermAssignTask); err != nil {
			return err
		}
		if err := r.AddRolePermission(ctx, tx, role, PermManageTaskList); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// HasPermission reports whether any of the instance's roles grants the
// permission.
func (r Repo) HasPermission(ctx context.Context, instanceID, permission string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM instance_roles ir
JOIN role_permissions rp ON rp.role = ir.role
WHERE ir.instance_id=? AND rp.permission=?`, instanceID, permission).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) RoleExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name=?`, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
