package repo

import (
	"context"
	"database/sql"

	"taskline/internal/domain"
)

// EnsureInstance inserts the instance row if it does not exist yet.
func (r Repo) EnsureInstance(ctx context.Context, tx *sql.Tx, instanceID, name, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO instances(id,name,created_at) VALUES (?,?,?) ON CONFLICT(id) DO NOTHING`,
		instanceID, nullable(name), now)
	return err
}

func (r Repo) GetInstance(ctx context.Context, id string) (domain.Instance, error) {
	var inst domain.Instance
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM instances WHERE id=?`, id).
		Scan(&inst.ID, &name, &inst.CreatedAt)
	if err == sql.ErrNoRows {
		return inst, ErrNotFound
	}
	if err != nil {
		return inst, err
	}
	if name.Valid {
		inst.Name = name.String
	}
	if inst.Roles, err = r.InstanceRoles(ctx, id); err != nil {
		return inst, err
	}
	if inst.Projects, err = r.InstanceProjects(ctx, id); err != nil {
		return inst, err
	}
	return inst, nil
}

// InstanceExists is the fast path used by request validation.
func (r Repo) InstanceExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM instances WHERE id=?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM instances ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Instance
	for rows.Next() {
		var inst domain.Instance
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, inst)
	}
	return res, rows.Err()
}

func (r Repo) GrantRole(ctx context.Context, tx *sql.Tx, instanceID, role string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO instance_roles(instance_id,role) VALUES (?,?) ON CONFLICT DO NOTHING`,
		instanceID, role)
	return err
}

func (r Repo) InstanceRoles(ctx context.Context, instanceID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role FROM instance_roles WHERE instance_id=? ORDER BY role`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r Repo) AddProjectMember(ctx context.Context, tx *sql.Tx, m domain.ProjectMember) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO project_members(project_id,instance_id,role,joined_at) VALUES (?,?,?,?)
ON CONFLICT(project_id,instance_id) DO UPDATE SET role=excluded.role`,
		m.ProjectID, m.InstanceID, nullable(m.Role), m.JoinedAt)
	return err
}

func (r Repo) InstanceProjects(ctx context.Context, instanceID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id FROM project_members WHERE instance_id=? ORDER BY joined_at`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		projects = append(projects, id)
	}
	return projects, rows.Err()
}

func (r Repo) ListProjectMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id,instance_id,COALESCE(role,''),joined_at FROM project_members WHERE project_id=? ORDER BY joined_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.InstanceID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
