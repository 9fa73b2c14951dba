// Package auth decides whether a calling instance may act on a target
// entity, from role membership, project membership and ownership facts.
package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// ForbiddenError indicates the caller lacks standing for a capability.
type ForbiddenError struct {
	Capability string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("not authorized for %s", e.Capability)
}

// SelfVerificationError indicates the completer tried to verify its own work.
type SelfVerificationError struct {
	TaskID string
}

func (e SelfVerificationError) Error() string {
	return fmt.Sprintf("task %s cannot be verified by the instance that completed it", e.TaskID)
}

// VerifierAllowed is the cross-actor verification invariant: the completer
// can never verify its own work. Pure, no store involved.
func VerifierAllowed(completerID, verifierID string) bool {
	if completerID == "" || verifierID == "" {
		return false
	}
	return completerID != verifierID
}

// Service provides membership and permission lookups backed by SQL.
type Service struct {
	DB *sql.DB
}

// HasPermission reports whether any of the instance's roles grants perm.
func (s Service) HasPermission(ctx context.Context, instanceID, perm string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT 1 FROM instance_roles ir
JOIN role_permissions rp ON rp.role=ir.role
WHERE ir.instance_id=? AND rp.permission=? LIMIT 1`,
		instanceID, perm)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RequirePermission returns ForbiddenError unless the instance holds perm.
func (s Service) RequirePermission(ctx context.Context, instanceID, perm string) error {
	ok, err := s.HasPermission(ctx, instanceID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Capability: perm}
	}
	return nil
}

// IsMember reports project membership.
func (s Service) IsMember(ctx context.Context, projectID, instanceID string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT 1 FROM project_members WHERE project_id=? AND instance_id=? LIMIT 1`,
		projectID, instanceID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RequireMember returns ForbiddenError unless the instance joined projectID.
func (s Service) RequireMember(ctx context.Context, projectID, instanceID string) error {
	ok, err := s.IsMember(ctx, projectID, instanceID)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Capability: "membership of project " + projectID}
	}
	return nil
}

func (s Service) InstanceRoles(ctx context.Context, instanceID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT role FROM instance_roles WHERE instance_id=? ORDER BY role`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s Service) InstancePermissions(ctx context.Context, instanceID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT DISTINCT rp.permission
FROM instance_roles ir
JOIN role_permissions rp ON rp.role=ir.role
WHERE ir.instance_id=?`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
