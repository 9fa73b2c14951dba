package repo

import (
	"context"
	"database/sql"

	"taskline/internal/domain"
)

func (r Repo) InsertChecklist(ctx context.Context, tx *sql.Tx, c domain.Checklist) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO checklists(id,owner_id,name,description,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.OwnerID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

// GetChecklist returns the checklist and its items in position order.
func (r Repo) GetChecklist(ctx context.Context, id string) (domain.Checklist, error) {
	var c domain.Checklist
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_id,name,description,created_at,updated_at FROM checklists WHERE id=?`, id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,text,checked FROM checklist_items WHERE checklist_id=? ORDER BY position`, id)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.ChecklistItem
		var checked int
		if err := rows.Scan(&item.ID, &item.Text, &checked); err != nil {
			return c, err
		}
		item.Checked = checked != 0
		c.Items = append(c.Items, item)
	}
	return c, rows.Err()
}

func (r Repo) RenameChecklist(ctx context.Context, tx *sql.Tx, id, name, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE checklists SET name=?, updated_at=? WHERE id=?`, name, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChecklist removes the checklist; items cascade.
func (r Repo) DeleteChecklist(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM checklists WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListChecklists(ctx context.Context, ownerID string) ([]domain.ChecklistSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT c.id, c.name, COUNT(i.id)
FROM checklists c LEFT JOIN checklist_items i ON i.checklist_id = c.id
WHERE c.owner_id=?
GROUP BY c.id, c.name
ORDER BY c.created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChecklistSummary
	for rows.Next() {
		var s domain.ChecklistSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.ItemCount); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// InsertChecklistItem appends the item after the current highest position.
func (r Repo) InsertChecklistItem(ctx context.Context, tx *sql.Tx, checklistID string, item domain.ChecklistItem) error {
	checked := 0
	if item.Checked {
		checked = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO checklist_items(checklist_id,id,text,checked,position)
VALUES (?,?,?,?, COALESCE((SELECT MAX(position)+1 FROM checklist_items WHERE checklist_id=?), 0))`,
		checklistID, item.ID, item.Text, checked, checklistID)
	return err
}

func (r Repo) GetChecklistItem(ctx context.Context, tx *sql.Tx, checklistID, itemID string) (domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	var checked int
	err := tx.QueryRowContext(ctx, `SELECT id,text,checked FROM checklist_items WHERE checklist_id=? AND id=?`,
		checklistID, itemID).Scan(&item.ID, &item.Text, &checked)
	if err == sql.ErrNoRows {
		return item, ErrNotFound
	}
	item.Checked = checked != 0
	return item, err
}

// ToggleChecklistItem flips checked in place and returns the new item state.
func (r Repo) ToggleChecklistItem(ctx context.Context, tx *sql.Tx, checklistID, itemID string) (domain.ChecklistItem, error) {
	res, err := tx.ExecContext(ctx, `UPDATE checklist_items SET checked = 1 - checked WHERE checklist_id=? AND id=?`,
		checklistID, itemID)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ChecklistItem{}, ErrNotFound
	}
	return r.GetChecklistItem(ctx, tx, checklistID, itemID)
}

func (r Repo) DeleteChecklistItem(ctx context.Context, tx *sql.Tx, checklistID, itemID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM checklist_items WHERE checklist_id=? AND id=?`, checklistID, itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) TouchChecklist(ctx context.Context, tx *sql.Tx, id, now string) error {
	_, err := tx.ExecContext(ctx, `UPDATE checklists SET updated_at=? WHERE id=?`, now, id)
	return err
}
