package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskline/internal/domain"
	"taskline/internal/engine/auth"
	"taskline/internal/events"
	"taskline/internal/repo"
)

// Checklists are per-instance. All item text is stored byte-exact; nothing
// here normalizes, escapes or truncates.

func (e Engine) requireChecklistOwner(ctx context.Context, instanceID, checklistID string) (domain.Checklist, error) {
	c, err := e.Repo.GetChecklist(ctx, checklistID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Checklist{}, listNotFound(checklistID)
	}
	if err != nil {
		return domain.Checklist{}, err
	}
	if c.OwnerID != instanceID {
		return domain.Checklist{}, auth.ForbiddenError{Capability: "checklist " + checklistID}
	}
	return c, nil
}

// CreateChecklist creates a named checklist, optionally pre-populated with
// item texts.
func (e Engine) CreateChecklist(ctx context.Context, instanceID, name, description string, items []string) (domain.Checklist, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Checklist{}, err
	}
	if name == "" {
		return domain.Checklist{}, missingParam("name")
	}

	now := e.now().UTC().Format(time.RFC3339)
	c := domain.Checklist{
		ID:        checklistID(),
		OwnerID:   instanceID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if description != "" {
		c.Description = &description
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Checklist{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertChecklist(ctx, tx, c); err != nil {
		return domain.Checklist{}, err
	}
	for _, text := range items {
		if text == "" {
			return domain.Checklist{}, missingParam("text")
		}
		item := domain.ChecklistItem{ID: checklistItemID(), Text: text}
		if err := e.Repo.InsertChecklistItem(ctx, tx, c.ID, item); err != nil {
			return domain.Checklist{}, err
		}
		c.Items = append(c.Items, item)
	}
	if err := e.Events.Append(ctx, tx, events.ChecklistCreated, "", "checklist", c.ID, instanceID,
		events.EventPayload{"name": c.Name, "items": len(c.Items)}); err != nil {
		return domain.Checklist{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Checklist{}, err
	}
	return c, nil
}

// GetChecklist returns the checklist with its full item sequence.
func (e Engine) GetChecklist(ctx context.Context, instanceID, checklistID string) (domain.Checklist, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Checklist{}, err
	}
	if checklistID == "" {
		return domain.Checklist{}, missingParam("listId")
	}
	return e.requireChecklistOwner(ctx, instanceID, checklistID)
}

// RenameChecklist changes the name; the id stays stable.
func (e Engine) RenameChecklist(ctx context.Context, instanceID, checklistID, name string) (domain.Checklist, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.Checklist{}, err
	}
	if checklistID == "" {
		return domain.Checklist{}, missingParam("listId")
	}
	if name == "" {
		return domain.Checklist{}, missingParam("name")
	}
	if _, err := e.requireChecklistOwner(ctx, instanceID, checklistID); err != nil {
		return domain.Checklist{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Checklist{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.RenameChecklist(ctx, tx, checklistID, name, e.now().UTC().Format(time.RFC3339)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Checklist{}, listNotFound(checklistID)
		}
		return domain.Checklist{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Checklist{}, err
	}
	return e.Repo.GetChecklist(ctx, checklistID)
}

// DeleteChecklist removes the checklist and its items. Unlike task lists
// there is no occupancy guard.
func (e Engine) DeleteChecklist(ctx context.Context, instanceID, checklistID string) error {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return err
	}
	if checklistID == "" {
		return missingParam("listId")
	}
	if _, err := e.requireChecklistOwner(ctx, instanceID, checklistID); err != nil {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteChecklist(ctx, tx, checklistID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return listNotFound(checklistID)
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ChecklistDeleted, "", "checklist", checklistID, instanceID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListChecklists returns summaries without item bodies.
func (e Engine) ListChecklists(ctx context.Context, instanceID string) ([]domain.ChecklistSummary, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return nil, err
	}
	return e.Repo.ListChecklists(ctx, instanceID)
}

// AddChecklistItem appends an item; text is required and preserved as given.
func (e Engine) AddChecklistItem(ctx context.Context, instanceID, checklistID, text string) (domain.ChecklistItem, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.ChecklistItem{}, err
	}
	if checklistID == "" {
		return domain.ChecklistItem{}, missingParam("listId")
	}
	if text == "" {
		return domain.ChecklistItem{}, missingParam("text")
	}
	if _, err := e.requireChecklistOwner(ctx, instanceID, checklistID); err != nil {
		return domain.ChecklistItem{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	defer tx.Rollback()
	item := domain.ChecklistItem{ID: checklistItemID(), Text: text}
	if err := e.Repo.InsertChecklistItem(ctx, tx, checklistID, item); err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := e.Repo.TouchChecklist(ctx, tx, checklistID, e.now().UTC().Format(time.RFC3339)); err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// ToggleChecklistItem flips checked and returns the new state. Two toggles
// return the item to where it started; the text never changes.
func (e Engine) ToggleChecklistItem(ctx context.Context, instanceID, checklistID, itemID string) (domain.ChecklistItem, error) {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return domain.ChecklistItem{}, err
	}
	if checklistID == "" {
		return domain.ChecklistItem{}, missingParam("listId")
	}
	if itemID == "" {
		return domain.ChecklistItem{}, missingParam("itemId")
	}
	if _, err := e.requireChecklistOwner(ctx, instanceID, checklistID); err != nil {
		return domain.ChecklistItem{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	defer tx.Rollback()
	item, err := e.Repo.ToggleChecklistItem(ctx, tx, checklistID, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ChecklistItem{}, NotFoundError{Code: CodeItemNotFound, Message: fmt.Sprintf("item %s not found", itemID)}
	}
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := e.Repo.TouchChecklist(ctx, tx, checklistID, e.now().UTC().Format(time.RFC3339)); err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// DeleteChecklistItem removes an item; later toggles on the id are not
// found.
func (e Engine) DeleteChecklistItem(ctx context.Context, instanceID, checklistID, itemID string) error {
	if err := e.requireInstance(ctx, instanceID); err != nil {
		return err
	}
	if checklistID == "" {
		return missingParam("listId")
	}
	if itemID == "" {
		return missingParam("itemId")
	}
	if _, err := e.requireChecklistOwner(ctx, instanceID, checklistID); err != nil {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteChecklistItem(ctx, tx, checklistID, itemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Code: CodeItemNotFound, Message: fmt.Sprintf("item %s not found", itemID)}
		}
		return err
	}
	if err := e.Repo.TouchChecklist(ctx, tx, checklistID, e.now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}
