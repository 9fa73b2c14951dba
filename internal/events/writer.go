package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Lifecycle event types written by the engine.
const (
	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskCompleted     = "task.completed"
	TaskVerified      = "task.verified"
	TaskArchived      = "task.archived"
	TaskDeleted       = "task.deleted"
	TaskAssigned      = "task.assigned"
	TaskClaimed       = "task.claimed"
	TaskListCreated   = "tasklist.created"
	TaskListDeleted   = "tasklist.deleted"
	ChecklistCreated  = "checklist.created"
	ChecklistDeleted  = "checklist.deleted"
	ProjectCreated    = "project.created"
	ProjectJoined     = "project.joined"
	InstanceRegister  = "instance.registered"
	InstanceRoleTaken = "instance.role_taken"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row inside the caller's transaction so the event
// commits or rolls back with the mutation it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
