package domain

// TaskScope distinguishes the two task id namespaces.
type TaskScope string

const (
	ScopePersonal TaskScope = "personal"
	ScopeProject  TaskScope = "project"
)

// Task statuses. "pending" is reported as "not_started" in the status
// enumeration endpoint; the stored value is always "pending".
const (
	StatusPending           = "pending"
	StatusInProgress        = "in_progress"
	StatusCompleted         = "completed"
	StatusCompletedVerified = "completed_verified"
	StatusArchived          = "archived"
)

const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// DefaultListID is the task list every scope starts with. It cannot be deleted.
const DefaultListID = "default"

// Priorities is the closed priority vocabulary, strongest first.
func Priorities() []string {
	return []string{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// TaskStatuses is the closed status vocabulary as reported to callers.
func TaskStatuses() []string {
	return []string{"not_started", StatusInProgress, StatusCompleted, StatusCompletedVerified, StatusArchived}
}

// TerminalStatus reports whether a task in the given status counts as
// finished work for list-deletion purposes.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusCompletedVerified, StatusArchived:
		return true
	}
	return false
}

type Instance struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Projects  []string `json:"projects,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ProjectMember struct {
	ProjectID  string `json:"project_id"`
	InstanceID string `json:"instance_id"`
	Role       string `json:"role,omitempty"`
	JoinedAt   string `json:"joined_at" format:"date-time"`
}

// Task is a unit of work in exactly one scope: personal (OwnerID set) or
// project (ProjectID set). The id prefix encodes the scope.
type Task struct {
	ID          string    `json:"id"`
	Scope       TaskScope `json:"scope" enum:"personal,project"`
	OwnerID     *string   `json:"owner_id,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	ListID      string    `json:"list_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Priority    string    `json:"priority" enum:"critical,high,medium,low"`
	Status      string    `json:"status" enum:"pending,in_progress,completed,completed_verified,archived"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CompletedBy *string   `json:"completed_by,omitempty"`
	VerifiedBy  *string   `json:"verified_by,omitempty"`
	CreatedAt   string    `json:"created_at" format:"date-time"`
	UpdatedAt   string    `json:"updated_at" format:"date-time"`
	CompletedAt *string   `json:"completed_at,omitempty" format:"date-time"`
}

// TaskSummary is the abbreviated list_tasks projection.
type TaskSummary struct {
	ID       string `json:"taskId"`
	Title    string `json:"title"`
	Priority string `json:"priority" enum:"critical,high,medium,low"`
	Status   string `json:"status" enum:"pending,in_progress,completed,completed_verified,archived"`
}

// TaskList is a named partition of tasks within one scope. The id is caller
// chosen and unique per scope.
type TaskList struct {
	Scope     TaskScope `json:"scope" enum:"personal,project"`
	OwnerKey  string    `json:"owner_key"`
	ID        string    `json:"id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt string    `json:"created_at" format:"date-time"`
}

// Checklist is an independent named collection of checkable items, unrelated
// to task lists.
type Checklist struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Items       []ChecklistItem `json:"items,omitempty"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

type ChecklistItem struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// ChecklistSummary carries no item bodies.
type ChecklistSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ItemCount int    `json:"item_count"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID         string  `json:"id"`
	InstanceID string  `json:"instance_id"`
	Name       string  `json:"name,omitempty"`
	KeyHash    string  `json:"key_hash"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	RevokedAt  *string `json:"revoked_at,omitempty" format:"date-time"`
}
