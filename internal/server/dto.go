package server

import (
	"taskline/internal/domain"
)

// Request bodies.

type CreateTaskRequest struct {
	Title       string `json:"title" example:"Ship the release notes"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" enum:",critical,high,medium,low"`
	ListID      string `json:"listId,omitempty" example:"default"`
	ProjectID   string `json:"projectId,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type AssignTaskRequest struct {
	AssigneeID string `json:"assigneeId"`
}

type CreateTaskListRequest struct {
	ListID    string `json:"listId"`
	ProjectID string `json:"projectId,omitempty"`
}

type CreateChecklistRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Items       []string `json:"items,omitempty"`
}

type RenameChecklistRequest struct {
	Name string `json:"name"`
}

type AddChecklistItemRequest struct {
	Text string `json:"text"`
}

type RegisterInstanceRequest struct {
	InstanceID string `json:"instanceId"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
}

type TakeOnRoleRequest struct {
	Role string `json:"role"`
}

type CreateProjectRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type JoinProjectRequest struct {
	Role string `json:"role,omitempty"`
}

// Response bodies. Every success body carries success=true; failures use the
// apiError envelope instead.

type OKResponse struct {
	Success bool `json:"success" example:"true"`
}

type TaskResponse struct {
	Success bool        `json:"success"`
	Task    domain.Task `json:"task"`
}

type CreateTaskResponse struct {
	Success  bool        `json:"success"`
	TaskID   string      `json:"taskId"`
	TaskType string      `json:"taskType" enum:"personal,project"`
	Task     domain.Task `json:"task"`
}

type ListTasksResponse struct {
	Success bool `json:"success"`
	Tasks   any  `json:"tasks"`
	Total   int  `json:"total"`
	Skip    int  `json:"skip"`
}

type MyTasksResponse struct {
	Success      bool          `json:"success"`
	Tasks        []domain.Task `json:"tasks"`
	ProjectTasks []domain.Task `json:"projectTasks"`
}

type TaskListResponse struct {
	Success bool            `json:"success"`
	List    domain.TaskList `json:"list"`
}

type TaskListsResponse struct {
	Success bool              `json:"success"`
	Lists   []domain.TaskList `json:"lists"`
}

type ChecklistResponse struct {
	Success bool             `json:"success"`
	List    domain.Checklist `json:"list"`
}

type ChecklistsResponse struct {
	Success bool                      `json:"success"`
	Lists   []domain.ChecklistSummary `json:"lists"`
}

type ChecklistItemResponse struct {
	Success bool                 `json:"success"`
	Item    domain.ChecklistItem `json:"item"`
}

type VocabularyResponse struct {
	Success    bool     `json:"success"`
	Priorities []string `json:"priorities,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
}

type InstanceResponse struct {
	Success  bool            `json:"success"`
	Instance domain.Instance `json:"instance"`
}

type ProjectResponse struct {
	Success bool           `json:"success"`
	Project domain.Project `json:"project"`
}

type ProjectsResponse struct {
	Success  bool             `json:"success"`
	Projects []domain.Project `json:"projects"`
}

type EventsResponse struct {
	Success bool           `json:"success"`
	Events  []domain.Event `json:"events"`
}

func taskSummary(t domain.Task) domain.TaskSummary {
	return domain.TaskSummary{
		ID:       t.ID,
		Title:    t.Title,
		Priority: t.Priority,
		Status:   t.Status,
	}
}

func taskSummaries(tasks []domain.Task) []domain.TaskSummary {
	res := make([]domain.TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskSummary(t))
	}
	return res
}
