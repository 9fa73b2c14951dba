package tasklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID          string  `json:"id"`
	Scope       string  `json:"scope"`
	OwnerID     *string `json:"owner_id,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
	ListID      string  `json:"list_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CompletedBy *string `json:"completed_by,omitempty"`
	VerifiedBy  *string `json:"verified_by,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// TaskSummary is the compact listing projection.
type TaskSummary struct {
	ID       string `json:"taskId"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// Checklist is a private list of toggleable items.
type Checklist struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Items       []ChecklistItem `json:"items,omitempty"`
}

// ChecklistItem holds the item text exactly as it was submitted.
type ChecklistItem struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Event represents a log entry. The payload arrives as raw JSON text.
type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts"`
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	EntityID    string `json:"entity_id"`
	EntityKind  string `json:"entity_kind"`
	ActorID     string `json:"actor_id"`
	PayloadJSON string `json:"payload_json"`
}

// Payload decodes PayloadJSON. An empty payload decodes to an empty map.
func (e Event) Payload() (map[string]any, error) {
	if e.PayloadJSON == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(e.PayloadJSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// TaskPage wraps paginated listings. Total counts every match before
// skip/limit were applied.
type TaskPage struct {
	Tasks json.RawMessage `json:"tasks"`
	Total int             `json:"total"`
	Skip  int             `json:"skip"`
}

// Summaries decodes the page into compact projections.
func (p TaskPage) Summaries() ([]TaskSummary, error) {
	var out []TaskSummary
	err := json.Unmarshal(p.Tasks, &out)
	return out, err
}

// FullTasks decodes the page into full task records. Only valid when the
// listing was requested with fullDetail.
func (p TaskPage) FullTasks() ([]Task, error) {
	var out []Task
	err := json.Unmarshal(p.Tasks, &out)
	return out, err
}

type taskEnvelope struct {
	Success bool `json:"success"`
	Task    Task `json:"task"`
}

// CreateTask creates a personal task, or a project task when projectID is set.
func (c *Client) CreateTask(ctx context.Context, title, priority, listID, projectID string) (Task, error) {
	body := map[string]any{"title": title}
	if priority != "" {
		body["priority"] = priority
	}
	if listID != "" {
		body["listId"] = listID
	}
	if projectID != "" {
		body["projectId"] = projectID
	}
	var resp struct {
		Success bool   `json:"success"`
		TaskID  string `json:"taskId"`
		Task    Task   `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp.Task, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(taskID), nil, &resp)
	return resp.Task, err
}

// ListTasks returns a page of tasks. Zero limit uses the server default.
func (c *Client) ListTasks(ctx context.Context, projectID, listID, status string, skip, limit int, fullDetail bool) (TaskPage, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if listID != "" {
		q.Set("list_id", listID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if skip > 0 {
		q.Set("skip", fmt.Sprint(skip))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if fullDetail {
		q.Set("full_detail", "true")
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TaskPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CompleteTask marks a task complete.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/complete", nil, &resp)
	return resp.Task, err
}

// VerifyTask verifies a completed task. The server refuses verification by
// the same instance that completed the task.
func (c *Client) VerifyTask(ctx context.Context, taskID string) (Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/verify", nil, &resp)
	return resp.Task, err
}

// ClaimTask attempts an atomic claim of an unassigned project task.
func (c *Client) ClaimTask(ctx context.Context, taskID string) (Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/claim", nil, &resp)
	return resp.Task, err
}

// AssignTask assigns a project task to a member instance.
func (c *Client) AssignTask(ctx context.Context, taskID, assigneeID string) (Task, error) {
	var resp taskEnvelope
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/assign", map[string]any{"assigneeId": assigneeID}, &resp)
	return resp.Task, err
}

// ArchiveTask moves a finished task out of default listings.
func (c *Client) ArchiveTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/archive", nil, nil)
}

// DeleteTask removes a completed task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(taskID), nil, nil)
}

// NextTask returns the caller's most urgent actionable task.
func (c *Client) NextTask(ctx context.Context, projectID string) (Task, error) {
	endpoint := "me/next-task"
	if projectID != "" {
		endpoint += "?project_id=" + url.QueryEscape(projectID)
	}
	var resp taskEnvelope
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Task, err
}

// CreateChecklist creates a checklist, optionally seeded with items.
func (c *Client) CreateChecklist(ctx context.Context, name string, items []string) (Checklist, error) {
	body := map[string]any{"name": name}
	if len(items) > 0 {
		body["items"] = items
	}
	var resp struct {
		Success bool      `json:"success"`
		List    Checklist `json:"list"`
	}
	err := c.do(ctx, http.MethodPost, "checklists", body, &resp)
	return resp.List, err
}

// GetChecklist fetches a checklist with its items.
func (c *Client) GetChecklist(ctx context.Context, listID string) (Checklist, error) {
	var resp struct {
		Success bool      `json:"success"`
		List    Checklist `json:"list"`
	}
	err := c.do(ctx, http.MethodGet, "checklists/"+url.PathEscape(listID), nil, &resp)
	return resp.List, err
}

// ToggleChecklistItem flips an item's checked state and returns the item.
func (c *Client) ToggleChecklistItem(ctx context.Context, listID, itemID string) (ChecklistItem, error) {
	var resp struct {
		Success bool          `json:"success"`
		Item    ChecklistItem `json:"item"`
	}
	endpoint := fmt.Sprintf("checklists/%s/items/%s/toggle", url.PathEscape(listID), url.PathEscape(itemID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.Item, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Success bool    `json:"success"`
		Events  []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
