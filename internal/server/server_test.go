package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg)
	if err := e.Repo.SeedRoles(context.Background(), cfg.PrivilegedRoles()); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:                 testJWTSecret,
			AllowLegacyInstanceHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asInstance(id string) map[string]string {
	return map[string]string{"X-Instance-Id": id}
}

func registerInstance(t *testing.T, srv *testServer, id, role string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/instances", map[string]any{
		"instanceId": id,
		"role":       role,
	}, asInstance(id))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s status %d: %s", id, res.StatusCode, string(data))
	}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	if envelope.Success {
		t.Fatalf("error response carries success=true: %s", string(data))
	}
	return envelope.Error.Code
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("error code %q", code)
	}
}

func TestJWTAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	registerInstance(t, srv, "alice", "Developer")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil,
		map[string]string{"Authorization": "Bearer " + signed})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var body struct {
		Success  bool `json:"success"`
		Instance struct {
			ID string `json:"id"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Instance.ID != "alice" {
		t.Fatalf("me body: %s", string(data))
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", res.StatusCode)
	}
}

func TestProjectTaskLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	registerInstance(t, srv, "exec", "Executive")
	registerInstance(t, srv, "alice", "Developer")
	registerInstance(t, srv, "bob", "Developer")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{"id": "proj-1"}, asInstance("exec"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	for _, member := range []string{"alice", "bob"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/proj-1/join", map[string]any{"role": "member"}, asInstance(member))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("join status %d: %s", res.StatusCode, string(data))
		}
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":     "Ship feature",
		"priority":  "high",
		"projectId": "proj-1",
	}, asInstance("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var created struct {
		Success  bool   `json:"success"`
		TaskID   string `json:"taskId"`
		TaskType string `json:"taskType"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}
	if !created.Success || created.TaskType != "project" || !strings.HasPrefix(created.TaskID, "prjtask-proj-1-") {
		t.Fatalf("create body: %s", string(data))
	}
	taskID := created.TaskID

	// Verification before completion is a state conflict.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/verify", nil, asInstance("bob"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("early verify status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "TASK_NOT_COMPLETED" {
		t.Fatalf("early verify code %q", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/complete", nil, asInstance("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}

	// The completer cannot verify its own work.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/verify", nil, asInstance("alice"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("self verify status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "UNAUTHORIZED" {
		t.Fatalf("self verify code %q", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/verify", nil, asInstance("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("peer verify status %d: %s", res.StatusCode, string(data))
	}
	var verified struct {
		Task struct {
			Status     string  `json:"status"`
			VerifiedBy *string `json:"verified_by"`
		} `json:"task"`
	}
	if err := json.Unmarshal(data, &verified); err != nil {
		t.Fatal(err)
	}
	if verified.Task.Status != "completed_verified" || verified.Task.VerifiedBy == nil || *verified.Task.VerifiedBy != "bob" {
		t.Fatalf("verify body: %s", string(data))
	}

	// Archive, then the id stops resolving.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+taskID+"/archive", nil, asInstance("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("archive status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+taskID, nil, asInstance("alice"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get archived status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "TASK_NOT_FOUND" {
		t.Fatalf("get archived code %q", code)
	}
}

func TestListTasksPaginationAndDetail(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	registerInstance(t, srv, "solo", "Developer")

	for _, title := range []string{"one", "two", "three"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": title}, asInstance("solo"))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create %s status %d: %s", title, res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks?skip=1&limit=1", nil, asInstance("solo"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page struct {
		Success bool             `json:"success"`
		Tasks   []map[string]any `json:"tasks"`
		Total   int              `json:"total"`
		Skip    int              `json:"skip"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Skip != 1 || len(page.Tasks) != 1 {
		t.Fatalf("page: %s", string(data))
	}
	// Summary projection exposes taskId and elides detail fields.
	if _, ok := page.Tasks[0]["taskId"]; !ok {
		t.Fatalf("summary missing taskId: %s", string(data))
	}
	if _, ok := page.Tasks[0]["created_by"]; ok {
		t.Fatalf("summary leaked detail fields: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks?full_detail=true", nil, asInstance("solo"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("full list status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Tasks) != 3 {
		t.Fatalf("full page: %s", string(data))
	}
	if _, ok := page.Tasks[0]["created_by"]; !ok {
		t.Fatalf("full detail missing created_by: %s", string(data))
	}
}

func TestTaskListConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	registerInstance(t, srv, "solo", "Developer")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/task-lists", map[string]any{"listId": "sprint-9"}, asInstance("solo"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create list status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/task-lists", map[string]any{"listId": "sprint-9"}, asInstance("solo"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate list status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "LIST_EXISTS" {
		t.Fatalf("duplicate list code %q", code)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/task-lists/default", nil, asInstance("solo"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("delete default status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "CANNOT_DELETE_DEFAULT" {
		t.Fatalf("delete default code %q", code)
	}
}

func TestChecklistRoundTripOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	registerInstance(t, srv, "solo", "Developer")

	opaque := `{"nested": "json with \"quotes\" and 任务"}`
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/checklists", map[string]any{
		"name":  "deploy",
		"items": []string{opaque},
	}, asInstance("solo"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create checklist status %d: %s", res.StatusCode, string(data))
	}
	var created struct {
		List struct {
			ID    string `json:"id"`
			Items []struct {
				ID      string `json:"id"`
				Text    string `json:"text"`
				Checked bool   `json:"checked"`
			} `json:"items"`
		} `json:"list"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}
	if len(created.List.Items) != 1 || created.List.Items[0].Text != opaque {
		t.Fatalf("checklist body: %s", string(data))
	}

	toggleURL := srv.URL + "/v0/checklists/" + created.List.ID + "/items/" + created.List.Items[0].ID + "/toggle"
	res, data = doJSON(t, client, http.MethodPost, toggleURL, nil, asInstance("solo"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d: %s", res.StatusCode, string(data))
	}
	var toggled struct {
		Item struct {
			Text    string `json:"text"`
			Checked bool   `json:"checked"`
		} `json:"item"`
	}
	if err := json.Unmarshal(data, &toggled); err != nil {
		t.Fatal(err)
	}
	if !toggled.Item.Checked || toggled.Item.Text != opaque {
		t.Fatalf("toggle body: %s", string(data))
	}

	// Another instance gets a 403, not the checklist.
	registerInstance(t, srv, "snoop", "Developer")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/checklists/"+created.List.ID, nil, asInstance("snoop"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign read status %d: %s", res.StatusCode, string(data))
	}
}

func TestVocabularies(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	registerInstance(t, srv, "solo", "Developer")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/meta/statuses", nil, asInstance("solo"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("statuses status %d: %s", res.StatusCode, string(data))
	}
	var vocab struct {
		Statuses []string `json:"statuses"`
	}
	if err := json.Unmarshal(data, &vocab); err != nil {
		t.Fatal(err)
	}
	if len(vocab.Statuses) == 0 || vocab.Statuses[0] != "not_started" {
		t.Fatalf("statuses: %v", vocab.Statuses)
	}
}
