package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/engine/auth"
	"taskline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.Repo.SeedRoles(ctx, cfg.PrivilegedRoles()); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) register(t *testing.T, id, role string) {
	t.Helper()
	if _, err := env.Engine.RegisterInstance(env.Ctx, id, "", role); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

// newProject creates a project owned by an Executive instance and joins the
// given members.
func (env testEnv) newProject(t *testing.T, id string, members ...string) {
	t.Helper()
	env.register(t, "exec", "Executive")
	if _, err := env.Engine.CreateProject(env.Ctx, "exec", id, "", ""); err != nil {
		t.Fatalf("create project: %v", err)
	}
	for _, m := range members {
		env.register(t, m, "Developer")
		if err := env.Engine.JoinProject(env.Ctx, m, id, "member"); err != nil {
			t.Fatalf("join project %s: %v", m, err)
		}
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		InstanceID: "alice",
		Title:      "Ship it",
		Priority:   "high",
		ProjectID:  "proj-1",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != domain.StatusPending {
		t.Fatalf("new task status = %q", task.Status)
	}

	inProgress := "in_progress"
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{InstanceID: "alice", TaskID: task.ID, Status: &inProgress})
	if err != nil || task.Status != domain.StatusInProgress {
		t.Fatalf("to in_progress: %v (status %q)", err, task.Status)
	}

	task, err = env.Engine.CompleteTask(env.Ctx, "alice", task.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.CompletedBy == nil || *task.CompletedBy != "alice" {
		t.Fatalf("completed_by = %v", task.CompletedBy)
	}
	if task.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	task, err = env.Engine.VerifyTask(env.Ctx, "bob", task.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if task.Status != domain.StatusCompletedVerified {
		t.Fatalf("verified status = %q", task.Status)
	}
	if task.VerifiedBy == nil || *task.VerifiedBy != "bob" {
		t.Fatalf("verified_by = %v", task.VerifiedBy)
	}
}

func TestVerifyRequiresCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "alice", Title: "early", ProjectID: "proj-1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.VerifyTask(env.Ctx, "bob", task.ID)
	var sce engine.StateConflictError
	if !errors.As(err, &sce) || sce.Code != engine.CodeTaskNotCompleted {
		t.Fatalf("verify before complete: %v", err)
	}
}

func TestSelfVerificationRejected(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "alice", Title: "mine", ProjectID: "proj-1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, "alice", task.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = env.Engine.VerifyTask(env.Ctx, "alice", task.ID)
	var sve auth.SelfVerificationError
	if !errors.As(err, &sve) {
		t.Fatalf("self verify: %v", err)
	}
	if _, err := env.Engine.VerifyTask(env.Ctx, "bob", task.ID); err != nil {
		t.Fatalf("peer verify: %v", err)
	}
}

func TestSelfVerificationRejectedPersonal(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "own work"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = env.Engine.VerifyTask(env.Ctx, "solo", task.ID)
	var sve auth.SelfVerificationError
	if !errors.As(err, &sve) {
		t.Fatalf("self verify personal: %v", err)
	}
}

func TestDeleteRequiresCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "short lived"})
	if err != nil {
		t.Fatal(err)
	}
	err = env.Engine.DeleteTask(env.Ctx, "solo", task.ID)
	var sce engine.StateConflictError
	if !errors.As(err, &sce) || sce.Code != engine.CodeTaskNotCompleted {
		t.Fatalf("delete before complete: %v", err)
	}

	if _, err := env.Engine.CompleteTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatalf("delete after complete: %v", err)
	}
	_, err = env.Engine.GetTask(env.Ctx, "solo", task.ID)
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("get deleted: %v", err)
	}
}

func TestArchiveHidesTask(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "old"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.ArchiveTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err = env.Engine.GetTask(env.Ctx, "solo", task.ID)
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) || nfe.Code != engine.CodeTaskNotFound {
		t.Fatalf("get archived: %v", err)
	}

	page, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{InstanceID: "solo"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 || len(page.Tasks) != 0 {
		t.Fatalf("archived leaked into default listing: total=%d", page.Total)
	}

	page, err = env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{InstanceID: "solo", Status: "archived"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("explicit archived filter total = %d", page.Total)
	}
}

func TestArchiveRequiresCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "not done"})
	if err != nil {
		t.Fatal(err)
	}
	err = env.Engine.ArchiveTask(env.Ctx, "solo", task.ID)
	var sce engine.StateConflictError
	if !errors.As(err, &sce) {
		t.Fatalf("archive pending: %v", err)
	}
}

func TestUpdateCannotShortcutLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "no shortcuts"})
	if err != nil {
		t.Fatal(err)
	}
	for _, status := range []string{"completed", "completed_verified", "archived"} {
		s := status
		_, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{InstanceID: "solo", TaskID: task.ID, Status: &s})
		var ve engine.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("update to %s: %v", status, err)
		}
	}
}

func TestListTasksPagination(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	var ids []string
	for i := 0; i < 5; i++ {
		task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: fmt.Sprintf("task %d", i)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID)
	}

	page, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{InstanceID: "solo", Skip: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if len(page.Tasks) != 2 {
		t.Fatalf("page size = %d, want 2", len(page.Tasks))
	}
	if page.Tasks[0].ID != ids[2] || page.Tasks[1].ID != ids[3] {
		t.Fatalf("wrong window: got %s, %s", page.Tasks[0].ID, page.Tasks[1].ID)
	}
	if page.Skip != 2 {
		t.Fatalf("skip echoed as %d", page.Skip)
	}
}

func TestClaimSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "exec", Title: "grab me", ProjectID: "proj-1"})
	if err != nil {
		t.Fatal(err)
	}

	won, err := env.Engine.ClaimTask(env.Ctx, "alice", task.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if won.AssignedTo == nil || *won.AssignedTo != "alice" {
		t.Fatalf("winner assignment = %v", won.AssignedTo)
	}

	_, err = env.Engine.ClaimTask(env.Ctx, "bob", task.ID)
	var sce engine.StateConflictError
	if !errors.As(err, &sce) || sce.Code != engine.CodeAlreadyAssigned {
		t.Fatalf("second claim: %v", err)
	}
}

func TestClaimRaceConcurrent(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "exec", Title: "contested", ProjectID: "proj-1"})
	if err != nil {
		t.Fatal(err)
	}

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, claimant := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, claimant string) {
			defer wg.Done()
			<-start
			_, errs[i] = env.Engine.ClaimTask(env.Ctx, claimant, task.ID)
		}(i, claimant)
	}
	close(start)
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var sce engine.StateConflictError
		if !errors.As(err, &sce) || sce.Code != engine.CodeAlreadyAssigned {
			t.Fatalf("losing claim: %v", err)
		}
		conflicts++
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins=%d conflicts=%d, want exactly one of each", wins, conflicts)
	}

	got, err := env.Engine.GetTask(env.Ctx, "exec", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTo == nil {
		t.Fatal("task left unassigned after race")
	}
}

func TestDeleteArchivedTaskNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "buried"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.ArchiveTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatal(err)
	}

	err = env.Engine.DeleteTask(env.Ctx, "solo", task.ID)
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) || nfe.Code != engine.CodeTaskNotFound {
		t.Fatalf("delete archived: %v", err)
	}
}

func TestConfiguredPrivilegedRoles(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "exec", Title: "handoff", ProjectID: "proj-1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.AssignTask(env.Ctx, "alice", task.ID, "bob")
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("developer push-assign under default grants: %v", err)
	}

	// Reseeding with Developer in the privileged list grants task.assign.
	if err := env.Engine.Repo.SeedRoles(env.Ctx, []string{"Developer"}); err != nil {
		t.Fatal(err)
	}
	assigned, err := env.Engine.AssignTask(env.Ctx, "alice", task.ID, "bob")
	if err != nil {
		t.Fatalf("privileged developer assign: %v", err)
	}
	if assigned.AssignedTo == nil || *assigned.AssignedTo != "bob" {
		t.Fatalf("assignment = %v", assigned.AssignedTo)
	}
}

func TestAssignRules(t *testing.T) {
	env := newTestEnv(t)
	env.newProject(t, "proj-1", "alice", "bob", "carol")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "alice", Title: "handoff", ProjectID: "proj-1"})
	if err != nil {
		t.Fatal(err)
	}

	// A plain member may self-assign but not push work onto others.
	if _, err := env.Engine.AssignTask(env.Ctx, "bob", task.ID, "bob"); err != nil {
		t.Fatalf("self assign: %v", err)
	}
	_, err = env.Engine.AssignTask(env.Ctx, "bob", task.ID, "carol")
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("unprivileged assign: %v", err)
	}

	// The creator and privileged roles may assign anyone.
	if _, err := env.Engine.AssignTask(env.Ctx, "alice", task.ID, "carol"); err != nil {
		t.Fatalf("creator assign: %v", err)
	}
	if _, err := env.Engine.AssignTask(env.Ctx, "exec", task.ID, "bob"); err != nil {
		t.Fatalf("privileged assign: %v", err)
	}

	// Assignee must be a member.
	env.register(t, "mallory", "Developer")
	if _, err := env.Engine.AssignTask(env.Ctx, "alice", task.ID, "mallory"); err == nil {
		t.Fatal("assigned to non-member")
	}
}

func TestAssignPersonalTaskRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")
	env.register(t, "other", "Developer")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "private"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AssignTask(env.Ctx, "solo", task.ID, "other")
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("assign personal: %v", err)
	}
}

func TestDuplicateTaskListConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	if _, err := env.Engine.CreateTaskList(env.Ctx, "solo", "sprint-9", ""); err != nil {
		t.Fatalf("create list: %v", err)
	}
	_, err := env.Engine.CreateTaskList(env.Ctx, "solo", "sprint-9", "")
	var sce engine.StateConflictError
	if !errors.As(err, &sce) || sce.Code != engine.CodeListExists {
		t.Fatalf("duplicate list: %v", err)
	}
}

func TestDeleteTaskListGuards(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	err := env.Engine.DeleteTaskList(env.Ctx, "solo", domain.DefaultListID, "")
	var sce engine.StateConflictError
	if !errors.As(err, &sce) || sce.Code != engine.CodeCannotDeleteDefault {
		t.Fatalf("delete default: %v", err)
	}

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "busy", ListID: "backlog"})
	if err != nil {
		t.Fatal(err)
	}
	err = env.Engine.DeleteTaskList(env.Ctx, "solo", "backlog", "")
	if !errors.As(err, &sce) || sce.Code != engine.CodeListNotEmpty {
		t.Fatalf("delete occupied list: %v", err)
	}

	if _, err := env.Engine.CompleteTask(env.Ctx, "solo", task.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTaskList(env.Ctx, "solo", "backlog", ""); err != nil {
		t.Fatalf("delete drained list: %v", err)
	}

	err = env.Engine.DeleteTaskList(env.Ctx, "solo", "never-was", "")
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) || nfe.Code != engine.CodeListNotFound {
		t.Fatalf("delete unknown list: %v", err)
	}
}

func TestNextTaskOrdering(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "meh", Priority: "low"}); err != nil {
		t.Fatal(err)
	}
	urgent, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "solo", Title: "fire", Priority: "critical"})
	if err != nil {
		t.Fatal(err)
	}

	next, err := env.Engine.NextTask(env.Ctx, "solo", "")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.ID != urgent.ID {
		t.Fatalf("next = %s, want %s", next.ID, urgent.ID)
	}

	if _, err := env.Engine.CompleteTask(env.Ctx, "solo", urgent.ID); err != nil {
		t.Fatal(err)
	}
	next, err = env.Engine.NextTask(env.Ctx, "solo", "")
	if err != nil {
		t.Fatal(err)
	}
	if next.Priority != domain.PriorityLow {
		t.Fatalf("next after completion = %s", next.ID)
	}
}

func TestUnknownInstanceRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{InstanceID: "ghost", Title: "boo"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Code != engine.CodeInvalidInstanceID {
		t.Fatalf("unknown instance: %v", err)
	}
}

func TestProjectCreationRequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dev", "Developer")

	_, err := env.Engine.CreateProject(env.Ctx, "dev", "proj-x", "", "")
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("developer created project: %v", err)
	}

	env.register(t, "boss", "COO")
	if _, err := env.Engine.CreateProject(env.Ctx, "boss", "proj-x", "", ""); err != nil {
		t.Fatalf("COO create project: %v", err)
	}
	_, err = env.Engine.CreateProject(env.Ctx, "boss", "proj-x", "", "")
	var sce engine.StateConflictError
	if !errors.As(err, &sce) {
		t.Fatalf("duplicate project: %v", err)
	}
}

func TestChecklistTextPreserved(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	texts := []string{
		`{"cmd": "run --flag \"x\""}`,
		"  leading and trailing  ",
		"任务 Zadanie ✓\n second line",
	}
	list, err := env.Engine.CreateChecklist(env.Ctx, "solo", "opaque", "", texts)
	if err != nil {
		t.Fatalf("create checklist: %v", err)
	}

	got, err := env.Engine.GetChecklist(env.Ctx, "solo", list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != len(texts) {
		t.Fatalf("item count = %d", len(got.Items))
	}
	for i, item := range got.Items {
		if item.Text != texts[i] {
			t.Fatalf("item %d text changed: %q != %q", i, item.Text, texts[i])
		}
	}
}

func TestChecklistToggleRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	list, err := env.Engine.CreateChecklist(env.Ctx, "solo", "routine", "", []string{"water plants"})
	if err != nil {
		t.Fatal(err)
	}
	itemID := list.Items[0].ID

	item, err := env.Engine.ToggleChecklistItem(env.Ctx, "solo", list.ID, itemID)
	if err != nil || !item.Checked {
		t.Fatalf("first toggle: %v checked=%v", err, item.Checked)
	}
	item, err = env.Engine.ToggleChecklistItem(env.Ctx, "solo", list.ID, itemID)
	if err != nil || item.Checked {
		t.Fatalf("second toggle: %v checked=%v", err, item.Checked)
	}
	if item.Text != "water plants" {
		t.Fatalf("toggle altered text: %q", item.Text)
	}

	if err := env.Engine.DeleteChecklistItem(env.Ctx, "solo", list.ID, itemID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	_, err = env.Engine.ToggleChecklistItem(env.Ctx, "solo", list.ID, itemID)
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) || nfe.Code != engine.CodeItemNotFound {
		t.Fatalf("toggle deleted item: %v", err)
	}
}

func TestChecklistOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")
	env.register(t, "snoop", "Developer")

	list, err := env.Engine.CreateChecklist(env.Ctx, "solo", "secret", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.GetChecklist(env.Ctx, "snoop", list.ID)
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("foreign checklist read: %v", err)
	}
}

func TestChecklistEmptyItemRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "solo", "Developer")

	_, err := env.Engine.CreateChecklist(env.Ctx, "solo", "bad", "", []string{"ok", ""})
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Code != engine.CodeMissingParameter {
		t.Fatalf("empty item: %v", err)
	}
}

func TestStatusVocabularyReportsAlias(t *testing.T) {
	env := newTestEnv(t)
	statuses := env.Engine.TaskStatuses()
	if len(statuses) == 0 || statuses[0] != "not_started" {
		t.Fatalf("statuses = %v", statuses)
	}
	for _, s := range statuses {
		if s == "pending" {
			t.Fatal("stored alias leaked into vocabulary")
		}
	}
}
