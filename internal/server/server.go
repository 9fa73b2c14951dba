package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskline/internal/engine"
	"taskline/internal/engine/auth"
	"taskline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"TASK_NOT_COMPLETED"`
	Message string         `json:"message" example:"task must be completed before verification"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the failure envelope: success=false plus an error object.
type apiError struct {
	status  int
	Success bool         `json:"success"`
	Body    apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Taskline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the success/error envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Taskline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerInstances(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerTaskLists(group, cfg.Engine)
	registerChecklists(group, cfg.Engine)
	registerVocabularies(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors onto the response envelope. Each error kind
// keeps its machine-readable code.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, ve.Code, ve.Message, nil)
	}
	var nfe engine.NotFoundError
	if errors.As(err, &nfe) {
		return newAPIError(http.StatusNotFound, nfe.Code, nfe.Message, nil)
	}
	var sce engine.StateConflictError
	if errors.As(err, &sce) {
		return newAPIError(http.StatusConflict, sce.Code, sce.Message, nil)
	}
	var sve auth.SelfVerificationError
	if errors.As(err, &sve) {
		return newAPIError(http.StatusForbidden, engine.CodeUnauthorized, err.Error(), map[string]any{"task_id": sve.TaskID})
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, engine.CodeUnauthorized, err.Error(), map[string]any{"capability": fe.Capability})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return engine.CodeMissingParameter
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return engine.CodeUnauthorized
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Taskline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerInstances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-instance",
		Method:        http.MethodPost,
		Path:          "/instances",
		Summary:       "Register a calling instance",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body RegisterInstanceRequest `json:"body"`
	}) (*struct {
		Body InstanceResponse `json:"body"`
	}, error) {
		id := input.Body.InstanceID
		if id == "" {
			if caller, authErr := instanceIDFromContext(ctx); authErr == nil {
				id = caller
			}
		}
		inst, err := e.RegisterInstance(ctx, id, input.Body.Name, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InstanceResponse `json:"body"`
		}{Body: InstanceResponse{Success: true, Instance: inst}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current instance with roles and projects",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body InstanceResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inst, err := e.GetInstance(ctx, caller)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InstanceResponse `json:"body"`
		}{Body: InstanceResponse{Success: true, Instance: inst}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "take-on-role",
		Method:      http.MethodPost,
		Path:        "/me/roles",
		Summary:     "Take on a role",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body TakeOnRoleRequest `json:"body"`
	}) (*struct {
		Body InstanceResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inst, err := e.TakeOnRole(ctx, caller, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InstanceResponse `json:"body"`
		}{Body: InstanceResponse{Success: true, Instance: inst}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-my-tasks",
		Method:      http.MethodGet,
		Path:        "/me/tasks",
		Summary:     "Personal tasks plus assigned project tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MyTasksResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		mine, err := e.GetMyTasks(ctx, caller)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MyTasksResponse `json:"body"`
		}{Body: MyTasksResponse{Success: true, Tasks: mine.Personal, ProjectTasks: mine.Project}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-next-task",
		Method:      http.MethodGet,
		Path:        "/me/next-task",
		Summary:     "Most urgent actionable task for the caller",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.NextTask(ctx, caller, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Success: true, Task: t}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, caller, input.Body.ID, input.Body.Name, input.Body.Description)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: ProjectResponse{Success: true, Project: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProjectsResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectsResponse `json:"body"`
		}{Body: ProjectsResponse{Success: true, Projects: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "join-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/join",
		Summary:     "Join a project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		Body      JoinProjectRequest `json:"body"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.JoinProject(ctx, caller, input.ProjectID, input.Body.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{Success: true}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body CreateTaskResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			InstanceID:  caller,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			ListID:      input.Body.ListID,
			ProjectID:   input.Body.ProjectID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CreateTaskResponse `json:"body"`
		}{Body: CreateTaskResponse{Success: true, TaskID: t.ID, TaskType: string(t.Scope), Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get a task by id",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, caller, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Success: true, Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task fields",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			InstanceID:  caller,
			TaskID:      input.TaskID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Success: true, Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks with filters and pagination",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		ListID     string `query:"list_id"`
		Status     string `query:"status"`
		Skip       int    `query:"skip" minimum:"0"`
		Limit      int    `query:"limit" minimum:"0"`
		FullDetail bool   `query:"full_detail"`
	}) (*struct {
		Body ListTasksResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page, err := e.ListTasks(ctx, engine.TaskListOptions{
			InstanceID: caller,
			ProjectID:  input.ProjectID,
			ListID:     input.ListID,
			Status:     input.Status,
			Skip:       input.Skip,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		body := ListTasksResponse{Success: true, Total: page.Total, Skip: page.Skip}
		if input.FullDetail {
			body.Tasks = page.Tasks
		} else {
			body.Tasks = taskSummaries(page.Tasks)
		}
		return &struct {
			Body ListTasksResponse `json:"body"`
		}{Body: body}, nil
	})

	type taskPath struct {
		TaskID string `path:"task_id"`
	}

	lifecycle := func(opID, p, summary string, fn func(ctx context.Context, caller, taskID string) (TaskResponse, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        p,
			Summary:     summary,
			Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *taskPath) (*struct {
			Body TaskResponse `json:"body"`
		}, error) {
			caller, authErr := instanceIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			body, err := fn(ctx, caller, input.TaskID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body TaskResponse `json:"body"`
			}{Body: body}, nil
		})
	}

	lifecycle("complete-task", "/tasks/{task_id}/complete", "Mark a task complete",
		func(ctx context.Context, caller, taskID string) (TaskResponse, error) {
			t, err := e.CompleteTask(ctx, caller, taskID)
			return TaskResponse{Success: true, Task: t}, err
		})
	lifecycle("verify-task", "/tasks/{task_id}/verify", "Verify a completed task",
		func(ctx context.Context, caller, taskID string) (TaskResponse, error) {
			t, err := e.VerifyTask(ctx, caller, taskID)
			return TaskResponse{Success: true, Task: t}, err
		})
	lifecycle("claim-task", "/tasks/{task_id}/claim", "Claim an unassigned task",
		func(ctx context.Context, caller, taskID string) (TaskResponse, error) {
			t, err := e.ClaimTask(ctx, caller, taskID)
			return TaskResponse{Success: true, Task: t}, err
		})

	huma.Register(api, huma.Operation{
		OperationID: "archive-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/archive",
		Summary:     "Archive a completed task",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ArchiveTask(ctx, caller, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete a completed task",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, caller, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/assign",
		Summary:     "Assign a project task to a member",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   AssignTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AssignTask(ctx, caller, input.TaskID, input.Body.AssigneeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Success: true, Task: t}}, nil
	})
}

func registerTaskLists(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task-list",
		Method:        http.MethodPost,
		Path:          "/task-lists",
		Summary:       "Create a named task list",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskListRequest `json:"body"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.CreateTaskList(ctx, caller, input.Body.ListID, input.Body.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Success: true, List: l}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-lists",
		Method:      http.MethodGet,
		Path:        "/task-lists",
		Summary:     "List task lists of a scope",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body TaskListsResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		lists, err := e.ListTaskLists(ctx, caller, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskListsResponse `json:"body"`
		}{Body: TaskListsResponse{Success: true, Lists: lists}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task-list",
		Method:      http.MethodDelete,
		Path:        "/task-lists/{list_id}",
		Summary:     "Delete a task list with no unfinished work",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ListID    string `path:"list_id"`
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTaskList(ctx, caller, input.ListID, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{Success: true}}, nil
	})
}

func registerChecklists(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-list",
		Method:        http.MethodPost,
		Path:          "/checklists",
		Summary:       "Create a checklist",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateChecklistRequest `json:"body"`
	}) (*struct {
		Body ChecklistResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateChecklist(ctx, caller, input.Body.Name, input.Body.Description, input.Body.Items)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistResponse `json:"body"`
		}{Body: ChecklistResponse{Success: true, List: c}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lists",
		Method:      http.MethodGet,
		Path:        "/checklists",
		Summary:     "Checklist summaries without item bodies",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ChecklistsResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		lists, err := e.ListChecklists(ctx, caller)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistsResponse `json:"body"`
		}{Body: ChecklistsResponse{Success: true, Lists: lists}}, nil
	})

	type checklistPath struct {
		ListID string `path:"list_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-list",
		Method:      http.MethodGet,
		Path:        "/checklists/{list_id}",
		Summary:     "Get a checklist with items",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *checklistPath) (*struct {
		Body ChecklistResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetChecklist(ctx, caller, input.ListID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistResponse `json:"body"`
		}{Body: ChecklistResponse{Success: true, List: c}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-list",
		Method:      http.MethodPatch,
		Path:        "/checklists/{list_id}",
		Summary:     "Rename a checklist",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ListID string                 `path:"list_id"`
		Body   RenameChecklistRequest `json:"body"`
	}) (*struct {
		Body ChecklistResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.RenameChecklist(ctx, caller, input.ListID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistResponse `json:"body"`
		}{Body: ChecklistResponse{Success: true, List: c}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-list",
		Method:      http.MethodDelete,
		Path:        "/checklists/{list_id}",
		Summary:     "Delete a checklist",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *checklistPath) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteChecklist(ctx, caller, input.ListID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-list-item",
		Method:        http.MethodPost,
		Path:          "/checklists/{list_id}/items",
		Summary:       "Add a checklist item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ListID string                  `path:"list_id"`
		Body   AddChecklistItemRequest `json:"body"`
	}) (*struct {
		Body ChecklistItemResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.AddChecklistItem(ctx, caller, input.ListID, input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistItemResponse `json:"body"`
		}{Body: ChecklistItemResponse{Success: true, Item: item}}, nil
	})

	type itemPath struct {
		ListID string `path:"list_id"`
		ItemID string `path:"item_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "toggle-list-item",
		Method:      http.MethodPost,
		Path:        "/checklists/{list_id}/items/{item_id}/toggle",
		Summary:     "Toggle a checklist item",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *itemPath) (*struct {
		Body ChecklistItemResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.ToggleChecklistItem(ctx, caller, input.ListID, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistItemResponse `json:"body"`
		}{Body: ChecklistItemResponse{Success: true, Item: item}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-list-item",
		Method:      http.MethodDelete,
		Path:        "/checklists/{list_id}/items/{item_id}",
		Summary:     "Delete a checklist item",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *itemPath) (*struct {
		Body OKResponse `json:"body"`
	}, error) {
		caller, authErr := instanceIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteChecklistItem(ctx, caller, input.ListID, input.ItemID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OKResponse `json:"body"`
		}{Body: OKResponse{Success: true}}, nil
	})
}

func registerVocabularies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-priorities",
		Method:      http.MethodGet,
		Path:        "/meta/priorities",
		Summary:     "Closed priority vocabulary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body VocabularyResponse `json:"body"`
	}, error) {
		return &struct {
			Body VocabularyResponse `json:"body"`
		}{Body: VocabularyResponse{Success: true, Priorities: e.Priorities()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-statuses",
		Method:      http.MethodGet,
		Path:        "/meta/statuses",
		Summary:     "Closed status vocabulary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body VocabularyResponse `json:"body"`
	}, error) {
		return &struct {
			Body VocabularyResponse `json:"body"`
		}{Body: VocabularyResponse{Success: true, Statuses: e.TaskStatuses()}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "tail-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Newest lifecycle events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
		ProjectID  string `query:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		items, err := e.TailEvents(ctx, input.Limit, input.ProjectID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: EventsResponse{Success: true, Events: items}}, nil
	})
}
