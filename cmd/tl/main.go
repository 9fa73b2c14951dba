package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	"taskline/internal/repo"
	"taskline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Taskline CLI",
	Long: `Taskline coordinates tasks and checklists for autonomous instances.
Core concepts:
- Workspace: your .taskline directory holding only the database.
- Instance: a registered caller; personal tasks belong to exactly one instance.
- Project: shared work owned by a team of member instances.
- Tasks: flow not_started -> in_progress -> completed -> completed_verified,
  then archive or delete. The instance that completed a task can never be
  the one that verifies it.
- Task lists: named buckets inside a scope; 'default' always exists.
- Checklists: private lists of toggleable items, text kept byte for byte.
- Event log: diary of changes, view with 'tl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("instance-id", "local-user", "calling instance identifier")
	rootCmd.PersistentFlags().String("project", "", "project id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("instance-id", rootCmd.PersistentFlags().Lookup("instance-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(instanceCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(taskListCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func instanceCmd() *cobra.Command {
	inst := &cobra.Command{Use: "instance", Short: "Manage instances"}
	inst.AddCommand(instanceRegisterCmd())
	inst.AddCommand(instanceWhoamiCmd())
	inst.AddCommand(instanceTakeRoleCmd())
	inst.AddCommand(instanceListCmd())
	return inst
}

func instanceRegisterCmd() *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the calling instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inst, err := e.RegisterInstance(ctx, viper.GetString("instance-id"), name, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(inst)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "initial role")
	return cmd
}

func instanceWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the calling instance with roles and projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inst, err := e.GetInstance(ctx, viper.GetString("instance-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(inst)
			})
		},
	}
	return cmd
}

func instanceTakeRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take-role <role>",
		Short: "Take on a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inst, err := e.TakeOnRole(ctx, viper.GetString("instance-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(inst)
			})
		},
	}
	return cmd
}

func instanceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListInstances(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectJoinCmd())
	prj.AddCommand(projectMembersCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, viper.GetString("instance-id"), id, name, desc)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectJoinCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "join <project-id>",
		Short: "Join a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.JoinProject(ctx, viper.GetString("instance-id"), args[0], role)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "member", "membership role")
	return cmd
}

func projectMembersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members <project-id>",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				members, err := r.ListProjectMembers(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(members)
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks flow not_started -> in_progress -> completed -> completed_verified, then archive or delete. Verification must come from a different instance than completion.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListTasksCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskVerifyCmd())
	task.AddCommand(taskArchiveCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskAssignCmd())
	task.AddCommand(taskClaimCmd())
	task.AddCommand(taskNextCmd())
	task.AddCommand(taskMineCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.InstanceID = viper.GetString("instance-id")
			if opts.ProjectID == "" {
				opts.ProjectID = viper.GetString("project")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (critical, high, medium, low)")
	cmd.Flags().StringVar(&opts.ListID, "list", "", "task list id (default when omitted)")
	cmd.Flags().StringVar(&opts.ProjectID, "project-id", "", "project id for a project task")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListTasksCmd() *cobra.Command {
	var listID, status string
	var skip, limit int
	var fullDetail bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				page, err := e.ListTasks(ctx, engine.TaskListOptions{
					InstanceID: viper.GetString("instance-id"),
					ProjectID:  viper.GetString("project"),
					ListID:     listID,
					Status:     status,
					Skip:       skip,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if fullDetail {
						return printJSON(map[string]any{"tasks": page.Tasks, "total": page.Total, "skip": page.Skip})
					}
					summaries := make([]domain.TaskSummary, 0, len(page.Tasks))
					for _, t := range page.Tasks {
						summaries = append(summaries, domain.TaskSummary{ID: t.ID, Title: t.Title, Priority: t.Priority, Status: t.Status})
					}
					return printJSON(map[string]any{"tasks": summaries, "total": page.Total, "skip": page.Skip})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status", "Assignee"})
				for _, t := range page.Tasks {
					assignee := ""
					if t.AssignedTo != nil {
						assignee = *t.AssignedTo
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, t.Status, assignee})
				}
				tw.Render()
				fmt.Printf("total: %d, skip: %d\n", page.Total, page.Skip)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&listID, "list", "", "task list filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&skip, "skip", 0, "items to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (config default when omitted)")
	cmd.Flags().BoolVar(&fullDetail, "full-detail", false, "emit full task records")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, viper.GetString("instance-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, priority, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				InstanceID: viper.GetString("instance-id"),
				TaskID:     args[0],
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status (not_started or in_progress)")
	return cmd
}

func taskLifecycleCmd(use, short string, fn func(ctx context.Context, e engine.Engine, instanceID, taskID string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := fn(ctx, e, viper.GetString("instance-id"), args[0])
				if err != nil {
					return err
				}
				if out == nil {
					return nil
				}
				return printJSONOrTable(out)
			})
		},
	}
}

func taskCompleteCmd() *cobra.Command {
	return taskLifecycleCmd("complete <id>", "Mark a task complete",
		func(ctx context.Context, e engine.Engine, instanceID, taskID string) (any, error) {
			return e.CompleteTask(ctx, instanceID, taskID)
		})
}

func taskVerifyCmd() *cobra.Command {
	return taskLifecycleCmd("verify <id>", "Verify a completed task",
		func(ctx context.Context, e engine.Engine, instanceID, taskID string) (any, error) {
			return e.VerifyTask(ctx, instanceID, taskID)
		})
}

func taskArchiveCmd() *cobra.Command {
	return taskLifecycleCmd("archive <id>", "Archive a completed task",
		func(ctx context.Context, e engine.Engine, instanceID, taskID string) (any, error) {
			return nil, e.ArchiveTask(ctx, instanceID, taskID)
		})
}

func taskDeleteCmd() *cobra.Command {
	return taskLifecycleCmd("delete <id>", "Delete a completed task",
		func(ctx context.Context, e engine.Engine, instanceID, taskID string) (any, error) {
			return nil, e.DeleteTask(ctx, instanceID, taskID)
		})
}

func taskClaimCmd() *cobra.Command {
	return taskLifecycleCmd("claim <id>", "Claim an unassigned project task",
		func(ctx context.Context, e engine.Engine, instanceID, taskID string) (any, error) {
			return e.ClaimTask(ctx, instanceID, taskID)
		})
}

func taskAssignCmd() *cobra.Command {
	var assignee string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a project task to a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AssignTask(ctx, viper.GetString("instance-id"), args[0], assignee)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "to", "", "assignee instance id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func taskNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Most urgent actionable task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.NextTask(ctx, viper.GetString("instance-id"), viper.GetString("project"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Personal tasks plus assigned project tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mine, err := e.GetMyTasks(ctx, viper.GetString("instance-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"tasks":        mine.Personal,
					"projectTasks": mine.Project,
				})
			})
		},
	}
	return cmd
}

func taskListCmd() *cobra.Command {
	tl := &cobra.Command{
		Use:   "tasklist",
		Short: "Manage task lists",
		Long:  "Named buckets of tasks inside a scope. Every scope has a 'default' list that cannot be deleted; other lists can only go once no unfinished tasks remain in them.",
	}
	tl.AddCommand(taskListCreateCmd())
	tl.AddCommand(taskListListCmd())
	tl.AddCommand(taskListDeleteCmd())
	return tl
}

func taskListCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <list-id>",
		Short: "Create a task list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateTaskList(ctx, viper.GetString("instance-id"), args[0], viper.GetString("project"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	return cmd
}

func taskListListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				lists, err := e.ListTaskLists(ctx, viper.GetString("instance-id"), viper.GetString("project"))
				if err != nil {
					return err
				}
				return printJSONOrTable(lists)
			})
		},
	}
	return cmd
}

func taskListDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <list-id>",
		Short: "Delete a task list with no unfinished work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTaskList(ctx, viper.GetString("instance-id"), args[0], viper.GetString("project"))
			})
		},
	}
	return cmd
}

func checklistCmd() *cobra.Command {
	cl := &cobra.Command{
		Use:   "checklist",
		Short: "Manage checklists",
		Long:  "Private lists of toggleable items. Item text is stored byte for byte, whatever it contains.",
	}
	cl.AddCommand(checklistCreateCmd())
	cl.AddCommand(checklistListCmd())
	cl.AddCommand(checklistShowCmd())
	cl.AddCommand(checklistRenameCmd())
	cl.AddCommand(checklistDeleteCmd())
	cl.AddCommand(checklistAddItemCmd())
	cl.AddCommand(checklistToggleCmd())
	cl.AddCommand(checklistRemoveItemCmd())
	return cl
}

func checklistCreateCmd() *cobra.Command {
	var name, desc string
	var items []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a checklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateChecklist(ctx, viper.GetString("instance-id"), name, desc, items)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "checklist name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringArrayVar(&items, "item", []string{}, "seed item text (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func checklistListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Checklist summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				lists, err := e.ListChecklists(ctx, viper.GetString("instance-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(lists)
			})
		},
	}
	return cmd
}

func checklistShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <list-id>",
		Short: "Show a checklist with items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetChecklist(ctx, viper.GetString("instance-id"), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("%s (%s)\n", c.Name, c.ID)
				for _, item := range c.Items {
					mark := " "
					if item.Checked {
						mark = "x"
					}
					fmt.Printf("  [%s] %s %s\n", mark, item.ID, item.Text)
				}
				return nil
			})
		},
	}
	return cmd
}

func checklistRenameCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "rename <list-id>",
		Short: "Rename a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.RenameChecklist(ctx, viper.GetString("instance-id"), args[0], name)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func checklistDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <list-id>",
		Short: "Delete a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteChecklist(ctx, viper.GetString("instance-id"), args[0])
			})
		},
	}
	return cmd
}

func checklistAddItemCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "add-item <list-id>",
		Short: "Add a checklist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.AddChecklistItem(ctx, viper.GetString("instance-id"), args[0], text)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "item text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func checklistToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <list-id> <item-id>",
		Short: "Toggle a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.ToggleChecklistItem(ctx, viper.GetString("instance-id"), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	return cmd
}

func checklistRemoveItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-item <list-id> <item-id>",
		Short: "Delete a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteChecklistItem(ctx, viper.GetString("instance-id"), args[0], args[1])
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Task counts for the current scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				scope := domain.ScopePersonal
				ownerKey := viper.GetString("instance-id")
				if p := viper.GetString("project"); p != "" {
					scope = domain.ScopeProject
					ownerKey = p
				}
				counts, err := e.Repo.CountTasksByStatus(ctx, scope, ownerKey)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"scope": scope, "owner": ownerKey, "task_counts": counts})
				}
				fmt.Printf("Scope: %s (%s)\n", scope, ownerKey)
				fmt.Println("Tasks:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: task transitions, claims, checklist changes, and more.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.TailEvents(ctx, n, viper.GetString("project"), evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the calling instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := "tlk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
				key := domain.APIKey{
					ID:         uuid.NewString(),
					InstanceID: viper.GetString("instance-id"),
					Name:       name,
					KeyHash:    repo.HashAPIKey(secret),
					CreatedAt:  time.Now().UTC().Format(time.RFC3339),
				}
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				// The secret is only shown once; the DB keeps the hash.
				return printJSONOrTable(map[string]string{"id": key.ID, "key": secret})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for the calling instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, viper.GetString("instance-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.RevokeAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, r)
			if err != nil {
				return err
			}
			if err := r.SeedRoles(cmd.Context(), cfg.PrivilegedRoles()); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:                 os.Getenv("TASKLINE_JWT_SECRET"),
				AllowLegacyInstanceHeader: cfg.Auth.AllowLegacyHeader,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyInstanceHeader {
				return fmt.Errorf("TASKLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, r)
	if err != nil {
		return err
	}
	if err := r.SeedRoles(ctx, cfg.PrivilegedRoles()); err != nil {
		return err
	}
	if err := app.BootstrapActor(ctx, r, viper.GetString("instance-id")); err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
