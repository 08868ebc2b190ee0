package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/fwdtodo/internal/store"
	"github.com/spf13/cobra"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the local todo list",
	}

	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksDoneCommand(ctx))

	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *store.DB
			return ctx.inspect(cmd, func(runCtx context.Context) error {
				list, err := db.ListTasks(runCtx, all)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No tasks.")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, t := range list {
					done := ""
					if t.Done {
						done = "x"
					}
					rows = append(rows, []string{t.ID, done, formatTime(t.EventTS), t.Heading, t.Tags})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Done", "Event", "Heading", "Tags"}, rows, nil))
				return nil
			}, &db)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include completed tasks")
	return cmd
}

func newTasksDoneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *store.DB
			return ctx.modify(cmd, func(runCtx context.Context) error {
				ok, err := db.CompleteTask(runCtx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no task %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "task %s done\n", args[0])
				return nil
			}, &db)
		},
	}
}
