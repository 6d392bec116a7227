package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task commands",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskStatusCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath, as, status string
		projectID              uint
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks you can see",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			tasks, err := s.tracker.ListTasks(cmd.Context(), s.actor, task.ListFilters{ProjectID: projectID, Status: status})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			width := nameWidth(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDEFECT\tNAME\tSTATUS\tASSIGNEE\tDUE")
			for _, t := range tasks {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
					t.ID, t.RelatedDefectID, truncate(t.Name, width), t.Status,
					t.Assignee.FullName, formatDate(t.DueDate))
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	cmd.Flags().StringVar(&status, "status", "", "filter by status (New, InProgress, InReview, Closed)")
	cmd.Flags().UintVar(&projectID, "project", 0, "filter by project id")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := s.tracker.ChangeTaskStatus(cmd.Context(), s.actor, id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now %s\n", t.ID, t.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	return cmd
}
