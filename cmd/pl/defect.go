package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/tracker"
)

func newDefectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defect",
		Short: "Defect commands",
	}

	cmd.AddCommand(newDefectCreateCmd())
	cmd.AddCommand(newDefectListCmd())
	cmd.AddCommand(newDefectAssignCmd())
	cmd.AddCommand(newDefectCommentCmd())
	cmd.AddCommand(newDefectHistoryCmd())
	return cmd
}

func newDefectCreateCmd() *cobra.Command {
	var (
		configPath  string
		as          string
		projectID   uint
		title       string
		description string
		files       []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Report a new defect",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			var atts []tracker.Attachment
			for _, path := range files {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open attachment: %w", err)
				}
				defer f.Close()
				atts = append(atts, tracker.Attachment{Name: filepath.Base(path), Body: f})
			}

			d, err := s.tracker.CreateDefect(cmd.Context(), s.actor, tracker.NewDefect{
				ProjectID:   projectID,
				Title:       title,
				Description: description,
				Attachments: atts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created defect %d %q with %d file(s)\n", d.ID, d.Title, len(d.Files))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	cmd.Flags().UintVar(&projectID, "project", 0, "project id (required)")
	cmd.Flags().StringVar(&title, "title", "", "defect title (required)")
	cmd.Flags().StringVar(&description, "description", "", "defect description")
	cmd.Flags().StringSliceVar(&files, "file", nil, "attachment path (repeatable)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newDefectListCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List new defects in your projects awaiting assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			defects, err := s.tracker.ListDefectsForManager(cmd.Context(), s.actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(defects) == 0 {
				fmt.Fprintln(out, "No defects awaiting assignment.")
				return nil
			}
			width := nameWidth(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROJECT\tTITLE\tREPORTED BY\tFILES\tCREATED")
			for _, d := range defects {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					d.ID, truncate(d.Project.Name, width), truncate(d.Title, width),
					d.Initiator.FullName, len(d.Files), d.CreatedAt.Format(dateLayout))
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	return cmd
}

func newDefectAssignCmd() *cobra.Command {
	var configPath, as, to, due string

	cmd := &cobra.Command{
		Use:   "assign <defect-id>",
		Short: "Assign a defect to an engineer, creating its task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			dueDate, err := parseDateFlag(due, "due")
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			engineer, err := userByEmail(s.db, to)
			if err != nil {
				return err
			}
			t, err := s.tracker.AssignDefect(cmd.Context(), s.actor, tracker.Assignment{
				DefectID:   id,
				AssigneeID: engineer.ID,
				DueDate:    dueDate,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Defect %d assigned to %s as task %d (due %s)\n",
				id, engineer.FullName, t.ID, formatDate(t.DueDate))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	cmd.Flags().StringVar(&to, "to", "", "email of the engineer (required)")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newDefectCommentCmd() *cobra.Command {
	var configPath, as, file string

	cmd := &cobra.Command{
		Use:   "comment <defect-id> <text>",
		Short: "Comment on a defect, optionally attaching a file",
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

			ctx := cmd.Context()
			if file == "" {
				h, err := s.tracker.AddComment(ctx, s.actor, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Comment #%d added to defect %d\n", h.Seq, id)
				return nil
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open attachment: %w", err)
			}
			defer f.Close()
			h, err := s.tracker.AddCommentWithFile(ctx, s.actor, id, args[1], tracker.Attachment{Name: filepath.Base(file), Body: f})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment #%d with %s added to defect %d\n", h.Seq, filepath.Base(file), id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	cmd.Flags().StringVar(&file, "file", "", "attachment path")
	return cmd
}

func newDefectHistoryCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "history <defect-id>",
		Short: "Show a defect's audit trail",
		Args:  cobra.ExactArgs(1),
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
			return runDefectHistory(cmd.Context(), cmd, s, id)
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	return cmd
}

func runDefectHistory(ctx context.Context, cmd *cobra.Command, s *session, id uint) error {
	entries, err := s.tracker.ReadHistory(ctx, s.actor, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tWHEN\tWHO\tACTION\tDETAIL")
	for _, h := range entries {
		detail := h.ActionText
		if h.File != nil {
			detail += " [" + h.File.FileName + "]"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			h.Seq, h.CreatedAt.Format("2006-01-02 15:04"), h.Actor.FullName, h.ActionType, detail)
	}
	return w.Flush()
}

func parseIDArg(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}
