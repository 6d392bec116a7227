package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/report"
)

type reportFlags struct {
	configPath, as   string
	status, from, to string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	addConfigFlag(cmd, &f.configPath)
	addAsFlag(cmd, &f.as)
	cmd.Flags().StringVar(&f.status, "status", "", "only tasks in this status")
	cmd.Flags().StringVar(&f.from, "from", "", "due date after, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "due date before, YYYY-MM-DD")
}

func (f *reportFlags) filter() (report.Filter, error) {
	rf := report.Filter{Status: f.status}
	var err error
	if rf.From, err = parseDateFlag(f.from, "from"); err != nil {
		return rf, err
	}
	if rf.To, err = parseDateFlag(f.to, "to"); err != nil {
		return rf, err
	}
	return rf, nil
}

func newReportCmd() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report <project-id>",
		Short: "Show the task report for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, &flags, args[0])
		},
	}

	flags.register(cmd)
	cmd.AddCommand(newReportExportCmd())
	return cmd
}

func runReport(cmd *cobra.Command, flags *reportFlags, arg string) error {
	projectID, err := parseIDArg(arg)
	if err != nil {
		return err
	}
	f, err := flags.filter()
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), flags.configPath, flags.as)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := s.tracker.BuildReport(cmd.Context(), s.actor, projectID, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := nameWidth(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tDEFECT\tSTATUS\tASSIGNEE\tDUE\tHISTORY\tLAST UPDATE\t")
	for _, r := range rep.Rows {
		overdue := ""
		if r.Overdue {
			overdue = "OVERDUE"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.TaskID, truncate(r.DefectName, width), r.Status, r.AssigneeName,
			formatDate(r.DueDate), r.HistoryCount, r.LastUpdate.Format("2006-01-02 15:04"), overdue)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	sum := rep.Summary
	fmt.Fprintf(out, "\nTotal: %d  Closed: %d  Overdue: %d  Avg completion: %s\n",
		sum.Total, sum.Closed, sum.Overdue, formatHours(sum.AvgCompletionHours))
	fmt.Fprint(out, "By status:")
	for _, sc := range sum.ByStatus {
		fmt.Fprintf(out, " %s=%d", sc.Status, sc.Count)
	}
	fmt.Fprintln(out)
	return nil
}

func newReportExportCmd() *cobra.Command {
	var (
		flags  reportFlags
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export the project report as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			f, err := flags.filter()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), flags.configPath, flags.as)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := s.tracker.ExportReport(cmd.Context(), s.actor, projectID, f, report.CSVWriter{})
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			path := filepath.Join(outDir, a.FileName)
			if err := os.WriteFile(path, a.Content, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(a.Content))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the export to")
	return cmd
}
