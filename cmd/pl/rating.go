package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRatingCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "rating",
		Short: "Show engineer efficiency ratings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.tracker.ComputeRatings(cmd.Context(), s.actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(r.Engineers) == 0 {
				fmt.Fprintln(out, "No engineers have tasks yet.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tENGINEER\tCLOSED\tTOTAL\tEFFICIENCY")
			for i, st := range r.Engineers {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", i+1, st.Name, st.Closed, st.Total, formatPercent(st.Efficiency))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprint(out, "\nPodium:")
			for i, st := range r.Podium {
				fmt.Fprintf(out, " %d. %s", i+1, st.Name)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	return cmd
}
