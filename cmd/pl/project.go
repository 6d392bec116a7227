package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/project"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var configPath, as, name, description, customer, manager string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			opts := project.CreateOpts{Name: name, Description: description}
			c, err := userByEmail(s.db, customer)
			if err != nil {
				return err
			}
			opts.CustomerID = c.ID
			if manager != "" {
				m, err := userByEmail(s.db, manager)
				if err != nil {
					return err
				}
				opts.ManagerID = m.ID
			}

			p, err := s.tracker.CreateProject(cmd.Context(), s.actor, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %d %q\n", p.ID, p.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	cmd.Flags().StringVar(&name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringVar(&customer, "customer", "", "email of the customer (required)")
	cmd.Flags().StringVar(&manager, "manager", "", "email of the manager (default: you)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("customer")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the projects you can see",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), configPath, as)
			if err != nil {
				return err
			}
			defer s.Close()

			projects, err := s.tracker.ListProjects(cmd.Context(), s.actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}
			width := nameWidth(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMANAGER\tCUSTOMER\tACTIVE")
			for _, p := range projects {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n",
					p.ID, truncate(p.Name, width), p.Manager.FullName, p.Customer.FullName, p.Active)
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	addAsFlag(cmd, &as)
	return cmd
}
