package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Punchlist database",
		Long:  "Migrates all tables and seeds the users listed in the config file. Safe to re-run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedUsers(gormDB, cfg.Users); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d users:", len(cfg.Users))
	for _, u := range cfg.Users {
		fmt.Fprintf(out, " %s (%s)", u.Email, u.Role)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nPunchlist database initialized successfully.")
	return nil
}
