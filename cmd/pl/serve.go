package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/api"
	"github.com/zulandar/punchlist/internal/db"
	"github.com/zulandar/punchlist/internal/digest"
	"github.com/zulandar/punchlist/internal/identity"
	"github.com/zulandar/punchlist/internal/logger"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the overdue digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	tr, err := newTracker(cfg, gormDB, log)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Start(gctx, api.StartOpts{
			Tracker: tr,
			Resolver: identity.NewVerifier(gormDB, identity.Options{
				Secret:    cfg.Auth.JWTSecret,
				CacheSize: cfg.Auth.IdentityCacheSize,
				CacheTTL:  cfg.Auth.IdentityCacheTTL,
				Timeout:   cfg.Timeouts.Identity,
			}),
			Log:            log,
			Port:           port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxUploadMB:    cfg.Server.MaxUploadMB,
			Out:            cmd.OutOrStdout(),
		})
	})
	g.Go(func() error {
		return digest.New(digest.Options{
			DB:       gormDB,
			Log:      log.With("component", "digest"),
			Schedule: cfg.Digest.Schedule,
		}).Run(gctx)
	})
	return g.Wait()
}
