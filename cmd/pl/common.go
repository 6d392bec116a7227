package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/config"
	"github.com/zulandar/punchlist/internal/db"
	"github.com/zulandar/punchlist/internal/filestore"
	"github.com/zulandar/punchlist/internal/identity"
	"github.com/zulandar/punchlist/internal/logger"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/tracker"
	"gorm.io/gorm"
)

const defaultConfigPath = "punchlist.yaml"

// session is what a command needs to act on behalf of a user.
type session struct {
	cfg     *config.Config
	db      *gorm.DB
	log     *logger.Logger
	tracker *tracker.Tracker
	actor   access.Actor
}

func (s *session) Close() {
	s.log.Sync()
	db.Close(s.db)
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to Punchlist config file")
}

func addAsFlag(cmd *cobra.Command, email *string) {
	cmd.Flags().StringVar(email, "as", "", "email of the user to act as (required)")
	cmd.MarkFlagRequired("as")
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// newTracker wires the tracker to the configured file store.
func newTracker(cfg *config.Config, gormDB *gorm.DB, log *logger.Logger) (*tracker.Tracker, error) {
	disk, err := filestore.NewDisk(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	return tracker.New(tracker.Options{
		DB:          gormDB,
		Files:       disk,
		Log:         log,
		FileTimeout: cfg.Timeouts.FileStorage,
	}), nil
}

// openSession loads config, connects, and resolves email to an actor.
func openSession(ctx context.Context, configPath, email string) (*session, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	tr, err := newTracker(cfg, gormDB, log)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, db: gormDB, log: log, tracker: tr}

	u, err := userByEmail(gormDB, email)
	if err != nil {
		s.Close()
		return nil, err
	}
	v := identity.NewVerifier(gormDB, identity.Options{Secret: cfg.Auth.JWTSecret, Timeout: cfg.Timeouts.Identity})
	if s.actor, err = v.Lookup(ctx, u.ID); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func userByEmail(gormDB *gorm.DB, email string) (*models.User, error) {
	var u models.User
	if err := gormDB.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no user with email %q", email)
		}
		return nil, fmt.Errorf("look up %q: %w", email, err)
	}
	return &u, nil
}
