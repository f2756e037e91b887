// Command admin runs maintenance tasks against the tracker database:
// schema migrations, student profile backfill and account creation.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/repository"
	"github.com/noah-isme/edu-project-tracker/internal/service"
	"github.com/noah-isme/edu-project-tracker/migrations"
	"github.com/noah-isme/edu-project-tracker/pkg/config"
	"github.com/noah-isme/edu-project-tracker/pkg/database"
	"github.com/noah-isme/edu-project-tracker/pkg/logger"
)

func main() {
	root := newRootCmd(loadDeps, os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDeps connects to Postgres and builds the services the commands drive.
func loadDeps(ctx context.Context) (*deps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	accounts := repository.NewAccountRepository(db)
	students := repository.NewStudentRepository(db)
	provisioning := service.NewProvisioningService(db, students, accounts, nil, logr)
	auth := service.NewAuthService(db, accounts, provisioning, students, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	cleanup := func() {
		_ = db.Close()
		_ = logr.Sync()
	}
	return &deps{
		migrate: func(ctx context.Context, command string, args ...string) error {
			return migrations.Run(ctx, db.DB, command, args...)
		},
		profiles: provisioning,
		accounts: auth,
		logger:   logr.With(zap.String("component", "admin")),
	}, cleanup, nil
}
