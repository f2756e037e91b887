package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/noah-isme/edu-project-tracker/internal/repository"
	"github.com/noah-isme/edu-project-tracker/internal/service"
)

func init() {
	goose.AddMigrationNoTxContext(upBackfillStudentProfiles, downBackfillStudentProfiles)
}

func provisioner(db *sql.DB) *service.ProvisioningService {
	xdb := sqlx.NewDb(db, "postgres")
	return service.NewProvisioningService(xdb, repository.NewStudentRepository(xdb), repository.NewAccountRepository(xdb), nil, nil)
}

// upBackfillStudentProfiles gives every pre-existing account its profile.
func upBackfillStudentProfiles(ctx context.Context, db *sql.DB) error {
	if _, err := provisioner(db).Backfill(ctx); err != nil {
		return fmt.Errorf("backfill student profiles: %w", err)
	}
	return nil
}

// downBackfillStudentProfiles removes every student profile, including those
// created after the backfill.
func downBackfillStudentProfiles(ctx context.Context, db *sql.DB) error {
	if _, err := provisioner(db).Rollback(ctx); err != nil {
		return fmt.Errorf("remove student profiles: %w", err)
	}
	return nil
}
