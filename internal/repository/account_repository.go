package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

const accountColumns = `id, username, email, password_hash, full_name, is_staff, active, last_login, created_at, updated_at`

// AccountRepository persists login identities.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	return orDefault(exec, r.db)
}

// Create inserts the account and fills its generated id and timestamps.
func (r *AccountRepository) Create(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	const query = `INSERT INTO accounts (username, email, password_hash, full_name, is_staff, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &account.ID, query,
		account.Username, account.Email, account.PasswordHash, account.FullName, account.IsStaff, account.Active, now, now); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.GetContext(ctx, &account, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByUsername matches case-insensitively.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.GetContext(ctx, &account, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(username) = LOWER($1)`, username); err != nil {
		return nil, err
	}
	return &account, nil
}

// ExistsByUsernameOrEmail checks both unique identity columns at once.
func (r *AccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT 1 FROM accounts WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, username, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check account identity: %w", err)
	}
	return true, nil
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ListWithoutStudent returns accounts that have no student profile yet, oldest first.
func (r *AccountRepository) ListWithoutStudent(ctx context.Context, exec sqlx.ExtContext) ([]models.Account, error) {
	const query = `SELECT a.id, a.username, a.email, a.password_hash, a.full_name, a.is_staff, a.active, a.last_login, a.created_at, a.updated_at
FROM accounts a LEFT JOIN students s ON s.account_id = a.id
WHERE s.id IS NULL ORDER BY a.id`
	var accounts []models.Account
	if err := sqlx.SelectContext(ctx, r.exec(exec), &accounts, query); err != nil {
		return nil, fmt.Errorf("list accounts without student: %w", err)
	}
	return accounts, nil
}
