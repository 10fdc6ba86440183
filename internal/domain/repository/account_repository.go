package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}

type sqlAccountRepository struct {
	db *sql.DB
}

func NewSQLAccountRepository(db *sql.DB) AccountRepository {
	return &sqlAccountRepository{db: db}
}

const accountColumns = `id, email, full_name, national_id, password_hash, role, is_active, created_at, updated_at`

func (r *sqlAccountRepository) Create(ctx context.Context, a *model.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, model.NormalizeEmail(a.Email), a.FullName, a.NationalID, a.PasswordHash,
		string(a.Role), a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account with this email already exists: %w", common.ErrConflict)
		}
		return storeError("accountRepository.Create", err)
	}
	return nil
}

func (r *sqlAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanOne(ctx, "accountRepository.FindByEmail", query, model.NormalizeEmail(email))
}

func (r *sqlAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(ctx, "accountRepository.FindByID", query, id)
}

func (r *sqlAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	query := `UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, passwordHash, at, id)
	if err != nil {
		return storeError("accountRepository.UpdatePassword", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *sqlAccountRepository) scanOne(ctx context.Context, op, query string, arg any) (*model.Account, error) {
	a := &model.Account{}
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.FullName, &a.NationalID, &a.PasswordHash, &role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, storeError(op, err)
	}
	a.Role = model.Role(role)
	return a, nil
}
