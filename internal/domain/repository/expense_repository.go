package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

type ExpenseRepository interface {
	// Create stores the request together with its ordered attachments.
	Create(ctx context.Context, req *model.ExpenseRequest) error
	// FindByID resolves either the internal id or the shareable request id and
	// populates the requester's display fields.
	FindByID(ctx context.Context, id string) (*model.ExpenseRequest, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]model.ExpenseRequest, error)
	// List returns every request matching filter with the requester populated.
	List(ctx context.Context, filter model.ExpenseFilter) ([]model.ExpenseRequest, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, at time.Time) error
}

type sqlExpenseRepository struct {
	db *sql.DB
}

func NewSQLExpenseRepository(db *sql.DB) ExpenseRepository {
	return &sqlExpenseRepository{db: db}
}

const expenseSelect = `
        SELECT e.id, e.request_id, e.employee_id, e.amount, e.currency, e.reason, e.status,
               e.created_at, e.updated_at, a.full_name, a.email
        FROM expense_requests e
        LEFT JOIN accounts a ON e.employee_id = a.id`

func (r *sqlExpenseRepository) Create(ctx context.Context, req *model.ExpenseRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("expenseRepository.Create", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO expense_requests (id, request_id, employee_id, amount, currency, reason, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, query,
		req.ID, req.RequestID, req.EmployeeID, req.Amount, string(req.Currency), req.Reason,
		string(req.Status), req.CreatedAt, req.UpdatedAt,
	); err != nil {
		return storeError("expenseRepository.Create", err)
	}

	for i, att := range req.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_attachments (request_id, position, path, original_name, size_bytes) VALUES ($1, $2, $3, $4, $5)`,
			req.ID, i, att.Path, att.OriginalName, att.SizeBytes,
		); err != nil {
			return storeError("expenseRepository.Create attachments", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("expenseRepository.Create commit", err)
	}
	return nil
}

func (r *sqlExpenseRepository) FindByID(ctx context.Context, id string) (*model.ExpenseRequest, error) {
	reqs, err := r.query(ctx, "expenseRepository.FindByID", `e.id = $1 OR e.request_id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("expense request %s: %w", id, common.ErrNotFound)
	}
	return &reqs[0], nil
}

func (r *sqlExpenseRepository) ListByEmployee(ctx context.Context, employeeID string) ([]model.ExpenseRequest, error) {
	reqs, err := r.query(ctx, "expenseRepository.ListByEmployee", `e.employee_id = $1`, employeeID)
	if err != nil {
		return nil, err
	}
	// Owners see their own records; the requester projection is only for reviewers.
	for i := range reqs {
		reqs[i].Employee = nil
	}
	return reqs, nil
}

func (r *sqlExpenseRepository) List(ctx context.Context, filter model.ExpenseFilter) ([]model.ExpenseRequest, error) {
	if filter.Status != "" {
		return r.query(ctx, "expenseRepository.List", `e.status = $1`, string(filter.Status))
	}
	return r.query(ctx, "expenseRepository.List", "")
}

func (r *sqlExpenseRepository) UpdateStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_requests SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at, id)
	if err != nil {
		return storeError("expenseRepository.UpdateStatus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("expenseRepository.UpdateStatus", err)
	}
	if n == 0 {
		return fmt.Errorf("expense request %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// query returns the requests matching where (empty for all), newest first,
// with their attachments.
func (r *sqlExpenseRepository) query(ctx context.Context, op, where string, args ...any) ([]model.ExpenseRequest, error) {
	query := expenseSelect
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var reqs []model.ExpenseRequest
	for rows.Next() {
		var (
			e                model.ExpenseRequest
			currency, status string
			fullName, email  sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.EmployeeID, &e.Amount, &currency, &e.Reason, &status,
			&e.CreatedAt, &e.UpdatedAt, &fullName, &email,
		); err != nil {
			return nil, storeError(op, err)
		}
		e.Currency = model.Currency(currency)
		e.Status = model.Status(status)
		if fullName.Valid || email.Valid {
			e.Employee = &model.AccountSummary{ID: e.EmployeeID, FullName: fullName.String, Email: email.String}
		}
		reqs = append(reqs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	// Release the connection before the attachment query; SQLite runs on one.
	rows.Close()

	if err := r.attachAttachments(ctx, reqs, where, args); err != nil {
		return nil, err
	}
	return reqs, nil
}

// attachAttachments loads the attachments of the requests selected by where
// in one round trip, in submission order. The filter is repeated as a
// subquery so the statement has no per-request bind variables.
func (r *sqlExpenseRepository) attachAttachments(ctx context.Context, reqs []model.ExpenseRequest, where string, args []any) error {
	if len(reqs) == 0 {
		return nil
	}
	index := make(map[string]int, len(reqs))
	for i := range reqs {
		index[reqs[i].ID] = i
		reqs[i].Attachments = []model.AttachmentRef{}
	}

	query := `SELECT t.request_id, t.path, t.original_name, t.size_bytes FROM expense_attachments t`
	if where != "" {
		query += ` WHERE t.request_id IN (SELECT e.id FROM expense_requests e WHERE ` + where + `)`
	}
	query += ` ORDER BY t.request_id, t.position`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storeError("expenseRepository.attachments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var requestID string
		var att model.AttachmentRef
		if err := rows.Scan(&requestID, &att.Path, &att.OriginalName, &att.SizeBytes); err != nil {
			return storeError("expenseRepository.attachments", err)
		}
		// Requests created after the first query are not part of the result.
		i, ok := index[requestID]
		if !ok {
			continue
		}
		reqs[i].Attachments = append(reqs[i].Attachments, att)
	}
	if err := rows.Err(); err != nil {
		return storeError("expenseRepository.attachments", err)
	}
	return nil
}
