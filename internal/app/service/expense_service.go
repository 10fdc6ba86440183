package service

import (
	"context"
	"strings"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reimburse/internal/app/attachment"
	"reimburse/internal/common"
	"reimburse/internal/domain/model"
	"reimburse/internal/domain/policy"
	"reimburse/internal/domain/repository"
)

const defaultNotifyTimeout = 10 * time.Second

// Amounts are stored as NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

// AttachmentIntake is the part of attachment.Intake the engine needs.
type AttachmentIntake interface {
	AcceptAll(ctx context.Context, uploads []attachment.Upload) ([]model.AttachmentRef, error)
	Discard(refs []model.AttachmentRef)
}

type RequestNotifier interface {
	NotifyRequestCreated(ctx context.Context, requestID string) error
}

// ExpenseService runs the request lifecycle: creation, listing and status
// changes, each gated by the access policy.
type ExpenseService struct {
	expenseRepo   repository.ExpenseRepository
	intake        AttachmentIntake
	notifier      RequestNotifier
	notifyTimeout time.Duration
	now           func() time.Time
}

func NewExpenseService(expenseRepo repository.ExpenseRepository, intake AttachmentIntake, notifier RequestNotifier) *ExpenseService {
	return &ExpenseService{
		expenseRepo:   expenseRepo,
		intake:        intake,
		notifier:      notifier,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
}

type CreateExpenseRequest struct {
	Amount   string
	Currency string
	Reason   string
	Files    []attachment.Upload
}

type createFields struct {
	amount   decimal.Decimal
	currency model.Currency
	reason   string
}

func (r CreateExpenseRequest) validate() (createFields, error) {
	var f createFields
	raw := strings.TrimSpace(r.Amount)
	if raw == "" {
		return f, common.Errorf("amount is required: %w", common.ErrInvalidInput)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return f, common.Errorf("amount %q is not a number: %w", raw, common.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return f, common.Errorf("amount must be greater than zero: %w", common.ErrInvalidInput)
	}
	if !amount.Equal(amount.Round(2)) {
		return f, common.Errorf("amount may have at most two decimal places: %w", common.ErrInvalidInput)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return f, common.Errorf("amount is too large: %w", common.ErrInvalidInput)
	}
	currency, ok := model.ParseCurrency(r.Currency)
	if !ok {
		return f, common.Errorf("unsupported currency %q: %w", r.Currency, common.ErrInvalidInput)
	}
	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		return f, common.Errorf("reason is required: %w", common.ErrInvalidInput)
	}
	if len(r.Files) == 0 {
		return f, common.Errorf("at least one attachment is required: %w", common.ErrInvalidInput)
	}
	return createFields{amount: amount, currency: currency, reason: reason}, nil
}

// CreateRequest validates the fields, stores the attachments and persists a
// pending request owned by p. Reviewers are notified in the background.
func (s *ExpenseService) CreateRequest(ctx context.Context, p model.Principal, req CreateExpenseRequest) (*model.ExpenseRequest, error) {
	if err := policy.Authorize(p.Role, policy.OpCreateOwn); err != nil {
		return nil, err
	}
	fields, err := req.validate()
	if err != nil {
		return nil, err
	}

	refs, err := s.intake.AcceptAll(ctx, req.Files)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expense := &model.ExpenseRequest{
		ID:          uuid.NewString(),
		RequestID:   uuid.NewString(),
		EmployeeID:  p.ID,
		Amount:      fields.amount,
		Currency:    fields.currency,
		Reason:      fields.reason,
		Attachments: refs,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		s.intake.Discard(refs)
		return nil, common.Errorf("failed to create expense request: %w", err)
	}

	log.WithFields(log.Fields{
		"request_id":  expense.ID,
		"employee_id": p.ID,
		"attachments": len(refs),
	}).Info("Expense request created")

	s.notifyCreated(expense.ID)
	return expense, nil
}

// notifyCreated never blocks the caller and never fails it.
func (s *ExpenseService) notifyCreated(requestID string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyRequestCreated(ctx, requestID); err != nil {
			log.WithField("request_id", requestID).WithError(err).Error("Expense notification failed")
		}
	}()
}

func (s *ExpenseService) ListMine(ctx context.Context, p model.Principal) ([]model.ExpenseRequest, error) {
	if err := policy.Authorize(p.Role, policy.OpListOwn); err != nil {
		return nil, err
	}
	reqs, err := s.expenseRepo.ListByEmployee(ctx, p.ID)
	if err != nil {
		return nil, common.Errorf("failed to list expense requests: %w", err)
	}
	return nonNil(reqs), nil
}

// ListAll returns every request, optionally narrowed to one status.
func (s *ExpenseService) ListAll(ctx context.Context, p model.Principal, status string) ([]model.ExpenseRequest, error) {
	if err := policy.Authorize(p.Role, policy.OpListAll); err != nil {
		return nil, err
	}
	var filter model.ExpenseFilter
	if strings.TrimSpace(status) != "" {
		st, ok := model.ParseStatus(status)
		if !ok {
			return nil, common.Errorf("unknown status %q: %w", status, common.ErrInvalidInput)
		}
		filter.Status = st
	}
	reqs, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		return nil, common.Errorf("failed to list expense requests: %w", err)
	}
	return nonNil(reqs), nil
}

// GetRequest resolves id (internal or shareable) for its owner or a reviewer.
func (s *ExpenseService) GetRequest(ctx context.Context, p model.Principal, id string) (*model.ExpenseRequest, error) {
	expense, err := s.expenseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(p, expense.EmployeeID) {
		return nil, common.Errorf("request %s belongs to another account: %w", id, common.ErrForbidden)
	}
	return expense, nil
}

// ChangeStatus moves a request along the workflow. Concurrent changes are
// last-write-wins; each one is checked against the state read just before it.
func (s *ExpenseService) ChangeStatus(ctx context.Context, p model.Principal, id, newStatus string) (*model.ExpenseRequest, error) {
	if err := policy.Authorize(p.Role, policy.OpChangeStatus); err != nil {
		return nil, err
	}
	target, ok := model.ParseStatus(newStatus)
	if !ok {
		return nil, common.Errorf("unknown status %q: %w", newStatus, common.ErrInvalidInput)
	}

	expense, err := s.expenseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !expense.Status.CanTransitionTo(target) {
		return nil, common.Errorf("cannot move request from %s to %s: %w", expense.Status, target, common.ErrInvalidTransition)
	}

	now := s.now().UTC()
	if err := s.expenseRepo.UpdateStatus(ctx, expense.ID, target, now); err != nil {
		return nil, common.Errorf("failed to update request status: %w", err)
	}
	previous := expense.Status
	expense.Status = target
	expense.UpdatedAt = now

	fields := log.Fields{
		"request_id": expense.ID,
		"from":       previous,
		"to":         target,
		"actor":      p.ID,
	}
	log.WithFields(fields).Info("Expense request status changed")
	if target == model.StatusApproved {
		log.WithFields(log.Fields{
			"request_id": expense.ID,
			"amount":     expense.Amount.StringFixed(2),
			"currency":   expense.Currency,
		}).Info("Finance notification: expense request approved for payment")
	}
	return expense, nil
}

func nonNil(reqs []model.ExpenseRequest) []model.ExpenseRequest {
	if reqs == nil {
		return []model.ExpenseRequest{}
	}
	return reqs
}
