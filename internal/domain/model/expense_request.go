package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyNIS Currency = "NIS"
	CurrencyUSD Currency = "USD"
)

// ParseCurrency accepts the two supported units plus the aliases the web form
// historically sent ("$" and "ILS").
func ParseCurrency(s string) (Currency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NIS", "ILS", "₪":
		return CurrencyNIS, true
	case "USD", "$":
		return CurrencyUSD, true
	}
	return "", false
}

// AttachmentRef locates a stored upload relative to the upload root's public
// prefix, e.g. "uploads/1718000000000000000-1-taxi-receipt.pdf".
type AttachmentRef struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
}

type ExpenseRequest struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id"` // Shareable identifier
	EmployeeID  string          `json:"employee_id"`
	Employee    *AccountSummary `json:"employee,omitempty"` // Populated on listings for reviewers
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Reason      string          `json:"reason"`
	Attachments []AttachmentRef `json:"attachments"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ExpenseFilter narrows ListAll. A zero value matches everything.
type ExpenseFilter struct {
	Status Status
}
