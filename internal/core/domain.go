package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

const (
	PaymentCash       PaymentType = "cash"
	PaymentCreditCard PaymentType = "credit_card"
	PaymentDebitCard  PaymentType = "debit_card"
	PaymentBank       PaymentType = "bank"
)

const (
	CardCredit CardType = "credit_card"
	CardDebit  CardType = "debit_card"
)

type (
	TransactionType string

	PaymentType string

	CardType string

	// Transaction mirrors the backend transaction resource. Pending marks a
	// locally-synthesized record that has not been confirmed by the server.
	Transaction struct {
		ID           string          `json:"id"`
		UserID       string          `json:"user_id"`
		CategoryID   *string         `json:"category_id"`
		Type         TransactionType `json:"type"`
		Amount       int64           `json:"amount"`
		Description  string          `json:"description"`
		TransactedAt time.Time       `json:"transacted_at"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
		IsFavorite   bool            `json:"is_favorite"`
		PaymentType  *PaymentType    `json:"payment_type"`
		UserCardID   *string         `json:"user_card_id"`
		Pending      bool            `json:"_is_pending,omitempty"`
	}

	Category struct {
		ID        string          `json:"id"`
		UserID    string          `json:"user_id"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Color     *string         `json:"color"`
		IsDefault bool            `json:"is_default"`
		CreatedAt time.Time       `json:"created_at"`
	}

	UserCard struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		Type          CardType  `json:"type"`
		Name          string    `json:"name"`
		MonthlyTarget *int64    `json:"monthly_target"`
		CreatedAt     time.Time `json:"created_at"`
	}
)

// Write payloads sent to the backend. Pointer fields in the update payloads
// distinguish "unchanged" from an explicit new value.
type (
	TransactionCreate struct {
		Type         TransactionType `json:"type"`
		Amount       int64           `json:"amount"`
		Description  string          `json:"description,omitempty"`
		CategoryID   *string         `json:"category_id,omitempty"`
		TransactedAt time.Time       `json:"transacted_at"`
		PaymentType  *PaymentType    `json:"payment_type,omitempty"`
		UserCardID   *string         `json:"user_card_id,omitempty"`
	}

	TransactionUpdate struct {
		Type         *TransactionType `json:"type,omitempty"`
		Amount       *int64           `json:"amount,omitempty"`
		Description  *string          `json:"description,omitempty"`
		CategoryID   *string          `json:"category_id,omitempty"`
		TransactedAt *time.Time       `json:"transacted_at,omitempty"`
	}

	CategoryCreate struct {
		Name  string          `json:"name"`
		Type  TransactionType `json:"type"`
		Color *string         `json:"color,omitempty"`
	}

	CategoryUpdate struct {
		Name  *string          `json:"name,omitempty"`
		Type  *TransactionType `json:"type,omitempty"`
		Color *string          `json:"color,omitempty"`
	}

	CardCreate struct {
		Type          CardType `json:"type"`
		Name          string   `json:"name"`
		MonthlyTarget *int64   `json:"monthly_target,omitempty"`
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidCardType  = errors.New("invalid card type")
	ErrZeroTransactedAt = errors.New("transacted_at cannot be zero")
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	default:
		return false
	}
}

func (ct CardType) Valid() bool {
	return ct == CardCredit || ct == CardDebit
}

func (tc TransactionCreate) Validate() error {
	if !tc.Type.Valid() {
		return ErrInvalidType
	}
	if tc.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(tc.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if tc.TransactedAt.IsZero() {
		return ErrZeroTransactedAt
	}
	return nil
}

func (tu TransactionUpdate) Validate() error {
	if tu.Type != nil && !tu.Type.Valid() {
		return ErrInvalidType
	}
	if tu.Amount != nil && *tu.Amount <= 0 {
		return ErrInvalidAmount
	}
	if tu.Description != nil && len(*tu.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if tu.TransactedAt != nil && tu.TransactedAt.IsZero() {
		return ErrZeroTransactedAt
	}
	return nil
}

// IsEmpty reports whether the update carries no changed fields at all.
func (tu TransactionUpdate) IsEmpty() bool {
	return tu.Type == nil && tu.Amount == nil && tu.Description == nil &&
		tu.CategoryID == nil && tu.TransactedAt == nil
}

func (cc CategoryCreate) Validate() error {
	if strings.TrimSpace(cc.Name) == "" {
		return ErrEmptyName
	}
	if !cc.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (cc CardCreate) Validate() error {
	if strings.TrimSpace(cc.Name) == "" {
		return ErrEmptyName
	}
	if !cc.Type.Valid() {
		return ErrInvalidCardType
	}
	if cc.MonthlyTarget != nil && *cc.MonthlyTarget < 0 {
		return ErrInvalidAmount
	}
	return nil
}
