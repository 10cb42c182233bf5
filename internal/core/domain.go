package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// ExpenseID is the server-assigned identifier of an expense. It is opaque:
	// the remote collection may send it as a number or a string.
	ExpenseID string

	Expense struct {
		ID       ExpenseID       `json:"id"`
		Title    string          `json:"title"`
		Amount   decimal.Decimal `json:"amount"`
		Category string          `json:"category"`
	}

	// Draft holds the form contents. An empty EditingID means "create new".
	Draft struct {
		EditingID ExpenseID
		Title     string
		Amount    string
		Category  string
	}
)

var (
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidAmount = errors.New("invalid amount")
)

// UnmarshalJSON accepts both `12` and `"12"`.
func (id *ExpenseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExpenseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ExpenseID(n.String())
	return nil
}

func (id ExpenseID) String() string {
	return string(id)
}

// Editing reports whether the draft targets an existing expense.
func (d Draft) Editing() bool {
	return d.EditingID != ""
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	if _, err := ParseAmount(d.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Expense converts a valid draft into the record sent to the remote collection.
func (d Draft) Expense() (Expense, error) {
	if err := d.Validate(); err != nil {
		return Expense{}, err
	}
	amount, _ := ParseAmount(d.Amount)
	return Expense{
		ID:       d.EditingID,
		Title:    d.Title,
		Amount:   amount,
		Category: d.Category,
	}, nil
}

// DraftFrom loads an existing expense into a draft for editing.
func DraftFrom(e Expense) Draft {
	return Draft{
		EditingID: e.ID,
		Title:     e.Title,
		Amount:    PlainAmount(e.Amount),
		Category:  e.Category,
	}
}

// ParseAmount parses a decimal amount. The sign is not checked.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
