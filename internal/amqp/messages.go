package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

// ExpenseChangedMessage announces a successful create, update or delete.
// Delete messages carry whatever was known about the expense when it was removed.
type ExpenseChangedMessage struct {
	Op        string          `json:"op"`
	ID        string          `json:"id"`
	Title     string          `json:"title,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category,omitempty"`
	User      string          `json:"user,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewExpenseChangedMessage(op string, e core.Expense, user string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		Op:        op,
		ID:        string(e.ID),
		Title:     e.Title,
		Amount:    e.Amount,
		Category:  e.Category,
		User:      user,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
