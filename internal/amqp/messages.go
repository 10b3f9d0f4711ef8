package amqp

import (
	"encoding/json"
	"time"

	"agentledger/internal/core"

	"github.com/google/uuid"
)

// ExpenseRecordedMessage announces a successfully persisted expense.
// Consumers fetch anything beyond these fields from the ledger itself.
type ExpenseRecordedMessage struct {
	EventID     string    `json:"eventId"`
	ExpenseID   string    `json:"expenseId"`
	AgentID     string    `json:"agentId"`
	AmountMinor int64     `json:"amountMinor"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurredAt"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseRecordedMessage builds the event for a stored expense.
func NewExpenseRecordedMessage(e core.Expense, currency string) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		EventID:     uuid.NewString(),
		ExpenseID:   e.ID,
		AgentID:     e.AgentID,
		AmountMinor: e.AmountMinor,
		Currency:    currency,
		OccurredAt:  e.OccurredAt,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON creates a message from JSON bytes.
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
