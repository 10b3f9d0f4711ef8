package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"agentledger/internal/amqp"
	"agentledger/internal/ledger"
)

// LedgerService wraps a ledger provider and publishes an event after every
// successful write. Reads pass through untouched. Publish failures are
// logged and never surfaced: the expense is already persisted.
type LedgerService struct {
	provider   ledger.Provider
	amqpClient *amqp.Client
}

func NewLedgerService(provider ledger.Provider, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		provider:   provider,
		amqpClient: amqpClient,
	}
}

// ListExpenses implements ledger.Provider.
func (s *LedgerService) ListExpenses(ctx context.Context, f ledger.Filters) (*ledger.ExpenseReport, error) {
	return s.provider.ListExpenses(ctx, f)
}

// ComputeBalances implements ledger.Provider.
func (s *LedgerService) ComputeBalances(ctx context.Context, f ledger.Filters) (*ledger.BalanceReport, error) {
	return s.provider.ComputeBalances(ctx, f)
}

// RecordExpense implements ledger.Provider, publishing an expense-recorded
// event once the underlying provider reports success.
func (s *LedgerService) RecordExpense(ctx context.Context, in ledger.RecordInput) (*ledger.RecordResult, error) {
	result, err := s.provider.RecordExpense(ctx, in)
	if err != nil {
		return nil, err
	}

	if s.amqpClient == nil {
		return result, nil
	}
	msg := amqp.NewExpenseRecordedMessage(result.Expense, result.Currency)
	if err := s.amqpClient.PublishExpenseRecorded(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense recorded event",
			"expense_id", result.Expense.ID, "error", err)
		// Don't fail the request - the expense is saved.
	}

	return result, nil
}

// Close closes the underlying provider (when closable) and the AMQP
// connection.
func (s *LedgerService) Close() error {
	var errs []error

	if closer, ok := s.provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("provider: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
