package ledger

import (
	"context"
	"strings"
	"time"

	"agentledger/internal/core"
)

// Provider is the capability contract every ledger backend implements.
// The three operations behave identically across implementations: same
// filter semantics, same aggregation shapes, same error taxonomy.
type Provider interface {
	// ListExpenses returns expenses matching the filters, newest occurrence
	// first, plus the shared summary aggregation.
	ListExpenses(ctx context.Context, f Filters) (*ExpenseReport, error)

	// ComputeBalances returns one balance row per agent in scope, where
	// remaining = starting - spent over the filtered window.
	ComputeBalances(ctx context.Context, f Filters) (*BalanceReport, error)

	// RecordExpense validates and persists one new expense.
	RecordExpense(ctx context.Context, in RecordInput) (*RecordResult, error)
}

// FilterInput is the raw, untrusted query input before normalization.
type FilterInput struct {
	AgentID  string `json:"agentId,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Filters is the canonical, validated filter set. From and To are inclusive
// YYYY-MM-DD bounds; AgentID empty means unscoped.
type Filters struct {
	AgentID  string `json:"agentId,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Currency string `json:"currency"`
}

// Window returns the inclusive UTC instant bounds of the filter range:
// From at 00:00:00.000Z through To at 23:59:59.999Z.
func (f Filters) Window() (start, end time.Time) {
	start, _ = time.ParseInLocation(DateLayout, f.From, time.UTC)
	end, _ = time.ParseInLocation(DateLayout, f.To, time.UTC)
	end = end.Add(24*time.Hour - time.Millisecond)
	return start, end
}

// CheckCurrency enforces the USD-only constraint shared by all backends.
func (f Filters) CheckCurrency() error {
	if f.Currency != core.CurrencyUSD {
		return core.E(core.KindUnsupportedCurrency, "currency %q is not supported, only %s", f.Currency, core.CurrencyUSD)
	}
	return nil
}

// AgentTotal is the per-agent slice of a summary.
type AgentTotal struct {
	AgentID           string `json:"agentId"`
	AgentName         string `json:"agentName"`
	TotalExpenseMinor int64  `json:"totalExpenseMinor"`
}

// CategoryTotal is the per-category slice of a summary.
type CategoryTotal struct {
	Category          string `json:"category"`
	TotalExpenseMinor int64  `json:"totalExpenseMinor"`
}

// Summary aggregates a matched expense set. All sums are integer minor units.
type Summary struct {
	TotalExpenseMinor int64           `json:"totalExpenseMinor"`
	ExpenseCount      int             `json:"expenseCount"`
	ByAgent           []AgentTotal    `json:"byAgent"`
	ByCategory        []CategoryTotal `json:"byCategory"`
}

// ExpenseReport is the ListExpenses result.
type ExpenseReport struct {
	Currency string         `json:"currency"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Expenses []core.Expense `json:"expenses"`
	Summary  Summary        `json:"summary"`
}

// BalanceRow is one agent's balance over the filtered window.
type BalanceRow struct {
	AgentID        string `json:"agentId"`
	AgentName      string `json:"agentName"`
	StartingMinor  int64  `json:"startingMinor"`
	SpentMinor     int64  `json:"spentMinor"`
	RemainingMinor int64  `json:"remainingMinor"`
}

// BalanceTotals sums a balance set.
type BalanceTotals struct {
	StartingMinor  int64 `json:"startingMinor"`
	SpentMinor     int64 `json:"spentMinor"`
	RemainingMinor int64 `json:"remainingMinor"`
}

// BalanceReport is the ComputeBalances result. AsOf is the wall-clock time
// the computation ran.
type BalanceReport struct {
	Currency string        `json:"currency"`
	AsOf     time.Time     `json:"asOf"`
	Balances []BalanceRow  `json:"balances"`
	Totals   BalanceTotals `json:"totals"`
}

// RecordInput is the raw record-expense request.
type RecordInput struct {
	AgentID     string `json:"agentId"`
	Category    string `json:"category"`
	Vendor      string `json:"vendor"`
	Description string `json:"description"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency,omitempty"`
	OccurredAt  string `json:"occurredAt,omitempty"`
}

// RecordResult is the RecordExpense result: the canonical stored expense.
type RecordResult struct {
	Currency string       `json:"currency"`
	Expense  core.Expense `json:"expense"`
}

// RecordFields is a validated, normalized RecordInput ready for persistence.
type RecordFields struct {
	AgentID     string
	Category    string
	Vendor      string
	Description string
	AmountMinor int64
	Currency    string
	OccurredAt  time.Time
}

// NormalizeRecord validates a RecordInput and resolves defaults. Both
// providers run their writes through this so validation cannot drift
// between backends.
func NormalizeRecord(in RecordInput, now time.Time) (RecordFields, error) {
	out := RecordFields{
		AgentID:     strings.TrimSpace(in.AgentID),
		Category:    strings.TrimSpace(in.Category),
		Vendor:      strings.TrimSpace(in.Vendor),
		Description: strings.TrimSpace(in.Description),
		AmountMinor: in.AmountMinor,
	}
	if out.AgentID == "" {
		return RecordFields{}, core.E(core.KindInvalidAgent, "agentId is required")
	}
	if out.Category == "" {
		return RecordFields{}, core.E(core.KindInvalidCategory, "category is required")
	}
	if out.Vendor == "" {
		return RecordFields{}, core.E(core.KindInvalidVendor, "vendor is required")
	}
	if out.Description == "" {
		return RecordFields{}, core.E(core.KindInvalidDescription, "description is required")
	}
	if out.AmountMinor <= 0 {
		return RecordFields{}, core.E(core.KindInvalidAmount, "amountMinor must be a positive integer, got %d", in.AmountMinor)
	}

	out.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if out.Currency == "" {
		out.Currency = core.CurrencyUSD
	}
	if out.Currency != core.CurrencyUSD {
		return RecordFields{}, core.E(core.KindUnsupportedCurrency, "currency %q is not supported, only %s", out.Currency, core.CurrencyUSD)
	}

	occurred, err := parseOccurredAt(in.OccurredAt, now)
	if err != nil {
		return RecordFields{}, err
	}
	out.OccurredAt = occurred
	return out, nil
}

// parseOccurredAt accepts RFC 3339 timestamps or plain YYYY-MM-DD dates
// (midnight UTC), defaulting to now when absent.
func parseOccurredAt(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(DateLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, core.E(core.KindInvalidDate, "occurredAt %q is not a valid timestamp", raw)
}
