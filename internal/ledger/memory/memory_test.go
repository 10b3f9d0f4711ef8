package memory

import (
	"context"
	"reflect"
	"testing"
	"time"

	"agentledger/internal/core"
	"agentledger/internal/ledger"
)

var fixedNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func fixedStore() *Store {
	s := New(SeedAgents(), []core.Expense{
		{ID: "exp-001", AgentID: "agent-atlas", AgentName: "Atlas", Category: "compute", Vendor: "Lambda Labs", Description: "GPU hours", AmountMinor: 42150, OccurredAt: time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)},
		{ID: "exp-002", AgentID: "agent-nova", AgentName: "Nova", Category: "data", Vendor: "Scale AI", Description: "Labeling", AmountMinor: 18900, OccurredAt: time.Date(2026, 8, 10, 16, 0, 0, 0, time.UTC)},
		{ID: "exp-003", AgentID: "agent-atlas", AgentName: "Atlas", Category: "api", Vendor: "OpenWeather", Description: "Overage", AmountMinor: 3150, OccurredAt: time.Date(2026, 8, 20, 23, 59, 59, 999000000, time.UTC)},
	})
	s.nowFn = func() time.Time { return fixedNow }
	return s
}

func usdFilters(agentID, from, to string) ledger.Filters {
	return ledger.Filters{AgentID: agentID, From: from, To: to, Currency: "USD"}
}

func TestListExpensesWindowInclusive(t *testing.T) {
	s := fixedStore()

	report, err := s.ListExpenses(context.Background(), usdFilters("", "2026-08-05", "2026-08-20"))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(report.Expenses) != 3 {
		t.Fatalf("matched %d expenses, want 3 (both boundary days inclusive)", len(report.Expenses))
	}

	report, err = s.ListExpenses(context.Background(), usdFilters("", "2026-08-06", "2026-08-20"))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	for _, e := range report.Expenses {
		if e.ID == "exp-001" {
			t.Error("exp-001 occurred before the window start and must be excluded")
		}
	}
}

func TestListExpensesNewestFirst(t *testing.T) {
	s := fixedStore()
	report, err := s.ListExpenses(context.Background(), usdFilters("", "2026-08-01", "2026-08-31"))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	for i := 1; i < len(report.Expenses); i++ {
		if report.Expenses[i].OccurredAt.After(report.Expenses[i-1].OccurredAt) {
			t.Fatalf("expenses not sorted newest first: %v", report.Expenses)
		}
	}
}

func TestListExpensesAgentScope(t *testing.T) {
	s := fixedStore()
	report, err := s.ListExpenses(context.Background(), usdFilters("agent-atlas", "2026-08-01", "2026-08-31"))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(report.Expenses) != 2 {
		t.Fatalf("matched %d, want 2", len(report.Expenses))
	}
	for _, e := range report.Expenses {
		if e.AgentID != "agent-atlas" {
			t.Errorf("leaked expense for %s", e.AgentID)
		}
	}
}

func TestListExpensesSummaryConsistency(t *testing.T) {
	s := fixedStore()
	report, err := s.ListExpenses(context.Background(), usdFilters("", "2026-08-01", "2026-08-31"))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	var sum int64
	for _, e := range report.Expenses {
		sum += e.AmountMinor
	}
	if report.Summary.TotalExpenseMinor != sum {
		t.Errorf("summary total %d != row sum %d", report.Summary.TotalExpenseMinor, sum)
	}
	if report.Summary.ExpenseCount != len(report.Expenses) {
		t.Errorf("summary count %d != rows %d", report.Summary.ExpenseCount, len(report.Expenses))
	}
}

func TestListExpensesRejectsForeignCurrency(t *testing.T) {
	s := fixedStore()
	f := usdFilters("", "2026-08-01", "2026-08-31")
	f.Currency = "EUR"
	_, err := s.ListExpenses(context.Background(), f)
	if !core.IsKind(err, core.KindUnsupportedCurrency) {
		t.Errorf("err = %v, want UnsupportedCurrency", err)
	}
}

func TestComputeBalancesLaw(t *testing.T) {
	s := fixedStore()
	report, err := s.ComputeBalances(context.Background(), usdFilters("", "2026-08-01", "2026-08-31"))
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	if len(report.Balances) != 3 {
		t.Fatalf("balances = %d rows, want one per agent", len(report.Balances))
	}
	for _, b := range report.Balances {
		if b.RemainingMinor != b.StartingMinor-b.SpentMinor {
			t.Errorf("%s: remaining %d != starting %d - spent %d", b.AgentID, b.RemainingMinor, b.StartingMinor, b.SpentMinor)
		}
	}
	if report.Totals.RemainingMinor != report.Totals.StartingMinor-report.Totals.SpentMinor {
		t.Errorf("totals law violated: %+v", report.Totals)
	}
	if !report.AsOf.Equal(fixedNow) {
		t.Errorf("asOf = %v, want injected now", report.AsOf)
	}
}

func TestComputeBalancesSingleAgentScope(t *testing.T) {
	s := fixedStore()
	report, err := s.ComputeBalances(context.Background(), usdFilters("agent-atlas", "2026-08-01", "2026-08-31"))
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	if len(report.Balances) != 1 || report.Balances[0].AgentID != "agent-atlas" {
		t.Fatalf("balances = %+v, want only agent-atlas", report.Balances)
	}
	if report.Balances[0].SpentMinor != 42150+3150 {
		t.Errorf("spent = %d", report.Balances[0].SpentMinor)
	}
}

func TestRecordExpenseAppends(t *testing.T) {
	s := fixedStore()
	result, err := s.RecordExpense(context.Background(), ledger.RecordInput{
		AgentID:     "agent-atlas",
		Category:    "compute",
		Vendor:      "Lambda Labs",
		Description: "Eval cluster",
		AmountMinor: 18400,
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	if result.Expense.ID != "exp-004" {
		t.Errorf("id = %q, want next sequential exp-004", result.Expense.ID)
	}
	if result.Expense.AgentName != "Atlas" {
		t.Errorf("agentName = %q", result.Expense.AgentName)
	}
	if !result.Expense.OccurredAt.Equal(fixedNow) {
		t.Errorf("occurredAt = %v, want default now", result.Expense.OccurredAt)
	}
	if result.Currency != "USD" {
		t.Errorf("currency = %q", result.Currency)
	}
}

func TestRecordExpenseUnknownAgent(t *testing.T) {
	s := fixedStore()
	_, err := s.RecordExpense(context.Background(), ledger.RecordInput{
		AgentID:     "agent-ghost",
		Category:    "misc",
		Vendor:      "v",
		Description: "d",
		AmountMinor: 100,
	})
	if !core.IsKind(err, core.KindInvalidAgent) {
		t.Errorf("err = %v, want InvalidAgent (no auto-creation in memory backend)", err)
	}
}

func TestRecordExpenseInvalidAmountNeverPersists(t *testing.T) {
	s := fixedStore()
	before := len(s.items)
	for _, amount := range []int64{0, -1, -18400} {
		_, err := s.RecordExpense(context.Background(), ledger.RecordInput{
			AgentID: "agent-atlas", Category: "c", Vendor: "v", Description: "d", AmountMinor: amount,
		})
		if !core.IsKind(err, core.KindInvalidAmount) {
			t.Errorf("amount %d: err = %v, want InvalidAmount", amount, err)
		}
	}
	if len(s.items) != before {
		t.Errorf("rows persisted on invalid amount: %d -> %d", before, len(s.items))
	}
}

func TestAtlasScenario(t *testing.T) {
	s := fixedStore()
	if _, err := s.RecordExpense(context.Background(), ledger.RecordInput{
		AgentID: "agent-atlas", Category: "compute", Vendor: "Lambda Labs",
		Description: "Eval cluster", AmountMinor: 18400,
	}); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	report, err := s.ComputeBalances(context.Background(), usdFilters("agent-atlas", "2026-08-01", "2026-09-01"))
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	b := report.Balances[0]
	if b.StartingMinor != 250000 {
		t.Errorf("starting = %d, want seeded 250000", b.StartingMinor)
	}
	if b.SpentMinor < 18400 {
		t.Errorf("spent = %d, want >= 18400", b.SpentMinor)
	}
	if b.RemainingMinor != b.StartingMinor-b.SpentMinor {
		t.Errorf("balance law violated: %+v", b)
	}
}

func TestIdenticalQueriesYieldIdenticalResults(t *testing.T) {
	s := fixedStore()
	f := usdFilters("", "2026-08-01", "2026-08-31")

	a, err := s.ListExpenses(context.Background(), f)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	b, err := s.ListExpenses(context.Background(), f)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("repeated list over unchanged data diverged")
	}

	ba, err := s.ComputeBalances(context.Background(), f)
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	bb, err := s.ComputeBalances(context.Background(), f)
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	if !reflect.DeepEqual(ba.Balances, bb.Balances) || ba.Totals != bb.Totals {
		t.Error("repeated balances over unchanged data diverged")
	}
}

func TestNewSeededRoster(t *testing.T) {
	s := NewSeeded()
	report, err := s.ComputeBalances(context.Background(), usdFilters("", "2026-01-01", "2099-01-01"))
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	if len(report.Balances) != 3 {
		t.Fatalf("seeded roster = %d agents, want 3", len(report.Balances))
	}

	// Two stores must be independent.
	other := NewSeeded()
	if _, err := s.RecordExpense(context.Background(), ledger.RecordInput{
		AgentID: "agent-nova", Category: "data", Vendor: "v", Description: "d", AmountMinor: 5,
	}); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	if len(other.items) == len(s.items) {
		t.Error("stores share state; each instance must own its expense list")
	}
}
