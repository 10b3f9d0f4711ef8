package ledger

import (
	"context"
	"time"

	"agentledger/internal/core"

	"golang.org/x/sync/errgroup"
)

// DashboardProps is the flattened prop bundle handed to the read-only
// visualization. Its shape is a stable contract; do not change it without
// a coordinated consumer update.
type DashboardProps struct {
	Operation    string         `json:"operation"`
	Backend      string         `json:"backend"`
	Filters      Filters        `json:"filters"`
	Expenses     []core.Expense `json:"expenses"`
	Summary      Summary        `json:"summary"`
	Balances     []BalanceRow   `json:"balances"`
	Totals       BalanceTotals  `json:"totals"`
	BalancesAsOf time.Time      `json:"balancesAsOf"`
}

// BuildDashboard fires the expense listing and balance computation
// concurrently over the same filter set and shapes the combined bundle.
// The two reads are independent; both must succeed before anything is
// returned.
func BuildDashboard(ctx context.Context, p Provider, backend string, f Filters) (*DashboardProps, error) {
	var (
		report   *ExpenseReport
		balances *BalanceReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = p.ListExpenses(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		balances, err = p.ComputeBalances(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DashboardProps{
		Operation:    "dashboard",
		Backend:      backend,
		Filters:      f,
		Expenses:     report.Expenses,
		Summary:      report.Summary,
		Balances:     balances.Balances,
		Totals:       balances.Totals,
		BalancesAsOf: balances.AsOf,
	}, nil
}
