package ledger

import (
	"sort"

	"agentledger/internal/core"
)

// Summarize computes the shared summary shape over a matched expense set.
// Sums use integer arithmetic only; minor units are the smallest
// representable increment and float accumulation would drift.
//
// Groups sort descending by total; ties break ascending by agent id or
// category so identical inputs always yield identical output.
func Summarize(expenses []core.Expense) Summary {
	s := Summary{
		ExpenseCount: len(expenses),
		ByAgent:      []AgentTotal{},
		ByCategory:   []CategoryTotal{},
	}

	agentTotals := make(map[string]*AgentTotal)
	categoryTotals := make(map[string]int64)
	for _, e := range expenses {
		s.TotalExpenseMinor += e.AmountMinor

		if at, ok := agentTotals[e.AgentID]; ok {
			at.TotalExpenseMinor += e.AmountMinor
		} else {
			// Display name comes from the first encountered row.
			agentTotals[e.AgentID] = &AgentTotal{
				AgentID:           e.AgentID,
				AgentName:         e.AgentName,
				TotalExpenseMinor: e.AmountMinor,
			}
		}
		categoryTotals[e.Category] += e.AmountMinor
	}

	for _, at := range agentTotals {
		s.ByAgent = append(s.ByAgent, *at)
	}
	sort.Slice(s.ByAgent, func(i, j int) bool {
		a, b := s.ByAgent[i], s.ByAgent[j]
		if a.TotalExpenseMinor != b.TotalExpenseMinor {
			return a.TotalExpenseMinor > b.TotalExpenseMinor
		}
		return a.AgentID < b.AgentID
	})

	for category, total := range categoryTotals {
		s.ByCategory = append(s.ByCategory, CategoryTotal{Category: category, TotalExpenseMinor: total})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if a.TotalExpenseMinor != b.TotalExpenseMinor {
			return a.TotalExpenseMinor > b.TotalExpenseMinor
		}
		return a.Category < b.Category
	})

	return s
}

// SumBalances computes the grand totals across a balance set.
func SumBalances(rows []BalanceRow) BalanceTotals {
	var t BalanceTotals
	for _, r := range rows {
		t.StartingMinor += r.StartingMinor
		t.SpentMinor += r.SpentMinor
		t.RemainingMinor += r.RemainingMinor
	}
	return t
}
