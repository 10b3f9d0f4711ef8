// Package memory implements the reference ledger provider: a seeded,
// process-local store used as the default and test backend.
//
// Unlike the SQLite provider it does not auto-create unknown agents on
// write; recording against an id outside the roster fails with
// InvalidAgent. The asymmetry is deliberate and mirrored in the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"agentledger/internal/core"
	"agentledger/internal/ledger"
)

// Store holds the roster and expense list. Construct one per consumer;
// there is no package-level singleton, so tests get independent instances.
type Store struct {
	mu     sync.Mutex
	agents []core.Agent
	items  []core.Expense
	nowFn  func() time.Time
}

// New builds a store over an explicit roster and expense seed.
func New(agents []core.Agent, seed []core.Expense) *Store {
	s := &Store{nowFn: time.Now}
	s.agents = append(s.agents, agents...)
	s.items = append(s.items, seed...)
	return s
}

// NewSeeded builds a store with the default roster and a small
// deterministic expense history spread over the trailing weeks.
func NewSeeded() *Store {
	s := New(SeedAgents(), nil)
	now := s.nowFn().UTC()
	for i, t := range seedTemplates {
		s.items = append(s.items, core.Expense{
			ID:          fmt.Sprintf("exp-%03d", i+1),
			AgentID:     t.agentID,
			AgentName:   s.agentName(t.agentID),
			Category:    t.category,
			Vendor:      t.vendor,
			Description: t.description,
			AmountMinor: t.amountMinor,
			OccurredAt:  now.AddDate(0, 0, -t.daysAgo),
		})
	}
	return s
}

// SeedAgents returns the default roster, identical to the SQLite seed
// migration.
func SeedAgents() []core.Agent {
	return []core.Agent{
		{ID: "agent-atlas", Name: "Atlas", StartingMinor: 250000, Currency: core.CurrencyUSD},
		{ID: "agent-nova", Name: "Nova", StartingMinor: 180000, Currency: core.CurrencyUSD},
		{ID: "agent-orion", Name: "Orion", StartingMinor: 120000, Currency: core.CurrencyUSD},
	}
}

type seedTemplate struct {
	agentID     string
	category    string
	vendor      string
	description string
	amountMinor int64
	daysAgo     int
}

var seedTemplates = []seedTemplate{
	{"agent-atlas", "compute", "Lambda Labs", "GPU hours for batch inference", 42150, 26},
	{"agent-nova", "data", "Scale AI", "Labeling run, 2k samples", 18900, 21},
	{"agent-atlas", "compute", "Lambda Labs", "GPU hours, fine-tune sweep", 56700, 14},
	{"agent-orion", "tooling", "JetBrains", "License renewal", 9900, 12},
	{"agent-nova", "data", "Common Crawl Mirror", "Egress for corpus snapshot", 7420, 9},
	{"agent-atlas", "api", "OpenWeather", "Forecast API overage", 3150, 5},
	{"agent-orion", "tooling", "Tailscale", "Team plan, monthly", 4800, 2},
}

// ListExpenses implements ledger.Provider.
func (s *Store) ListExpenses(_ context.Context, f ledger.Filters) (*ledger.ExpenseReport, error) {
	if err := f.CheckCurrency(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	matched := s.filterLocked(f)
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return &ledger.ExpenseReport{
		Currency: f.Currency,
		From:     f.From,
		To:       f.To,
		Expenses: matched,
		Summary:  ledger.Summarize(matched),
	}, nil
}

// ComputeBalances implements ledger.Provider.
func (s *Store) ComputeBalances(_ context.Context, f ledger.Filters) (*ledger.BalanceReport, error) {
	if err := f.CheckCurrency(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	matched := s.filterLocked(f)
	agents := append([]core.Agent(nil), s.agents...)
	s.mu.Unlock()

	spentByAgent := make(map[string]int64)
	for _, e := range matched {
		spentByAgent[e.AgentID] += e.AmountMinor
	}

	balances := []ledger.BalanceRow{}
	for _, a := range agents {
		if f.AgentID != "" && a.ID != f.AgentID {
			continue
		}
		spent := spentByAgent[a.ID]
		balances = append(balances, ledger.BalanceRow{
			AgentID:        a.ID,
			AgentName:      a.Name,
			StartingMinor:  a.StartingMinor,
			SpentMinor:     spent,
			RemainingMinor: a.StartingMinor - spent,
		})
	}

	return &ledger.BalanceReport{
		Currency: f.Currency,
		AsOf:     s.nowFn().UTC(),
		Balances: balances,
		Totals:   ledger.SumBalances(balances),
	}, nil
}

// RecordExpense implements ledger.Provider. The agent must already exist
// in the roster; ids are sequential and never reused (there is no
// deletion). Appends a fully-formed row, so a racing reader never sees a
// partial write.
func (s *Store) RecordExpense(_ context.Context, in ledger.RecordInput) (*ledger.RecordResult, error) {
	fields, err := ledger.NormalizeRecord(in, s.nowFn())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.agentName(fields.AgentID)
	if name == "" {
		return nil, core.E(core.KindInvalidAgent, "agent %q does not exist", fields.AgentID)
	}

	e := core.Expense{
		ID:          s.nextIDLocked(),
		AgentID:     fields.AgentID,
		AgentName:   name,
		Category:    fields.Category,
		Vendor:      fields.Vendor,
		Description: fields.Description,
		AmountMinor: fields.AmountMinor,
		OccurredAt:  fields.OccurredAt,
	}
	s.items = append(s.items, e)

	return &ledger.RecordResult{Currency: fields.Currency, Expense: e}, nil
}

// filterLocked copies the rows matching the filter window and scope.
// Callers must hold mu.
func (s *Store) filterLocked(f ledger.Filters) []core.Expense {
	start, end := f.Window()
	matched := []core.Expense{}
	for _, e := range s.items {
		if f.AgentID != "" && e.AgentID != f.AgentID {
			continue
		}
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

func (s *Store) agentName(id string) string {
	for _, a := range s.agents {
		if a.ID == id {
			return a.Name
		}
	}
	return ""
}

// nextIDLocked scans existing ids for the highest exp-N suffix and
// increments it, so ids stay unique for the process lifetime.
func (s *Store) nextIDLocked() string {
	max := 0
	for _, e := range s.items {
		raw, ok := strings.CutPrefix(e.ID, "exp-")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(raw); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("exp-%03d", max+1)
}
