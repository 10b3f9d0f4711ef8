// Package storage implements the SQLite-backed ledger provider.
//
// External behavior matches the in-memory reference provider with one
// documented exception: recording an expense for an unknown agent
// auto-creates the agent with a zero starting balance instead of failing.
package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"agentledger/internal/core"
	"agentledger/internal/ledger"
	applog "agentledger/internal/log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width UTC so that lexicographic comparison of stored
// timestamps matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at dbPath and runs
// the embedded migrations, which seed the default agent roster.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Single connection: sqlite serializes writers anyway, and one pooled
	// connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListExpenses implements ledger.Provider. The row list and the three
// aggregates are independent reads over the same predicate, so they run
// concurrently; within one short-lived request the store is not mutated by
// the same caller, which keeps the four results mutually consistent.
func (r *Repository) ListExpenses(ctx context.Context, f ledger.Filters) (*ledger.ExpenseReport, error) {
	if err := f.CheckCurrency(); err != nil {
		return nil, err
	}

	startBound, endBound := windowBounds(f)

	report := &ledger.ExpenseReport{
		Currency: f.Currency,
		From:     f.From,
		To:       f.To,
		Expenses: []core.Expense{},
		Summary: ledger.Summary{
			ByAgent:    []ledger.AgentTotal{},
			ByCategory: []ledger.CategoryTotal{},
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.queryExpenses(gctx, f.AgentID, startBound, endBound)
		if err != nil {
			return err
		}
		report.Expenses = rows
		return nil
	})
	g.Go(func() error {
		total, count, err := r.queryTotals(gctx, f.AgentID, startBound, endBound)
		if err != nil {
			return err
		}
		report.Summary.TotalExpenseMinor = total
		report.Summary.ExpenseCount = count
		return nil
	})
	g.Go(func() error {
		byAgent, err := r.queryByAgent(gctx, f.AgentID, startBound, endBound)
		if err != nil {
			return err
		}
		report.Summary.ByAgent = byAgent
		return nil
	})
	g.Go(func() error {
		byCategory, err := r.queryByCategory(gctx, f.AgentID, startBound, endBound)
		if err != nil {
			return err
		}
		report.Summary.ByCategory = byCategory
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, core.WrapProvider(err)
	}

	return report, nil
}

// ComputeBalances implements ledger.Provider.
func (r *Repository) ComputeBalances(ctx context.Context, f ledger.Filters) (*ledger.BalanceReport, error) {
	if err := f.CheckCurrency(); err != nil {
		return nil, err
	}

	startBound, endBound := windowBounds(f)

	query := `
		SELECT a.id, a.name, a.starting_minor, COALESCE(SUM(e.amount_minor), 0) AS spent
		FROM agents a
		LEFT JOIN expenses e
			ON e.agent_id = a.id
			AND e.occurred_at >= ? AND e.occurred_at <= ?`
	args := []any{startBound, endBound}
	if f.AgentID != "" {
		query += `
		WHERE a.id = ?`
		args = append(args, f.AgentID)
	}
	query += `
		GROUP BY a.id, a.name, a.starting_minor
		ORDER BY a.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapProvider(fmt.Errorf("query balances: %w", err))
	}
	defer rows.Close()

	balances := []ledger.BalanceRow{}
	for rows.Next() {
		var b ledger.BalanceRow
		var starting, spent any
		if err := rows.Scan(&b.AgentID, &b.AgentName, &starting, &spent); err != nil {
			return nil, core.WrapProvider(fmt.Errorf("scan balance row: %w", err))
		}
		b.StartingMinor = coerceMinor(starting)
		b.SpentMinor = coerceMinor(spent)
		b.RemainingMinor = b.StartingMinor - b.SpentMinor
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapProvider(fmt.Errorf("iterate balance rows: %w", err))
	}

	return &ledger.BalanceReport{
		Currency: f.Currency,
		AsOf:     time.Now().UTC(),
		Balances: balances,
		Totals:   ledger.SumBalances(balances),
	}, nil
}

// RecordExpense implements ledger.Provider. The write is a staged sequence:
// validate, upsert the agent (insert-or-ignore keyed on id, so a racing
// concurrent creation is not an error), re-read the agent, insert the
// expense. Correctness of the duplicate-agent race rests on the single-row
// atomicity of the conflict-handling insert, not on any application lock.
// Every stage emits a trace record correlated by a per-call token.
func (r *Repository) RecordExpense(ctx context.Context, in ledger.RecordInput) (*ledger.RecordResult, error) {
	callID := newCallID(in.AgentID)

	fields, err := ledger.NormalizeRecord(in, time.Now())
	if err != nil {
		r.trace(ctx, callID, "validate", in.AgentID, err)
		return nil, err
	}
	r.trace(ctx, callID, "validate", fields.AgentID, nil)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, starting_minor, currency)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (id) DO NOTHING`,
		fields.AgentID, fields.AgentID, core.CurrencyUSD)
	if err != nil {
		r.trace(ctx, callID, "upsert_agent", fields.AgentID, err)
		return nil, core.WrapProvider(fmt.Errorf("upsert agent: %w", err))
	}
	r.trace(ctx, callID, "upsert_agent", fields.AgentID, nil)

	var agentName string
	err = r.db.QueryRowContext(ctx, `SELECT name FROM agents WHERE id = ?`, fields.AgentID).Scan(&agentName)
	if errors.Is(err, sql.ErrNoRows) {
		// Post-condition violated: the upsert guarantees the row exists.
		err = core.E(core.KindProviderUnavailable, "agent %q missing immediately after upsert", fields.AgentID)
		r.trace(ctx, callID, "read_agent", fields.AgentID, err)
		return nil, err
	}
	if err != nil {
		r.trace(ctx, callID, "read_agent", fields.AgentID, err)
		return nil, core.WrapProvider(fmt.Errorf("read agent: %w", err))
	}
	r.trace(ctx, callID, "read_agent", fields.AgentID, nil)

	e := core.Expense{
		ID:          uuid.NewString(),
		AgentID:     fields.AgentID,
		AgentName:   agentName,
		Category:    fields.Category,
		Vendor:      fields.Vendor,
		Description: fields.Description,
		AmountMinor: fields.AmountMinor,
		OccurredAt:  fields.OccurredAt,
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, agent_id, category, vendor, description, amount_minor, currency, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AgentID, e.Category, e.Vendor, e.Description, e.AmountMinor, fields.Currency, e.OccurredAt.UTC().Format(timeLayout))
	if err != nil {
		r.trace(ctx, callID, "insert_expense", fields.AgentID, err)
		return nil, core.WrapProvider(fmt.Errorf("insert expense: %w", err))
	}
	r.trace(ctx, callID, "insert_expense", fields.AgentID, nil)

	return &ledger.RecordResult{Currency: fields.Currency, Expense: e}, nil
}

func (r *Repository) queryExpenses(ctx context.Context, agentID, startBound, endBound string) ([]core.Expense, error) {
	query := `
		SELECT e.id, e.agent_id, a.name, e.category, e.vendor, e.description, e.amount_minor, e.occurred_at
		FROM expenses e
		JOIN agents a ON a.id = e.agent_id
		WHERE e.occurred_at >= ? AND e.occurred_at <= ?`
	args := []any{startBound, endBound}
	if agentID != "" {
		query += ` AND e.agent_id = ?`
		args = append(args, agentID)
	}
	query += `
		ORDER BY e.occurred_at DESC, e.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var e core.Expense
		var amount any
		var occurred string
		if err := rows.Scan(&e.ID, &e.AgentID, &e.AgentName, &e.Category, &e.Vendor, &e.Description, &amount, &occurred); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		e.AmountMinor = coerceMinor(amount)
		t, err := time.Parse(timeLayout, occurred)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", occurred, err)
		}
		e.OccurredAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) queryTotals(ctx context.Context, agentID, startBound, endBound string) (int64, int, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0), COUNT(*)
		FROM expenses
		WHERE occurred_at >= ? AND occurred_at <= ?`
	args := []any{startBound, endBound}
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}

	var total, count any
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("query totals: %w", err)
	}
	return coerceMinor(total), int(coerceMinor(count)), nil
}

func (r *Repository) queryByAgent(ctx context.Context, agentID, startBound, endBound string) ([]ledger.AgentTotal, error) {
	query := `
		SELECT e.agent_id, a.name, SUM(e.amount_minor) AS total
		FROM expenses e
		JOIN agents a ON a.id = e.agent_id
		WHERE e.occurred_at >= ? AND e.occurred_at <= ?`
	args := []any{startBound, endBound}
	if agentID != "" {
		query += ` AND e.agent_id = ?`
		args = append(args, agentID)
	}
	query += `
		GROUP BY e.agent_id, a.name
		ORDER BY total DESC, e.agent_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by-agent totals: %w", err)
	}
	defer rows.Close()

	out := []ledger.AgentTotal{}
	for rows.Next() {
		var at ledger.AgentTotal
		var total any
		if err := rows.Scan(&at.AgentID, &at.AgentName, &total); err != nil {
			return nil, fmt.Errorf("scan by-agent row: %w", err)
		}
		at.TotalExpenseMinor = coerceMinor(total)
		out = append(out, at)
	}
	return out, rows.Err()
}

func (r *Repository) queryByCategory(ctx context.Context, agentID, startBound, endBound string) ([]ledger.CategoryTotal, error) {
	query := `
		SELECT category, SUM(amount_minor) AS total
		FROM expenses
		WHERE occurred_at >= ? AND occurred_at <= ?`
	args := []any{startBound, endBound}
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	query += `
		GROUP BY category
		ORDER BY total DESC, category ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by-category totals: %w", err)
	}
	defer rows.Close()

	out := []ledger.CategoryTotal{}
	for rows.Next() {
		var ct ledger.CategoryTotal
		var total any
		if err := rows.Scan(&ct.Category, &total); err != nil {
			return nil, fmt.Errorf("scan by-category row: %w", err)
		}
		ct.TotalExpenseMinor = coerceMinor(total)
		out = append(out, ct)
	}
	return out, rows.Err()
}

// windowBounds renders the inclusive filter window in the stored timestamp
// layout so string comparison in SQL matches chronological order.
func windowBounds(f ledger.Filters) (string, string) {
	return f.From + "T00:00:00.000Z", f.To + "T23:59:59.999Z"
}

// coerceMinor forces an aggregate value to an integer minor-unit amount.
// Drivers may surface SUM results as int64, float, string, or raw bytes;
// anything non-finite or unparseable coerces to zero rather than letting a
// string or float leak into the data model.
func coerceMinor(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return int64(x)
	case []byte:
		return parseMinor(string(x))
	case string:
		return parseMinor(x)
	default:
		return 0
	}
}

func parseMinor(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(fl) && !math.IsInf(fl, 0) {
		return int64(fl)
	}
	return 0
}

// trace emits one stage-completion record for a RecordExpense call. All
// stages of one call share the same call id so concurrent writes do not
// interleave their trace lines.
func (r *Repository) trace(ctx context.Context, callID, stage, agentID string, err error) {
	if err != nil {
		slog.ErrorContext(ctx, "record expense stage failed",
			applog.FieldComponent, applog.ComponentStorage,
			applog.FieldCallID, callID,
			applog.FieldStage, stage,
			applog.FieldAgentID, agentID,
			applog.FieldSuccess, false,
			applog.FieldError, err.Error())
		return
	}
	slog.InfoContext(ctx, "record expense stage completed",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldCallID, callID,
		applog.FieldStage, stage,
		applog.FieldAgentID, agentID,
		applog.FieldSuccess, true)
}

// newCallID builds the per-call correlation token from the agent id, the
// current timestamp, and randomness.
func newCallID(agentID string) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", agentID, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", agentID, time.Now().UnixMilli(), hex.EncodeToString(buf))
}
