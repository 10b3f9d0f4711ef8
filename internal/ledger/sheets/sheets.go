// Package sheets is the Google Sheets ledger backend placeholder. It
// validates its configuration and otherwise reports NotImplemented, so the
// backend can be selected and wired before the real implementation lands
// and callers get a stable typed failure instead of a crash.
package sheets

import (
	"context"
	"strings"

	"agentledger/internal/core"
	"agentledger/internal/ledger"
)

// Config holds the two settings the sheets backend requires.
type Config struct {
	SpreadsheetID string
	SheetName     string
}

type Client struct {
	cfg Config
}

// New validates the configuration and returns the stub client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, core.E(core.KindProviderNotConfigured, "sheets backend requires GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, core.E(core.KindProviderNotConfigured, "sheets backend requires GOOGLE_SHEET_NAME")
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) ListExpenses(context.Context, ledger.Filters) (*ledger.ExpenseReport, error) {
	return nil, c.notImplemented("list expenses")
}

func (c *Client) ComputeBalances(context.Context, ledger.Filters) (*ledger.BalanceReport, error) {
	return nil, c.notImplemented("compute balances")
}

func (c *Client) RecordExpense(context.Context, ledger.RecordInput) (*ledger.RecordResult, error) {
	return nil, c.notImplemented("record expense")
}

func (c *Client) notImplemented(op string) error {
	return core.E(core.KindNotImplemented, "%s is not implemented for the sheets backend", op)
}
