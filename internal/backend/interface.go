package backend

import (
	"context"

	"agentledger/internal/ledger"
)

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// Result contains the constructed provider and optional cleanup function.
type Result struct {
	Provider ledger.Provider
	Cleanup  CleanupFunc
}

// Factory creates ledger providers based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// Type names one of the three backend identities.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
	SheetsBackend Type = "sheets"
)

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is recognized.
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, SheetsBackend}
}
