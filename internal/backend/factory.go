package backend

import (
	"context"
	"log/slog"

	"agentledger/internal/amqp"
	"agentledger/internal/core"
	"agentledger/internal/ledger/memory"
	"agentledger/internal/ledger/sheets"
	"agentledger/internal/services"
	"agentledger/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend maps the backend selector to a constructed provider.
// Unrecognized selectors fail with InvalidProvider before any operation
// can run.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, core.E(core.KindInvalidProvider, "unrecognized backend %q, must be one of %v", config.Type, Types())
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, core.WrapProvider(err)
	}

	// AMQP is optional; without it writes simply skip event publishing.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	service := services.NewLedgerService(repo, amqpClient)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &Result{
		Provider: service,
		Cleanup:  service.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(config Config) (*Result, error) {
	cli, err := sheets.New(sheets.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		SheetName:     config.GoogleSheetName,
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized sheets backend (operations report NotImplemented)")

	return &Result{Provider: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(Config) (*Result, error) {
	store := memory.NewSeeded()

	f.logger.Info("Initialized memory backend", "seed_agents", len(memory.SeedAgents()))

	return &Result{Provider: store}, nil
}
