package backend

import (
	"fmt"

	"agentledger/internal/config"
	"agentledger/internal/core"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := Type(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, core.E(core.KindInvalidProvider, "unrecognized backend %q, must be one of %v", appConfig.DataBackend, Types())
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}, nil
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return core.E(core.KindInvalidProvider, "unrecognized backend %q, must be one of %v", c.Type, Types())
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return core.E(core.KindProviderNotConfigured, "SQLite database path is required for the sqlite backend")
		}
		// AMQP is optional, so it is not validated here.

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return core.E(core.KindProviderNotConfigured, "GOOGLE_SPREADSHEET_ID is required for the sheets backend")
		}
		if c.GoogleSheetName == "" {
			return core.E(core.KindProviderNotConfigured, "GOOGLE_SHEET_NAME is required for the sheets backend")
		}

	case MemoryBackend:
		// The memory backend needs no additional configuration.
	}

	return nil
}
