package sdk

import (
	"database/sql"

	"go.uber.org/zap"
)

// DBConfig specifies database connection parameters.
type DBConfig struct {
	Driver      string // mysql|postgres|sqlite3
	DSN         string
	TablePrefix string
}

// ServiceConfig holds optional configuration for Service.
type ServiceConfig struct {
	Logger *zap.SugaredLogger

	DB          *sql.DB
	Driver      string
	TablePrefix string

	// ValidateOnUpdate re-runs dependency validation when a single case
	// field is updated. Defaults to off.
	ValidateOnUpdate bool
}
