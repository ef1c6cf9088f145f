package sdk

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/caseflow-dev/caseflow/pkg/migrator"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// Migrate upgrades or downgrades the schema to the target version.
func (s *service) Migrate(ctx context.Context, cfg DBConfig, target int) error {
	drv, db, err := s.open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	m := migrator.NewWithDriverAndPrefix(drv, cfg.TablePrefix)
	cur, err := m.Current(ctx, db)
	if err != nil && err != migrator.ErrNoVersionTable {
		return err
	}
	if target == 0 {
		target = m.Latest()
	}
	if target > cur {
		return m.Up(ctx, db, target)
	}
	if target < cur {
		return m.Down(ctx, db, target)
	}
	s.logger.Infow("schema up-to-date", "version", cur)
	return nil
}

// SchemaVersion returns the current schema version.
func (s *service) SchemaVersion(ctx context.Context, cfg DBConfig) (int, error) {
	drv, db, err := s.open(cfg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	m := migrator.NewWithDriverAndPrefix(drv, cfg.TablePrefix)
	return m.Current(ctx, db)
}

func (s *service) open(cfg DBConfig) (string, *sql.DB, error) {
	drv := cfg.Driver
	if drv == "" {
		var err error
		drv, err = util.DetectDriver(cfg.DSN)
		if err != nil {
			return "", nil, err
		}
	}
	db, err := sql.Open(drv, cfg.DSN)
	if err != nil {
		return "", nil, err
	}
	return drv, db, nil
}
