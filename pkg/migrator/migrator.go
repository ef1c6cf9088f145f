package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Migration holds migration data for one schema version.
type Migration struct {
	Version int
	UpSQL   string
	DownSQL string
}

// SchemaMigrator applies migrations for the case-management schema.
type SchemaMigrator interface {
	Current(ctx context.Context, db *sql.DB) (int, error)
	Up(ctx context.Context, db *sql.DB, target int) error   // 0=latest
	Down(ctx context.Context, db *sql.DB, target int) error // target<current
}

// Migrator implements SchemaMigrator using embedded SQL.
type Migrator struct {
	migrations  []Migration
	TablePrefix string
	Driver      string
}

// NewWithDriver returns a Migrator for the specified driver.
func NewWithDriver(driver string) *Migrator {
	return NewWithDriverAndPrefix(driver, "")
}

// NewWithDriverAndPrefix returns a Migrator for the driver with table prefix.
func NewWithDriverAndPrefix(driver, prefix string) *Migrator {
	var migs []Migration
	switch driver {
	case "postgres":
		migs = postgresMigrations
	case "mysql":
		migs = mysqlMigrations
	default:
		migs = sqliteMigrations
	}
	migs = withPrefix(migs, prefix)
	return &Migrator{migrations: migs, TablePrefix: prefix, Driver: driver}
}

func withPrefix(migs []Migration, prefix string) []Migration {
	if prefix == "" {
		return migs
	}
	res := make([]Migration, len(migs))
	for i, m := range migs {
		m.UpSQL = strings.ReplaceAll(m.UpSQL, "cms_", prefix)
		m.DownSQL = strings.ReplaceAll(m.DownSQL, "cms_", prefix)
		res[i] = m
	}
	return res
}

// Latest returns the highest schema version this build knows about.
func (m *Migrator) Latest() int {
	return len(m.migrations)
}

func (m *Migrator) versionTable() string {
	prefix := m.TablePrefix
	if prefix == "" {
		prefix = "cms_"
	}
	return prefix + "schema_version"
}

// ErrNoVersionTable indicates the schema version table is missing.
var ErrNoVersionTable = errors.New("schema version table not found")

// ensureVersionTable creates the version table if it doesn't exist and inserts
// an initial row with version=0. Safe to call multiple times.
func (m *Migrator) ensureVersionTable(ctx context.Context, db *sql.DB) error {
	tbl := m.versionTable()
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        version INT PRIMARY KEY,
        applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    )`, tbl)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(version) VALUES(0)`, tbl)); err != nil {
		msg := strings.ToLower(err.Error())
		if !strings.Contains(msg, "duplicate") && !strings.Contains(msg, "conflict") && !strings.Contains(msg, "unique") {
			return err
		}
	}
	return nil
}

// Current returns the current schema version. If the version table doesn't
// exist ErrNoVersionTable is returned.
func (m *Migrator) Current(ctx context.Context, db *sql.DB) (int, error) {
	if err := m.ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	tbl := m.versionTable()
	var query string
	if m.Driver == "postgres" {
		query = fmt.Sprintf("SELECT MAX(version) FROM %s", pq.QuoteIdentifier(tbl))
	} else {
		query = fmt.Sprintf("SELECT MAX(version) FROM `%s`", tbl)
	}
	row := db.QueryRowContext(ctx, query) // #nosec G201 -- table name derived from trusted prefix
	var v sql.NullInt64
	if err := row.Scan(&v); err != nil {
		if isTableMissing(err) {
			return 0, ErrNoVersionTable
		}
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func splitSQL(src string) []string {
	var (
		res      []string
		buf      strings.Builder
		inSingle bool
		inDouble bool
	)
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\'':
			inSingle = !inSingle
		case '"':
			inDouble = !inDouble
		case ';':
			if !inSingle && !inDouble {
				s := strings.TrimSpace(buf.String())
				if s != "" {
					res = append(res, s)
				}
				buf.Reset()
				continue
			}
		}
		buf.WriteByte(c)
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		res = append(res, s)
	}
	return res
}

func execAll(ctx context.Context, tx *sql.Tx, src string) error {
	for _, stmt := range splitSQL(src) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Up migrates the schema up to target. target=0 means latest.
func (m *Migrator) Up(ctx context.Context, db *sql.DB, target int) error {
	if target == 0 {
		target = len(m.migrations)
	}
	cur, err := m.Current(ctx, db)
	if err != nil {
		return err
	}
	if cur >= target {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := cur; i < target; i++ {
		if err := execAll(ctx, tx, m.migrations[i].UpSQL); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback: %v: %w", rbErr, err)
			}
			return err
		}
	}
	if err := m.recordVersion(ctx, tx, target); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback: %v: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Down migrates schema down to target version.
func (m *Migrator) Down(ctx context.Context, db *sql.DB, target int) error {
	cur, err := m.Current(ctx, db)
	if err != nil {
		return err
	}
	if target >= cur {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := cur - 1; i >= target; i-- {
		if err := execAll(ctx, tx, m.migrations[i].DownSQL); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback: %v: %w", rbErr, err)
			}
			return err
		}
	}
	var delQ string
	if m.Driver == "postgres" {
		delQ = fmt.Sprintf("DELETE FROM %s WHERE version > $1", pq.QuoteIdentifier(m.versionTable()))
	} else {
		delQ = fmt.Sprintf("DELETE FROM `%s` WHERE version > ?", m.versionTable())
	}
	if _, err := tx.ExecContext(ctx, delQ, target); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback: %v: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func (m *Migrator) recordVersion(ctx context.Context, tx *sql.Tx, v int) error {
	var q string
	if m.Driver == "postgres" {
		q = fmt.Sprintf("INSERT INTO %s(version) VALUES($1) ON CONFLICT (version) DO NOTHING", pq.QuoteIdentifier(m.versionTable()))
	} else {
		q = fmt.Sprintf("INSERT OR IGNORE INTO `%s`(version) VALUES(?)", m.versionTable())
		if m.Driver == "mysql" {
			q = fmt.Sprintf("INSERT IGNORE INTO `%s`(version) VALUES(?)", m.versionTable())
		}
	}
	_, err := tx.ExecContext(ctx, q, v)
	return err
}

func isTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "no such table") || strings.Contains(msg, "undefined table")
}

// SQLForRange returns SQL statements needed to migrate from->to.
func (m *Migrator) SQLForRange(from, to int) []string {
	var res []string
	if to > from {
		for i := from; i < to; i++ {
			res = append(res, splitSQL(m.migrations[i].UpSQL)...)
		}
	} else if to < from {
		for i := from - 1; i >= to; i-- {
			res = append(res, splitSQL(m.migrations[i].DownSQL)...)
		}
	}
	return res
}
