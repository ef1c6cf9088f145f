package datatable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/iancoleman/strcase"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// Repo persists lookup tables, their column definitions and records.
type Repo struct {
	DB          *sql.DB
	Driver      string
	Dialect     ormdriver.Dialect
	TablePrefix string
}

func (r *Repo) table(name string) string {
	return casedef.TableName(r.TablePrefix, name)
}

// NormalizeName lowercases and snake_cases a table name so that lookups stay
// stable regardless of how the name was typed.
func NormalizeName(name string) string {
	return strcase.ToSnake(strings.TrimSpace(name))
}

func validateColumns(cols []casedef.Column) error {
	if len(cols) == 0 {
		return &casedef.ValidationError{Errors: []string{"at least one column is required"}}
	}
	seen := make(map[string]struct{}, len(cols))
	var errs []string
	for _, c := range cols {
		name := NormalizeName(c.Name)
		if name == "" {
			errs = append(errs, "column name must not be empty")
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Sprintf("column %q defined more than once", name))
		}
		seen[name] = struct{}{}
		if !c.Type.Valid() {
			errs = append(errs, fmt.Sprintf("column %q has unknown data type %q", name, c.Type))
		}
	}
	if len(errs) > 0 {
		return &casedef.ValidationError{Errors: errs}
	}
	return nil
}

// Create stores a lookup table and its column definitions in one transaction.
func (r *Repo) Create(ctx context.Context, dt casedef.DataTable, createdBy string) (int64, error) {
	if err := validateColumns(dt.Columns); err != nil {
		return 0, err
	}
	name := NormalizeName(dt.Name)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	var exists int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE table_name = ?", r.table("data_tables")))
	if err := tx.QueryRowContext(ctx, q, name).Scan(&exists); err != nil {
		return 0, rollback(tx, fmt.Errorf("check name: %w", err))
	}
	if exists > 0 {
		return 0, rollback(tx, fmt.Errorf("data table %q: %w", name, casedef.ErrDuplicateName))
	}
	now := time.Now().UTC()
	id, err := r.insertReturningID(ctx, tx,
		fmt.Sprintf("INSERT INTO %s (table_name, display_name, description, is_active, created_at, updated_at, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)", r.table("data_tables")),
		name, dt.DisplayName, dt.Description, true, now, now, createdBy)
	if err != nil {
		if util.IsUniqueViolation(err) {
			return 0, rollback(tx, fmt.Errorf("data table %q: %w", name, casedef.ErrDuplicateName))
		}
		return 0, rollback(tx, fmt.Errorf("insert data table: %w", err))
	}
	if err := r.insertColumns(ctx, tx, id, dt.Columns, now); err != nil {
		return 0, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Update replaces the table metadata and the entire column set.
func (r *Repo) Update(ctx context.Context, id int64, dt casedef.DataTable) error {
	if err := validateColumns(dt.Columns); err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := time.Now().UTC()
	q := util.Rebind(r.Driver, fmt.Sprintf("UPDATE %s SET display_name = ?, description = ?, is_active = ?, updated_at = ? WHERE id = ?", r.table("data_tables")))
	res, err := tx.ExecContext(ctx, q, dt.DisplayName, dt.Description, dt.Active, now, id)
	if err != nil {
		return rollback(tx, fmt.Errorf("update data table: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rollback(tx, fmt.Errorf("data table %d: %w", id, casedef.ErrNotFound))
	}
	q = util.Rebind(r.Driver, fmt.Sprintf("DELETE FROM %s WHERE table_id = ?", r.table("data_table_columns")))
	if _, err := tx.ExecContext(ctx, q, id); err != nil {
		return rollback(tx, fmt.Errorf("delete columns: %w", err))
	}
	if err := r.insertColumns(ctx, tx, id, dt.Columns, now); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a table with its columns and records. It fails with ErrInUse
// while any template field references the table.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var inUse int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE data_table_id = ?", r.table("template_fields")))
	if err := tx.QueryRowContext(ctx, q, id).Scan(&inUse); err != nil {
		return rollback(tx, fmt.Errorf("count references: %w", err))
	}
	if inUse > 0 {
		return rollback(tx, fmt.Errorf("data table %d: %w", id, casedef.ErrInUse))
	}
	for _, child := range []string{"data_table_records", "data_table_columns"} {
		q = util.Rebind(r.Driver, fmt.Sprintf("DELETE FROM %s WHERE table_id = ?", r.table(child)))
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return rollback(tx, fmt.Errorf("delete %s: %w", child, err))
		}
	}
	q = util.Rebind(r.Driver, fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table("data_tables")))
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return rollback(tx, fmt.Errorf("delete data table: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rollback(tx, fmt.Errorf("data table %d: %w", id, casedef.ErrNotFound))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns a data table with its column definitions.
func (r *Repo) Get(ctx context.Context, id int64) (casedef.DataTable, error) {
	var (
		dt        casedef.DataTable
		desc      sql.NullString
		createdAt sql.NullTime
	)
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id, table_name, display_name, description, is_active, created_at FROM %s WHERE id = ?", r.table("data_tables")))
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&dt.ID, &dt.Name, &dt.DisplayName, &desc, &dt.Active, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return casedef.DataTable{}, fmt.Errorf("data table %d: %w", id, casedef.ErrNotFound)
		}
		return casedef.DataTable{}, fmt.Errorf("query data table: %w", err)
	}
	dt.Description = desc.String
	dt.CreatedAt = createdAt.Time
	cols, err := r.Columns(ctx, id)
	if err != nil {
		return casedef.DataTable{}, err
	}
	dt.Columns = cols
	return dt, nil
}

// GetByName resolves a table by its normalized name.
func (r *Repo) GetByName(ctx context.Context, name string) (casedef.DataTable, error) {
	var id int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id FROM %s WHERE table_name = ?", r.table("data_tables")))
	if err := r.DB.QueryRowContext(ctx, q, NormalizeName(name)).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return casedef.DataTable{}, fmt.Errorf("data table %q: %w", name, casedef.ErrNotFound)
		}
		return casedef.DataTable{}, fmt.Errorf("query data table: %w", err)
	}
	return r.Get(ctx, id)
}

// Columns returns the column definitions of a table in insertion order.
func (r *Repo) Columns(ctx context.Context, tableID int64) ([]casedef.Column, error) {
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT column_name, display_name, data_type, is_key_field, is_display_field, is_searchable FROM %s WHERE table_id = ? ORDER BY id", r.table("data_table_columns")))
	rows, err := r.DB.QueryContext(ctx, q, tableID)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()
	var cols []casedef.Column
	for rows.Next() {
		var (
			c     casedef.Column
			ctype string
		)
		if err := rows.Scan(&c.Name, &c.Display, &ctype, &c.KeyField, &c.DisplayKey, &c.Searchable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = casedef.ColumnType(ctype)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// List returns table summaries with active record counts.
func (r *Repo) List(ctx context.Context) ([]casedef.TableSummary, error) {
	q := fmt.Sprintf(`SELECT t.id, t.table_name, t.display_name, t.description, COUNT(rec.id) AS record_count
FROM %s t
LEFT JOIN %s rec ON rec.table_id = t.id AND rec.is_active = %s
GROUP BY t.id, t.table_name, t.display_name, t.description
ORDER BY t.table_name`, r.table("data_tables"), r.table("data_table_records"), r.boolLit(true))
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query data tables: %w", err)
	}
	defer rows.Close()
	var res []casedef.TableSummary
	for rows.Next() {
		var (
			s    casedef.TableSummary
			desc sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.DisplayName, &desc, &s.RecordCount); err != nil {
			return nil, fmt.Errorf("scan data table: %w", err)
		}
		s.Description = desc.String
		res = append(res, s)
	}
	return res, rows.Err()
}

// AddRecord appends one record to a table. Record keys are normalized to the
// table's column names; unknown keys are rejected.
func (r *Repo) AddRecord(ctx context.Context, tableID int64, data map[string]any, createdBy string) (int64, error) {
	cols, err := r.Columns(ctx, tableID)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("data table %d: %w", tableID, casedef.ErrNotFound)
	}
	known := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		known[NormalizeName(c.Name)] = struct{}{}
	}
	normalized := make(map[string]any, len(data))
	var errs []string
	for k, v := range data {
		nk := NormalizeName(k)
		if _, ok := known[nk]; !ok {
			errs = append(errs, fmt.Sprintf("unknown column %q", k))
			continue
		}
		normalized[nk] = v
	}
	if len(errs) > 0 {
		return 0, &casedef.ValidationError{Errors: errs}
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	now := time.Now().UTC()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	id, err := r.insertReturningID(ctx, tx,
		fmt.Sprintf("INSERT INTO %s (table_id, record_data, is_active, created_at, updated_at, created_by) VALUES (?, ?, ?, ?, ?, ?)", r.table("data_table_records")),
		tableID, string(raw), true, now, now, createdBy)
	if err != nil {
		return 0, rollback(tx, fmt.Errorf("insert record: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Records returns the active records of a table, oldest first.
func (r *Repo) Records(ctx context.Context, tableID int64, limit int) ([]casedef.Record, error) {
	limit = util.SanitizeLimit(limit)
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id, table_id, record_data, is_active FROM %s WHERE table_id = ? AND is_active = ? ORDER BY id LIMIT %d", r.table("data_table_records"), limit))
	rows, err := r.DB.QueryContext(ctx, q, tableID, true)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var res []casedef.Record
	for rows.Next() {
		var (
			rec casedef.Record
			raw string
		)
		if err := rows.Scan(&rec.ID, &rec.TableID, &raw, &rec.Active); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", rec.ID, err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r *Repo) insertColumns(ctx context.Context, tx *sql.Tx, tableID int64, cols []casedef.Column, now time.Time) error {
	for _, c := range cols {
		q := util.Rebind(r.Driver, fmt.Sprintf("INSERT INTO %s (table_id, column_name, display_name, data_type, is_key_field, is_display_field, is_searchable, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", r.table("data_table_columns")))
		if _, err := tx.ExecContext(ctx, q, tableID, NormalizeName(c.Name), c.Display, string(c.Type), c.KeyField, c.DisplayKey, c.Searchable, now); err != nil {
			return fmt.Errorf("insert column %q: %w", c.Name, err)
		}
	}
	return nil
}

func (r *Repo) insertReturningID(ctx context.Context, tx *sql.Tx, q string, args ...any) (int64, error) {
	if r.Driver == "postgres" {
		var id int64
		err := tx.QueryRowContext(ctx, util.Rebind(r.Driver, q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) boolLit(v bool) string {
	if r.Driver == "postgres" {
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	if v {
		return "1"
	}
	return "0"
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return fmt.Errorf("rollback: %v: %w", rbErr, err)
	}
	return err
}
