package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// Repo persists case templates, their fields and dependency rules.
type Repo struct {
	DB          *sql.DB
	Driver      string
	Dialect     ormdriver.Dialect
	TablePrefix string
}

func (r *Repo) table(name string) string {
	return casedef.TableName(r.TablePrefix, name)
}

// defaultConfig mirrors the template_config written for every new template.
func defaultConfig() map[string]any {
	return map[string]any{
		"layout":     "default",
		"validation": "client_server",
		"save_mode":  "auto",
		"theme":      "default",
	}
}

// Create stores a template with its fields and dependency rules in one
// transaction. Field order in tpl.Fields defines display_order.
func (r *Repo) Create(ctx context.Context, tpl casedef.Template, createdBy string) (int64, error) {
	if err := validateFields(tpl.Fields); err != nil {
		return 0, err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	var exists int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", r.table("templates")))
	if err := tx.QueryRowContext(ctx, q, tpl.Name).Scan(&exists); err != nil {
		return 0, rollback(tx, fmt.Errorf("check name: %w", err))
	}
	if exists > 0 {
		return 0, rollback(tx, fmt.Errorf("template %q: %w", tpl.Name, casedef.ErrDuplicateName))
	}
	cfg := tpl.Config
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, rollback(tx, fmt.Errorf("encode template config: %w", err))
	}
	now := time.Now().UTC()
	id, err := r.insertReturningID(ctx, tx,
		fmt.Sprintf("INSERT INTO %s (name, description, category, template_config, created_at, updated_at, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)", r.table("templates")),
		tpl.Name, tpl.Description, tpl.Category, string(cfgJSON), now, now, createdBy)
	if err != nil {
		if util.IsUniqueViolation(err) {
			return 0, rollback(tx, fmt.Errorf("template %q: %w", tpl.Name, casedef.ErrDuplicateName))
		}
		return 0, rollback(tx, fmt.Errorf("insert template: %w", err))
	}
	if err := r.insertFields(ctx, tx, id, tpl.Fields, now); err != nil {
		return 0, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Update replaces the template metadata and the entire field set. Existing
// fields and their dependency rules are deleted and re-inserted from fields.
func (r *Repo) Update(ctx context.Context, id int64, tpl casedef.Template, updatedBy string) error {
	if err := validateFields(tpl.Fields); err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var found int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id FROM %s WHERE id = ?", r.table("templates")))
	if err := tx.QueryRowContext(ctx, q, id).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, fmt.Errorf("template %d: %w", id, casedef.ErrNotFound))
		}
		return rollback(tx, fmt.Errorf("lookup template: %w", err))
	}
	now := time.Now().UTC()
	q = util.Rebind(r.Driver, fmt.Sprintf("UPDATE %s SET name = ?, description = ?, category = ?, updated_at = ? WHERE id = ?", r.table("templates")))
	if _, err := tx.ExecContext(ctx, q, tpl.Name, tpl.Description, tpl.Category, now, id); err != nil {
		if util.IsUniqueViolation(err) {
			return rollback(tx, fmt.Errorf("template %q: %w", tpl.Name, casedef.ErrDuplicateName))
		}
		return rollback(tx, fmt.Errorf("update template: %w", err))
	}
	if err := r.deleteFields(ctx, tx, id); err != nil {
		return rollback(tx, err)
	}
	if err := r.insertFields(ctx, tx, id, tpl.Fields, now); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a template with its fields and dependency rules. It fails
// with ErrInUse while any case references the template.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var inUse int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE template_id = ?", r.table("cases")))
	if err := tx.QueryRowContext(ctx, q, id).Scan(&inUse); err != nil {
		return rollback(tx, fmt.Errorf("count cases: %w", err))
	}
	if inUse > 0 {
		return rollback(tx, fmt.Errorf("template %d: %w", id, casedef.ErrInUse))
	}
	if err := r.deleteFields(ctx, tx, id); err != nil {
		return rollback(tx, err)
	}
	q = util.Rebind(r.Driver, fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table("templates")))
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return rollback(tx, fmt.Errorf("delete template: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rollback(tx, fmt.Errorf("template %d: %w", id, casedef.ErrNotFound))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns a template with fields sorted by display_order and each field's
// dependency rules attached.
func (r *Repo) Get(ctx context.Context, id int64) (casedef.Template, error) {
	var tpl casedef.Template
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id, name, description, category, template_config, created_at, updated_at, created_by FROM %s WHERE id = ?", r.table("templates")))
	var (
		desc, cat, createdBy sql.NullString
		cfgJSON              sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&tpl.ID, &tpl.Name, &desc, &cat, &cfgJSON, &createdAt, &updatedAt, &createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return casedef.Template{}, fmt.Errorf("template %d: %w", id, casedef.ErrNotFound)
		}
		return casedef.Template{}, fmt.Errorf("query template: %w", err)
	}
	tpl.Description = desc.String
	tpl.Category = cat.String
	tpl.CreatedBy = createdBy.String
	tpl.CreatedAt = createdAt.Time
	tpl.UpdatedAt = updatedAt.Time
	if cfgJSON.Valid && cfgJSON.String != "" {
		if err := json.Unmarshal([]byte(cfgJSON.String), &tpl.Config); err != nil {
			return casedef.Template{}, fmt.Errorf("decode template config: %w", err)
		}
	}
	fields, err := r.loadFields(ctx, id)
	if err != nil {
		return casedef.Template{}, err
	}
	tpl.Fields = fields
	return tpl, nil
}

// List returns template summaries with field counts, newest first.
func (r *Repo) List(ctx context.Context) ([]casedef.TemplateSummary, error) {
	q := fmt.Sprintf(`SELECT t.id, t.name, t.description, t.category, t.created_at, COUNT(f.id) AS field_count
FROM %s t
LEFT JOIN %s f ON f.template_id = t.id
GROUP BY t.id, t.name, t.description, t.category, t.created_at
ORDER BY t.created_at DESC`, r.table("templates"), r.table("template_fields"))
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()
	var res []casedef.TemplateSummary
	for rows.Next() {
		var (
			s         casedef.TemplateSummary
			desc, cat sql.NullString
			createdAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Name, &desc, &cat, &createdAt, &s.FieldCount); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		s.Description = desc.String
		s.Category = cat.String
		s.CreatedAt = createdAt.Time
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return res, nil
}

// CountFields returns the number of defined fields per template name, used by
// the metrics gauge.
func (r *Repo) CountFields(ctx context.Context) (map[string]int, error) {
	if r == nil || r.DB == nil {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT t.name, COUNT(*) AS cnt
FROM %s f
JOIN %s t ON t.id = f.template_id
GROUP BY t.name`, r.table("template_fields"), r.table("templates"))
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var (
			name string
			cnt  int
		)
		if err := rows.Scan(&name, &cnt); err != nil {
			return nil, err
		}
		res[name] = cnt
	}
	return res, rows.Err()
}

func validateFields(fields []casedef.Field) error {
	seen := make(map[string]struct{}, len(fields))
	var errs []string
	for _, f := range fields {
		if f.FieldID == "" {
			errs = append(errs, "field id must not be empty")
			continue
		}
		if _, dup := seen[f.FieldID]; dup {
			errs = append(errs, fmt.Sprintf("field %q defined more than once", f.FieldID))
		}
		seen[f.FieldID] = struct{}{}
		if f.Type != "" && !f.Type.Valid() {
			errs = append(errs, fmt.Sprintf("field %q has unknown type %q", f.FieldID, f.Type))
		}
		for _, dep := range f.Dependencies {
			if !dep.Condition.Valid() {
				errs = append(errs, fmt.Sprintf("field %q has unknown condition %q", f.FieldID, dep.Condition))
			}
			if !dep.Action.Valid() {
				errs = append(errs, fmt.Sprintf("field %q has unknown action %q", f.FieldID, dep.Action))
			}
		}
	}
	// dependency parents must be defined in the same template
	for _, f := range fields {
		for _, dep := range f.Dependencies {
			if _, ok := seen[dep.ParentField]; !ok {
				errs = append(errs, fmt.Sprintf("field %q depends on undefined field %q", f.FieldID, dep.ParentField))
			}
		}
	}
	if len(errs) > 0 {
		return &casedef.ValidationError{Errors: errs}
	}
	return nil
}

func (r *Repo) insertFields(ctx context.Context, tx *sql.Tx, templateID int64, fields []casedef.Field, now time.Time) error {
	rowIDs := make(map[string]int64, len(fields))
	for order, f := range fields {
		cfg := f.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode field config: %w", err)
		}
		var valJSON []byte
		if f.Validation != nil {
			if valJSON, err = json.Marshal(f.Validation); err != nil {
				return fmt.Errorf("encode validation rules: %w", err)
			}
		}
		id, err := r.insertReturningID(ctx, tx,
			fmt.Sprintf("INSERT INTO %s (template_id, field_id, field_name, field_type, is_required, display_order, field_config, validation_rules, data_table_id, parent_field_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", r.table("template_fields")),
			templateID, f.FieldID, f.Name, string(f.Type), f.Required, order, string(cfgJSON), nullableJSON(valJSON), f.DataTableID, f.ParentFieldID, now)
		if err != nil {
			return fmt.Errorf("insert field %q: %w", f.FieldID, err)
		}
		rowIDs[f.FieldID] = id
	}
	for _, f := range fields {
		for _, dep := range f.Dependencies {
			parentID, ok := rowIDs[dep.ParentField]
			if !ok {
				// validateFields already rejected this; guard anyway
				continue
			}
			var cfgJSON []byte
			if dep.ActionConfig != nil {
				var err error
				if cfgJSON, err = json.Marshal(dep.ActionConfig); err != nil {
					return fmt.Errorf("encode action config: %w", err)
				}
			}
			q := util.Rebind(r.Driver, fmt.Sprintf("INSERT INTO %s (dependent_field_id, parent_field_id, condition_type, condition_value, action_type, action_config, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)", r.table("field_dependencies")))
			if _, err := tx.ExecContext(ctx, q, rowIDs[f.FieldID], parentID, string(dep.Condition), dep.Value, string(dep.Action), nullableJSON(cfgJSON), now); err != nil {
				return fmt.Errorf("insert dependency for %q: %w", f.FieldID, err)
			}
		}
	}
	return nil
}

func (r *Repo) deleteFields(ctx context.Context, tx *sql.Tx, templateID int64) error {
	q := util.Rebind(r.Driver, fmt.Sprintf("DELETE FROM %s WHERE dependent_field_id IN (SELECT id FROM %s WHERE template_id = ?)", r.table("field_dependencies"), r.table("template_fields")))
	if _, err := tx.ExecContext(ctx, q, templateID); err != nil {
		return fmt.Errorf("delete dependencies: %w", err)
	}
	q = util.Rebind(r.Driver, fmt.Sprintf("DELETE FROM %s WHERE template_id = ?", r.table("template_fields")))
	if _, err := tx.ExecContext(ctx, q, templateID); err != nil {
		return fmt.Errorf("delete fields: %w", err)
	}
	return nil
}

func (r *Repo) loadFields(ctx context.Context, templateID int64) ([]casedef.Field, error) {
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id, field_id, field_name, field_type, is_required, display_order, field_config, validation_rules, data_table_id, parent_field_id FROM %s WHERE template_id = ? ORDER BY display_order", r.table("template_fields")))
	rows, err := r.DB.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()
	var fields []casedef.Field
	rowIndex := make(map[int64]int)
	for rows.Next() {
		var (
			f                casedef.Field
			ftype            string
			cfgJSON, valJSON sql.NullString
			dataTableID      sql.NullInt64
			parentFieldID    sql.NullInt64
		)
		if err := rows.Scan(&f.DBID, &f.FieldID, &f.Name, &ftype, &f.Required, &f.DisplayOrder, &cfgJSON, &valJSON, &dataTableID, &parentFieldID); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		f.Type = casedef.FieldType(ftype)
		if cfgJSON.Valid && cfgJSON.String != "" {
			if err := json.Unmarshal([]byte(cfgJSON.String), &f.Config); err != nil {
				return nil, fmt.Errorf("decode field config for %q: %w", f.FieldID, err)
			}
		}
		if valJSON.Valid && valJSON.String != "" {
			var vr casedef.ValidationRules
			if err := json.Unmarshal([]byte(valJSON.String), &vr); err != nil {
				return nil, fmt.Errorf("decode validation rules for %q: %w", f.FieldID, err)
			}
			f.Validation = &vr
		}
		if dataTableID.Valid {
			v := dataTableID.Int64
			f.DataTableID = &v
		}
		if parentFieldID.Valid {
			v := parentFieldID.Int64
			f.ParentFieldID = &v
		}
		rowIndex[f.DBID] = len(fields)
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	q = util.Rebind(r.Driver, fmt.Sprintf(`SELECT fd.id, fd.dependent_field_id, pf.field_id, fd.condition_type, fd.condition_value, fd.action_type, fd.action_config
FROM %s fd
JOIN %s pf ON pf.id = fd.parent_field_id
JOIN %s df ON df.id = fd.dependent_field_id
WHERE df.template_id = ?
ORDER BY fd.id`, r.table("field_dependencies"), r.table("template_fields"), r.table("template_fields")))
	depRows, err := r.DB.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer depRows.Close()
	for depRows.Next() {
		var (
			dep          casedef.DependencyRule
			dependentID  int64
			cond, action string
			value        sql.NullString
			cfgJSON      sql.NullString
		)
		if err := depRows.Scan(&dep.ID, &dependentID, &dep.ParentField, &cond, &value, &action, &cfgJSON); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		dep.Condition = casedef.ConditionType(cond)
		dep.Action = casedef.ActionType(action)
		dep.Value = value.String
		if cfgJSON.Valid && cfgJSON.String != "" {
			if err := json.Unmarshal([]byte(cfgJSON.String), &dep.ActionConfig); err != nil {
				return nil, fmt.Errorf("decode action config: %w", err)
			}
		}
		if idx, ok := rowIndex[dependentID]; ok {
			fields[idx].Dependencies = append(fields[idx].Dependencies, dep)
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return fields, nil
}

// insertReturningID handles the LastInsertId gap on postgres via RETURNING.
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

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return fmt.Errorf("rollback: %v: %w", rbErr, err)
	}
	return err
}
