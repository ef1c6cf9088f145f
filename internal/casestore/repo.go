package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"

	"github.com/caseflow-dev/caseflow/internal/depeval"
	"github.com/caseflow-dev/caseflow/internal/metrics"
	"github.com/caseflow-dev/caseflow/pkg/casedef"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// TemplateGetter resolves the template a case is created against.
type TemplateGetter interface {
	Get(ctx context.Context, id int64) (casedef.Template, error)
}

// Repo persists cases and their append-only history.
type Repo struct {
	DB          *sql.DB
	Driver      string
	Dialect     ormdriver.Dialect
	TablePrefix string
	Templates   TemplateGetter
	// ValidateOnUpdate re-runs the dependency evaluator on UpdateField.
	// Off by default: field updates are trusted partial edits.
	ValidateOnUpdate bool
}

const caseNumberAttempts = 5

func (r *Repo) table(name string) string {
	return casedef.TableName(r.TablePrefix, name)
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	Status     string
	AssignedTo string
	TemplateID int64
	Limit      int
	Offset     int
}

// Create validates case_data against the template's dependency rules, then
// inserts the case with a generated case number and a created history entry
// in one transaction. The stored payload is the evaluator's working copy, so
// set_value actions take effect before persistence.
func (r *Repo) Create(ctx context.Context, c casedef.Case, createdBy string) (int64, string, error) {
	tpl, err := r.Templates.Get(ctx, c.TemplateID)
	if err != nil {
		return 0, "", err
	}
	if c.Status == "" {
		c.Status = casedef.StatusDraft
	}
	if c.Priority == "" {
		c.Priority = casedef.PriorityMedium
	}
	var errs []string
	if !c.Status.Valid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", c.Status))
	}
	if !c.Priority.Valid() {
		errs = append(errs, fmt.Sprintf("unknown priority %q", c.Priority))
	}
	if c.Title == "" {
		errs = append(errs, "title is required")
	}
	eval := depeval.Evaluate(tpl, c.Data)
	errs = append(errs, eval.Errors...)
	if len(errs) > 0 {
		return 0, "", &casedef.ValidationError{Errors: errs}
	}

	dataJSON, err := json.Marshal(eval.Data)
	if err != nil {
		return 0, "", fmt.Errorf("encode case data: %w", err)
	}
	var metaJSON any
	if c.Metadata != nil {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, "", fmt.Errorf("encode metadata: %w", err)
		}
		metaJSON = string(b)
	}

	// The case number is derived from the row count, so a concurrent insert
	// can collide on the unique constraint. Retry with a bumped sequence.
	var lastErr error
	for attempt := 0; attempt < caseNumberAttempts; attempt++ {
		id, number, err := r.insertCase(ctx, c, string(dataJSON), metaJSON, createdBy, attempt)
		if err == nil {
			metrics.CasesCreated.WithLabelValues(tpl.Name).Inc()
			return id, number, nil
		}
		if !util.IsUniqueViolation(err) {
			return 0, "", err
		}
		lastErr = err
	}
	return 0, "", fmt.Errorf("allocate case number: %w", lastErr)
}

func (r *Repo) insertCase(ctx context.Context, c casedef.Case, dataJSON string, metaJSON any, createdBy string, bump int) (int64, string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", fmt.Errorf("begin tx: %w", err)
	}
	var count int64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table("cases"))).Scan(&count); err != nil {
		return 0, "", rollback(tx, fmt.Errorf("count cases: %w", err))
	}
	number := fmt.Sprintf("CASE-%06d", count+1+int64(bump))
	now := time.Now().UTC()
	id, err := r.insertReturningID(ctx, tx,
		fmt.Sprintf("INSERT INTO %s (case_number, template_id, title, description, status, priority, assigned_to, case_data, metadata, tags, due_date, created_at, updated_at, created_by, last_modified_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", r.table("cases")),
		number, c.TemplateID, c.Title, c.Description, string(c.Status), string(c.Priority), c.AssignedTo, dataJSON, metaJSON, c.Tags, c.DueDate, now, now, createdBy, createdBy)
	if err != nil {
		return 0, "", rollback(tx, fmt.Errorf("insert case: %w", err))
	}
	if err := r.appendHistory(ctx, tx, id, casedef.HistoryEntry{
		Action:    casedef.HistoryCreated,
		NewValue:  number,
		Comment:   "Case created",
		CreatedBy: createdBy,
	}, now); err != nil {
		return 0, "", rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, "", fmt.Errorf("commit: %w", err)
	}
	return id, number, nil
}

// UpdateField merges one field value into case_data and appends a
// field_changed history entry.
func (r *Repo) UpdateField(ctx context.Context, caseID int64, fieldName string, oldValue, newValue any, updatedBy string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var (
		templateID int64
		raw        string
	)
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT template_id, case_data FROM %s WHERE id = ?", r.table("cases")))
	if err := tx.QueryRowContext(ctx, q, caseID).Scan(&templateID, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, fmt.Errorf("case %d: %w", caseID, casedef.ErrNotFound))
		}
		return rollback(tx, fmt.Errorf("lookup case: %w", err))
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return rollback(tx, fmt.Errorf("decode case data: %w", err))
	}
	if data == nil {
		data = map[string]any{}
	}
	data[fieldName] = newValue

	if r.ValidateOnUpdate {
		tpl, err := r.Templates.Get(ctx, templateID)
		if err != nil {
			return rollback(tx, err)
		}
		if eval := depeval.Evaluate(tpl, data); !eval.Valid {
			return rollback(tx, &casedef.ValidationError{Errors: eval.Errors})
		}
	}

	updated, err := json.Marshal(data)
	if err != nil {
		return rollback(tx, fmt.Errorf("encode case data: %w", err))
	}
	now := time.Now().UTC()
	q = util.Rebind(r.Driver, fmt.Sprintf("UPDATE %s SET case_data = ?, updated_at = ?, last_modified_by = ? WHERE id = ?", r.table("cases")))
	if _, err := tx.ExecContext(ctx, q, string(updated), now, updatedBy, caseID); err != nil {
		return rollback(tx, fmt.Errorf("update case: %w", err))
	}
	if err := r.appendHistory(ctx, tx, caseID, casedef.HistoryEntry{
		Action:    casedef.HistoryFieldChanged,
		FieldName: fieldName,
		OldValue:  stringifyValue(oldValue),
		NewValue:  stringifyValue(newValue),
		CreatedBy: updatedBy,
	}, now); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateStatus transitions the case status and appends a status_changed entry.
func (r *Repo) UpdateStatus(ctx context.Context, caseID int64, status casedef.CaseStatus, comment, updatedBy string) error {
	if !status.Valid() {
		return &casedef.ValidationError{Errors: []string{fmt.Sprintf("unknown status %q", status)}}
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var old string
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT status FROM %s WHERE id = ?", r.table("cases")))
	if err := tx.QueryRowContext(ctx, q, caseID).Scan(&old); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, fmt.Errorf("case %d: %w", caseID, casedef.ErrNotFound))
		}
		return rollback(tx, fmt.Errorf("lookup case: %w", err))
	}
	now := time.Now().UTC()
	q = util.Rebind(r.Driver, fmt.Sprintf("UPDATE %s SET status = ?, updated_at = ?, last_modified_by = ? WHERE id = ?", r.table("cases")))
	if _, err := tx.ExecContext(ctx, q, string(status), now, updatedBy, caseID); err != nil {
		return rollback(tx, fmt.Errorf("update status: %w", err))
	}
	if err := r.appendHistory(ctx, tx, caseID, casedef.HistoryEntry{
		Action:    casedef.HistoryStatusChanged,
		FieldName: "status",
		OldValue:  old,
		NewValue:  string(status),
		Comment:   comment,
		CreatedBy: updatedBy,
	}, now); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Assign sets the assignee and appends an assigned history entry.
func (r *Repo) Assign(ctx context.Context, caseID int64, assignee, updatedBy string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var old sql.NullString
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT assigned_to FROM %s WHERE id = ?", r.table("cases")))
	if err := tx.QueryRowContext(ctx, q, caseID).Scan(&old); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, fmt.Errorf("case %d: %w", caseID, casedef.ErrNotFound))
		}
		return rollback(tx, fmt.Errorf("lookup case: %w", err))
	}
	now := time.Now().UTC()
	q = util.Rebind(r.Driver, fmt.Sprintf("UPDATE %s SET assigned_to = ?, updated_at = ?, last_modified_by = ? WHERE id = ?", r.table("cases")))
	if _, err := tx.ExecContext(ctx, q, assignee, now, updatedBy, caseID); err != nil {
		return rollback(tx, fmt.Errorf("update assignee: %w", err))
	}
	if err := r.appendHistory(ctx, tx, caseID, casedef.HistoryEntry{
		Action:    casedef.HistoryAssigned,
		FieldName: "assigned_to",
		OldValue:  old.String,
		NewValue:  assignee,
		CreatedBy: updatedBy,
	}, now); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AddComment appends a comment_added history entry without touching the case row.
func (r *Repo) AddComment(ctx context.Context, caseID int64, comment, createdBy string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var found int64
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id FROM %s WHERE id = ?", r.table("cases")))
	if err := tx.QueryRowContext(ctx, q, caseID).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, fmt.Errorf("case %d: %w", caseID, casedef.ErrNotFound))
		}
		return rollback(tx, fmt.Errorf("lookup case: %w", err))
	}
	if err := r.appendHistory(ctx, tx, caseID, casedef.HistoryEntry{
		Action:    casedef.HistoryCommentAdded,
		Comment:   comment,
		CreatedBy: createdBy,
	}, time.Now().UTC()); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns one case with its decoded payload and the template name.
func (r *Repo) Get(ctx context.Context, id int64) (casedef.Case, error) {
	q := util.Rebind(r.Driver, fmt.Sprintf(`SELECT c.id, c.case_number, c.template_id, t.name, c.title, c.description, c.status, c.priority, c.assigned_to, c.case_data, c.metadata, c.tags, c.due_date, c.created_at, c.updated_at, c.created_by, c.last_modified_by
FROM %s c
JOIN %s t ON t.id = c.template_id
WHERE c.id = ?`, r.table("cases"), r.table("templates")))
	c, err := scanCase(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return casedef.Case{}, fmt.Errorf("case %d: %w", id, casedef.ErrNotFound)
		}
		return casedef.Case{}, err
	}
	return c, nil
}

// List returns cases matching the filter ordered by created_at descending.
func (r *Repo) List(ctx context.Context, f Filter) ([]casedef.Case, error) {
	q := query.New(r.DB, r.table("cases"), r.Dialect).
		Select("id", "case_number", "template_id", "title", "description", "status", "priority", "assigned_to", "case_data", "tags", "due_date", "created_at", "updated_at", "created_by").
		OrderBy("created_at", "desc").
		WithContext(ctx)
	if f.Status != "" {
		q.Where("status", f.Status)
	}
	if f.AssignedTo != "" {
		q.Where("assigned_to", f.AssignedTo)
	}
	if f.TemplateID != 0 {
		q.Where("template_id", f.TemplateID)
	}
	q.Limit(util.SanitizeLimit(f.Limit))
	if f.Offset > 0 {
		q.Offset(f.Offset)
	}

	type row struct {
		ID         int64          `db:"id"`
		Number     string         `db:"case_number"`
		TemplateID int64          `db:"template_id"`
		Title      string         `db:"title"`
		Desc       sql.NullString `db:"description"`
		Status     string         `db:"status"`
		Priority   string         `db:"priority"`
		AssignedTo sql.NullString `db:"assigned_to"`
		Data       string         `db:"case_data"`
		Tags       sql.NullString `db:"tags"`
		DueDate    sql.NullString `db:"due_date"`
		CreatedAt  sql.NullTime   `db:"created_at"`
		UpdatedAt  sql.NullTime   `db:"updated_at"`
		CreatedBy  sql.NullString `db:"created_by"`
	}
	var rows []row
	if err := q.Get(&rows); err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	res := make([]casedef.Case, 0, len(rows))
	for _, rw := range rows {
		c := casedef.Case{
			ID:          rw.ID,
			CaseNumber:  rw.Number,
			TemplateID:  rw.TemplateID,
			Title:       rw.Title,
			Description: rw.Desc.String,
			Status:      casedef.CaseStatus(rw.Status),
			Priority:    casedef.CasePriority(rw.Priority),
			AssignedTo:  rw.AssignedTo.String,
			Tags:        rw.Tags.String,
			DueDate:     rw.DueDate.String,
			CreatedAt:   rw.CreatedAt.Time,
			UpdatedAt:   rw.UpdatedAt.Time,
			CreatedBy:   rw.CreatedBy.String,
		}
		if rw.Data != "" {
			if err := json.Unmarshal([]byte(rw.Data), &c.Data); err != nil {
				return nil, fmt.Errorf("decode case %d data: %w", rw.ID, err)
			}
		}
		res = append(res, c)
	}
	return res, nil
}

// History returns a case's audit trail, oldest first.
func (r *Repo) History(ctx context.Context, caseID int64) ([]casedef.HistoryEntry, error) {
	q := util.Rebind(r.Driver, fmt.Sprintf("SELECT id, case_id, action_type, field_name, old_value, new_value, comment, created_at, created_by FROM %s WHERE case_id = ? ORDER BY id", r.table("case_history")))
	rows, err := r.DB.QueryContext(ctx, q, caseID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	var res []casedef.HistoryEntry
	for rows.Next() {
		var (
			e                          casedef.HistoryEntry
			action                     string
			field, oldV, newV, comment sql.NullString
			createdAt                  sql.NullTime
			createdBy                  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CaseID, &action, &field, &oldV, &newV, &comment, &createdAt, &createdBy); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Action = casedef.HistoryAction(action)
		e.FieldName = field.String
		e.OldValue = oldV.String
		e.NewValue = newV.String
		e.Comment = comment.String
		e.CreatedAt = createdAt.Time
		e.CreatedBy = createdBy.String
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r *Repo) appendHistory(ctx context.Context, tx *sql.Tx, caseID int64, e casedef.HistoryEntry, now time.Time) error {
	q := util.Rebind(r.Driver, fmt.Sprintf("INSERT INTO %s (case_id, action_type, field_name, old_value, new_value, comment, created_at, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", r.table("case_history")))
	if _, err := tx.ExecContext(ctx, q, caseID, string(e.Action), e.FieldName, e.OldValue, e.NewValue, e.Comment, now, e.CreatedBy); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	metrics.HistoryWrites.WithLabelValues(string(e.Action)).Inc()
	return nil
}

func (r *Repo) insertReturningID(ctx context.Context, tx *sql.Tx, q string, args ...any) (int64, error) {
	if r.Driver == "postgres" {
		var id int64
		err := tx.QueryRowContext(ctx, util.Rebind(r.Driver, q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, util.Rebind(r.Driver, q), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanCase(row *sql.Row) (casedef.Case, error) {
	var (
		c                          casedef.Case
		status, priority           string
		desc, assigned, tags       sql.NullString
		due, createdBy, modifiedBy sql.NullString
		dataRaw                    string
		metaRaw                    sql.NullString
		createdAt, updatedAt       sql.NullTime
	)
	err := row.Scan(&c.ID, &c.CaseNumber, &c.TemplateID, &c.TemplateName, &c.Title, &desc, &status, &priority, &assigned, &dataRaw, &metaRaw, &tags, &due, &createdAt, &updatedAt, &createdBy, &modifiedBy)
	if err != nil {
		return casedef.Case{}, err
	}
	c.Description = desc.String
	c.Status = casedef.CaseStatus(status)
	c.Priority = casedef.CasePriority(priority)
	c.AssignedTo = assigned.String
	c.Tags = tags.String
	c.DueDate = due.String
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	c.CreatedBy = createdBy.String
	c.ModifiedBy = modifiedBy.String
	if dataRaw != "" {
		if err := json.Unmarshal([]byte(dataRaw), &c.Data); err != nil {
			return casedef.Case{}, fmt.Errorf("decode case data: %w", err)
		}
	}
	if metaRaw.Valid && metaRaw.String != "" {
		if err := json.Unmarshal([]byte(metaRaw.String), &c.Metadata); err != nil {
			return casedef.Case{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return c, nil
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return fmt.Errorf("rollback: %v: %w", rbErr, err)
	}
	return err
}
