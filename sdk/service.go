package sdk

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/caseflow-dev/caseflow/internal/casestore"
	"github.com/caseflow-dev/caseflow/internal/datatable"
	"github.com/caseflow-dev/caseflow/internal/depeval"
	"github.com/caseflow-dev/caseflow/internal/template"
	"github.com/caseflow-dev/caseflow/pkg/casedef"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// Service exposes the case-management core for embedding without the HTTP
// layer: template and lookup-table management, dependency evaluation and the
// case lifecycle.
type Service interface {
	// CreateTemplate stores a template with its fields and dependency rules.
	CreateTemplate(ctx context.Context, tpl casedef.Template, createdBy string) (int64, error)
	// UpdateTemplate replaces a template's metadata and full field set.
	UpdateTemplate(ctx context.Context, id int64, tpl casedef.Template, updatedBy string) error
	// DeleteTemplate removes a template unless cases reference it.
	DeleteTemplate(ctx context.Context, id int64) error
	// GetTemplate returns a template with fields and dependency rules.
	GetTemplate(ctx context.Context, id int64) (casedef.Template, error)
	// ListTemplates returns template summaries with field counts.
	ListTemplates(ctx context.Context) ([]casedef.TemplateSummary, error)

	// CreateDataTable stores a lookup table with its columns.
	CreateDataTable(ctx context.Context, dt casedef.DataTable, createdBy string) (int64, error)
	// UpdateDataTable replaces a lookup table's metadata and column set.
	UpdateDataTable(ctx context.Context, id int64, dt casedef.DataTable) error
	// DeleteDataTable removes a lookup table unless template fields reference it.
	DeleteDataTable(ctx context.Context, id int64) error
	// GetDataTable returns a lookup table with its columns.
	GetDataTable(ctx context.Context, id int64) (casedef.DataTable, error)
	// ListDataTables returns table summaries with active record counts.
	ListDataTables(ctx context.Context) ([]casedef.TableSummary, error)
	// TableColumns returns a lookup table's column definitions.
	TableColumns(ctx context.Context, tableID int64) ([]casedef.Column, error)
	// AddRecord appends one record to a lookup table.
	AddRecord(ctx context.Context, tableID int64, data map[string]any, createdBy string) (int64, error)
	// SearchRecords finds active records by substring match.
	SearchRecords(ctx context.Context, tableID int64, q string, limit int) ([]casedef.SearchHit, error)

	// EvaluateDependencies runs the dependency rules of a template against a
	// candidate payload without persisting anything.
	EvaluateDependencies(ctx context.Context, templateID int64, caseData map[string]any) (depeval.Result, error)
	// FieldOptions resolves the selectable options for one field. parentValue
	// keys optionsMap lookups for dependent fields.
	FieldOptions(ctx context.Context, templateID int64, fieldID, q, parentValue string, limit int) ([]depeval.Option, error)

	// CreateCase validates case data and persists a new case.
	CreateCase(ctx context.Context, c casedef.Case, createdBy string) (int64, string, error)
	// UpdateCaseField merges one field value and records the change.
	UpdateCaseField(ctx context.Context, caseID int64, field string, oldValue, newValue any, updatedBy string) error
	// UpdateCaseStatus transitions the case lifecycle state.
	UpdateCaseStatus(ctx context.Context, caseID int64, status casedef.CaseStatus, comment, updatedBy string) error
	// GetCase returns one case with its payload.
	GetCase(ctx context.Context, id int64) (casedef.Case, error)
	// ListCases returns cases matching the filter, newest first.
	ListCases(ctx context.Context, f casestore.Filter) ([]casedef.Case, error)
	// CaseHistory returns a case's audit trail.
	CaseHistory(ctx context.Context, caseID int64) ([]casedef.HistoryEntry, error)

	// ExportTemplates dumps all templates as YAML.
	ExportTemplates(ctx context.Context) ([]byte, error)
	// ApplyTemplates creates templates from YAML, skipping existing names.
	ApplyTemplates(ctx context.Context, data []byte, actor string) (ApplyReport, error)

	// Migrate upgrades or downgrades the schema. target=0 means latest.
	Migrate(ctx context.Context, cfg DBConfig, target int) error
	// SchemaVersion returns the current schema version.
	SchemaVersion(ctx context.Context, cfg DBConfig) (int, error)
}

// New returns a Service backed by the given database connection.
func New(cfg ServiceConfig) Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	dialect := util.DialectFromDriver(cfg.Driver)
	templates := &template.Repo{DB: cfg.DB, Driver: cfg.Driver, Dialect: dialect, TablePrefix: cfg.TablePrefix}
	tables := &datatable.Repo{DB: cfg.DB, Driver: cfg.Driver, Dialect: dialect, TablePrefix: cfg.TablePrefix}
	cases := &casestore.Repo{DB: cfg.DB, Driver: cfg.Driver, Dialect: dialect, TablePrefix: cfg.TablePrefix, Templates: templates, ValidateOnUpdate: cfg.ValidateOnUpdate}
	return &service{logger: logger, db: cfg.DB, driver: cfg.Driver, templates: templates, tables: tables, cases: cases}
}

type service struct {
	logger    *zap.SugaredLogger
	db        *sql.DB
	driver    string
	templates *template.Repo
	tables    *datatable.Repo
	cases     *casestore.Repo
}

func (s *service) CreateTemplate(ctx context.Context, tpl casedef.Template, createdBy string) (int64, error) {
	id, err := s.templates.Create(ctx, tpl, createdBy)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("template created", "id", id, "name", tpl.Name)
	return id, nil
}

func (s *service) UpdateTemplate(ctx context.Context, id int64, tpl casedef.Template, updatedBy string) error {
	return s.templates.Update(ctx, id, tpl, updatedBy)
}

func (s *service) DeleteTemplate(ctx context.Context, id int64) error {
	return s.templates.Delete(ctx, id)
}

func (s *service) GetTemplate(ctx context.Context, id int64) (casedef.Template, error) {
	return s.templates.Get(ctx, id)
}

func (s *service) ListTemplates(ctx context.Context) ([]casedef.TemplateSummary, error) {
	return s.templates.List(ctx)
}

func (s *service) CreateDataTable(ctx context.Context, dt casedef.DataTable, createdBy string) (int64, error) {
	id, err := s.tables.Create(ctx, dt, createdBy)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("data table created", "id", id, "name", dt.Name)
	return id, nil
}

func (s *service) UpdateDataTable(ctx context.Context, id int64, dt casedef.DataTable) error {
	return s.tables.Update(ctx, id, dt)
}

func (s *service) DeleteDataTable(ctx context.Context, id int64) error {
	return s.tables.Delete(ctx, id)
}

func (s *service) GetDataTable(ctx context.Context, id int64) (casedef.DataTable, error) {
	return s.tables.Get(ctx, id)
}

func (s *service) ListDataTables(ctx context.Context) ([]casedef.TableSummary, error) {
	return s.tables.List(ctx)
}

func (s *service) TableColumns(ctx context.Context, tableID int64) ([]casedef.Column, error) {
	dt, err := s.tables.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return dt.Columns, nil
}

func (s *service) AddRecord(ctx context.Context, tableID int64, data map[string]any, createdBy string) (int64, error) {
	return s.tables.AddRecord(ctx, tableID, data, createdBy)
}

func (s *service) SearchRecords(ctx context.Context, tableID int64, q string, limit int) ([]casedef.SearchHit, error) {
	return s.tables.Search(ctx, tableID, q, "", limit)
}

func (s *service) EvaluateDependencies(ctx context.Context, templateID int64, caseData map[string]any) (depeval.Result, error) {
	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return depeval.Result{}, err
	}
	return depeval.Evaluate(tpl, caseData), nil
}

func (s *service) FieldOptions(ctx context.Context, templateID int64, fieldID, q, parentValue string, limit int) ([]depeval.Option, error) {
	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	for _, f := range tpl.Fields {
		if f.FieldID == fieldID {
			return depeval.OptionsForField(ctx, f, s.tables, q, parentValue, limit)
		}
	}
	return nil, ErrNotFound
}

func (s *service) CreateCase(ctx context.Context, c casedef.Case, createdBy string) (int64, string, error) {
	id, number, err := s.cases.Create(ctx, c, createdBy)
	if err != nil {
		return 0, "", err
	}
	s.logger.Infow("case created", "id", id, "number", number)
	return id, number, nil
}

func (s *service) UpdateCaseField(ctx context.Context, caseID int64, field string, oldValue, newValue any, updatedBy string) error {
	return s.cases.UpdateField(ctx, caseID, field, oldValue, newValue, updatedBy)
}

func (s *service) UpdateCaseStatus(ctx context.Context, caseID int64, status casedef.CaseStatus, comment, updatedBy string) error {
	return s.cases.UpdateStatus(ctx, caseID, status, comment, updatedBy)
}

func (s *service) GetCase(ctx context.Context, id int64) (casedef.Case, error) {
	return s.cases.Get(ctx, id)
}

func (s *service) ListCases(ctx context.Context, f casestore.Filter) ([]casedef.Case, error) {
	return s.cases.List(ctx, f)
}

func (s *service) CaseHistory(ctx context.Context, caseID int64) ([]casedef.HistoryEntry, error) {
	return s.cases.History(ctx, caseID)
}
