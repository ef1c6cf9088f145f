package casestore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

type stubTemplates struct {
	tpl casedef.Template
	err error
}

func (s stubTemplates) Get(context.Context, int64) (casedef.Template, error) {
	return s.tpl, s.err
}

func assetTemplate() casedef.Template {
	return casedef.Template{
		ID:   1,
		Name: "IT Asset Request",
		Fields: []casedef.Field{
			{FieldID: "category", Name: "Category", Type: casedef.FieldSelect, Required: true},
			{FieldID: "asset_tag", Name: "Asset Tag", Type: casedef.FieldText, Dependencies: []casedef.DependencyRule{
				{ParentField: "category", Condition: casedef.CondEquals, Value: "HW", Action: casedef.ActionRequire},
			}},
		},
	}
}

func TestCreateGeneratesSequentialCaseNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cms_cases")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO cms_cases").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO cms_case_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_", Templates: stubTemplates{tpl: assetTemplate()}}
	id, number, err := r.Create(context.Background(), casedef.Case{
		TemplateID: 1,
		Title:      "New laptop",
		Data:       map[string]any{"category": "SW"},
	}, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 5 {
		t.Fatalf("expected id 5, got %d", id)
	}
	if number != "CASE-000005" {
		t.Fatalf("expected CASE-000005, got %s", number)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	r := &Repo{Driver: "sqlite3", TablePrefix: "cms_", Templates: stubTemplates{tpl: assetTemplate()}}
	_, _, err := r.Create(context.Background(), casedef.Case{
		TemplateID: 1,
		Title:      "Broken",
		Data:       map[string]any{"category": "HW"}, // asset_tag required but missing
	}, "alice")
	verr, ok := casedef.AsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) == 0 {
		t.Fatal("expected field-level messages")
	}
}

func TestCreateRetriesOnCaseNumberCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// first attempt collides on the unique case_number
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cms_cases")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO cms_cases").
		WillReturnError(errors.New("UNIQUE constraint failed: cms_cases.case_number"))
	mock.ExpectRollback()

	// retry bumps the sequence
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cms_cases")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec("INSERT INTO cms_cases").
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectExec("INSERT INTO cms_case_history").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_", Templates: stubTemplates{tpl: assetTemplate()}}
	_, number, err := r.Create(context.Background(), casedef.Case{
		TemplateID: 1,
		Title:      "Race",
		Data:       map[string]any{"category": "SW"},
	}, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if number != "CASE-000007" {
		t.Fatalf("expected bumped CASE-000007, got %s", number)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateFieldAppendsHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT template_id, case_data FROM cms_cases WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"template_id", "case_data"}).AddRow(1, `{"category":"SW"}`))
	mock.ExpectExec("UPDATE cms_cases SET case_data").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cms_case_history").
		WithArgs(int64(9), "field_changed", "category", "SW", "HW", "", sqlmock.AnyArg(), "bob").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_", Templates: stubTemplates{tpl: assetTemplate()}}
	if err := r.UpdateField(context.Background(), 9, "category", "SW", "HW", "bob"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateFieldMissingCase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT template_id, case_data FROM cms_cases WHERE id = ?")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"template_id", "case_data"}))
	mock.ExpectRollback()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_", Templates: stubTemplates{tpl: assetTemplate()}}
	err = r.UpdateField(context.Background(), 404, "category", nil, "HW", "bob")
	if !errors.Is(err, casedef.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusRecordsTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM cms_cases WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("open"))
	mock.ExpectExec("UPDATE cms_cases SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cms_case_history").
		WithArgs(int64(3), "status_changed", "status", "open", "resolved", "fixed", sqlmock.AnyArg(), "bob").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_", Templates: stubTemplates{tpl: assetTemplate()}}
	if err := r.UpdateStatus(context.Background(), 3, casedef.StatusResolved, "fixed", "bob"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	r := &Repo{Driver: "sqlite3", TablePrefix: "cms_"}
	err := r.UpdateStatus(context.Background(), 3, "bogus", "", "bob")
	if _, ok := casedef.AsValidation(err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
