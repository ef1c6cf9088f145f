package template

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

func TestCreateRejectsDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cms_templates WHERE name = ?")).
		WithArgs("Incident Report").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	_, err = r.Create(context.Background(), casedef.Template{
		Name:   "Incident Report",
		Fields: []casedef.Field{{FieldID: "summary", Name: "Summary", Type: casedef.FieldText}},
	}, "admin")
	if !errors.Is(err, casedef.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateRejectsRepeatedFieldID(t *testing.T) {
	r := &Repo{Driver: "sqlite3", TablePrefix: "cms_"}
	_, err := r.Create(context.Background(), casedef.Template{
		Name: "Broken",
		Fields: []casedef.Field{
			{FieldID: "summary", Name: "Summary", Type: casedef.FieldText},
			{FieldID: "summary", Name: "Summary again", Type: casedef.FieldText},
		},
	}, "admin")
	verr, ok := casedef.AsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 1 {
		t.Fatalf("expected one message, got %v", verr.Errors)
	}
}

func TestCreateRejectsUndefinedDependencyParent(t *testing.T) {
	r := &Repo{Driver: "sqlite3", TablePrefix: "cms_"}
	_, err := r.Create(context.Background(), casedef.Template{
		Name: "Broken",
		Fields: []casedef.Field{
			{FieldID: "asset_tag", Name: "Asset Tag", Type: casedef.FieldText, Dependencies: []casedef.DependencyRule{
				{ParentField: "category", Condition: casedef.CondEquals, Value: "HW", Action: casedef.ActionRequire},
			}},
		},
	}, "admin")
	if _, ok := casedef.AsValidation(err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDeleteBlockedWhileCasesExist(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cms_cases WHERE template_id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	if err := r.Delete(context.Background(), 7); !errors.Is(err, casedef.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetMissingTemplate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, description").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	if _, err := r.Get(context.Background(), 99); !errors.Is(err, casedef.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAggregatesFieldCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT t.id, t.name, t.description, t.category, t.created_at, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "category", "created_at", "field_count"}).
			AddRow(1, "IT Asset Request", "Request assets", "IT", now, 4).
			AddRow(2, "Incident Report", nil, nil, now, 2))

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	res, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(res))
	}
	if res[0].FieldCount != 4 || res[1].FieldCount != 2 {
		t.Fatalf("unexpected field counts: %+v", res)
	}
	if res[1].Description != "" {
		t.Fatalf("NULL description should scan to empty string, got %q", res[1].Description)
	}
}
