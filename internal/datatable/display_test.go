package datatable

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

func TestDisplayColumn(t *testing.T) {
	cols := []casedef.Column{
		{Name: "code", Type: casedef.ColumnText},
		{Name: "label", Type: casedef.ColumnText, DisplayKey: true},
	}
	if got := DisplayColumn(cols); got != "label" {
		t.Fatalf("expected flagged column, got %q", got)
	}
	if got := DisplayColumn(cols[:1]); got != "code" {
		t.Fatalf("expected first column fallback, got %q", got)
	}
	if got := DisplayColumn(nil); got != "id" {
		t.Fatalf("expected id fallback, got %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Device Types": "device_types",
		"deviceTypes":  "device_types",
		" locations ":  "locations",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchIsCaseSensitive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	colRows := sqlmock.NewRows([]string{"column_name", "display_name", "data_type", "is_key_field", "is_display_field", "is_searchable"}).
		AddRow("code", "Code", "text", true, false, true).
		AddRow("label", "Label", "text", false, true, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, display_name, data_type, is_key_field, is_display_field, is_searchable FROM cms_data_table_columns WHERE table_id = ? ORDER BY id")).
		WithArgs(int64(1)).
		WillReturnRows(colRows)

	// LIKE over-matches on case; the Go-side containment check filters.
	recRows := sqlmock.NewRows([]string{"id", "record_data"}).
		AddRow(1, `{"code":"HDD","label":"Hard Disk"}`).
		AddRow(2, `{"code":"SSD","label":"hard disk"}`)
	mock.ExpectQuery("SELECT id, record_data FROM cms_data_table_records").
		WithArgs(int64(1), true, "%Hard%").
		WillReturnRows(recRows)

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	hits, err := r.Search(context.Background(), 1, "Hard", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 case-sensitive hit, got %d", len(hits))
	}
	if hits[0].ID != 1 {
		t.Fatalf("expected record 1, got %d", hits[0].ID)
	}
	if hits[0].Display != "Hard Disk" {
		t.Fatalf("expected display from flagged column, got %q", hits[0].Display)
	}
}

func TestSearchLimitCountsGenuineHitsOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT column_name").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "display_name", "data_type", "is_key_field", "is_display_field", "is_searchable"}).
			AddRow("label", "Label", "text", false, true, true))

	// lowercase near-matches come back first from the LIKE prefilter; they
	// must not eat into the limit and displace the real matches behind them
	recRows := sqlmock.NewRows([]string{"id", "record_data"})
	for i := 1; i <= 5; i++ {
		recRows.AddRow(i, fmt.Sprintf(`{"label":"hard disk %d"}`, i))
	}
	recRows.AddRow(6, `{"label":"Hard Disk A"}`)
	recRows.AddRow(7, `{"label":"Hard Disk B"}`)
	mock.ExpectQuery("SELECT id, record_data FROM cms_data_table_records").
		WithArgs(int64(1), true, "%Hard%").
		WillReturnRows(recRows)

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	hits, err := r.Search(context.Background(), 1, "Hard", "", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != 6 || hits[1].ID != 7 {
		t.Fatalf("expected records 6 and 7, got %d and %d", hits[0].ID, hits[1].ID)
	}
}

func TestSearchEscapesLikeWildcards(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT column_name").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "display_name", "data_type", "is_key_field", "is_display_field", "is_searchable"}).
			AddRow("label", "Label", "text", false, true, true))

	mock.ExpectQuery("SELECT id, record_data FROM cms_data_table_records").
		WithArgs(int64(1), true, `%100\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "record_data"}).
			AddRow(1, `{"label":"100% cotton"}`).
			AddRow(2, `{"label":"100x cotton"}`))

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	hits, err := r.Search(context.Background(), 1, "100%", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 1 {
		t.Fatalf("expected only the literal %% match, got %v", hits)
	}
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		`plain`:   `plain`,
		`50%`:     `50\%`,
		`a_b`:     `a\_b`,
		`C:\temp`: `C:\\temp`,
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Fatalf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchDisplayColumnOverride(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT column_name").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "display_name", "data_type", "is_key_field", "is_display_field", "is_searchable"}).
			AddRow("code", "Code", "text", false, false, true))
	mock.ExpectQuery("SELECT id, record_data FROM cms_data_table_records").
		WithArgs(int64(1), true, "%%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "record_data"}).
			AddRow(5, `{"code":"HDD"}`))

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	hits, err := r.Search(context.Background(), 1, "", "missing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// an override that no record carries falls back to the record id
	if hits[0].Display != "5" {
		t.Fatalf("expected id fallback display, got %q", hits[0].Display)
	}
}

func TestAddRecordRejectsUnknownColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT column_name").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "display_name", "data_type", "is_key_field", "is_display_field", "is_searchable"}).
			AddRow("code", "Code", "text", false, false, true))

	r := &Repo{DB: db, Driver: "sqlite3", TablePrefix: "cms_"}
	_, err = r.AddRecord(context.Background(), 1, map[string]any{"bogus": "x"}, "admin")
	if _, ok := casedef.AsValidation(err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateColumnsRejectsBadType(t *testing.T) {
	err := validateColumns([]casedef.Column{{Name: "code", Type: "blob"}})
	if _, ok := casedef.AsValidation(err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
