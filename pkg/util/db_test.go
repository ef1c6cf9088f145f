package util

import "testing"

func TestDetectDriver(t *testing.T) {
	cases := map[string]string{
		"file:cases.db?cache=shared":            "sqlite3",
		":memory:":                              "sqlite3",
		"/var/lib/caseflow/cases.db":            "sqlite3",
		"postgres://u:p@localhost:5432/cms":     "postgres",
		"postgresql://u:p@localhost/cms":        "postgres",
		"mysql://u:p@tcp(localhost:3306)/cms":   "mysql",
	}
	for dsn, want := range cases {
		got, err := DetectDriver(dsn)
		if err != nil {
			t.Fatalf("DetectDriver(%q): %v", dsn, err)
		}
		if got != want {
			t.Fatalf("DetectDriver(%q) = %q, want %q", dsn, got, want)
		}
	}
	if _, err := DetectDriver("ftp://nope"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	if got := Rebind("mysql", q); got != q {
		t.Fatalf("mysql must keep ?, got %q", got)
	}
	want := "INSERT INTO t (a, b) VALUES ($1, $2)"
	if got := Rebind("postgres", q); got != want {
		t.Fatalf("Rebind postgres = %q, want %q", got, want)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatal("nil is not a violation")
	}
	errs := []string{
		"UNIQUE constraint failed: cms_cases.case_number",
		"Error 1062: Duplicate entry 'CASE-000005' for key 'case_number'",
		`pq: duplicate key value violates unique constraint "cms_cases_case_number_key"`,
	}
	for _, msg := range errs {
		if !IsUniqueViolation(errFrom(msg)) {
			t.Fatalf("expected violation for %q", msg)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit(0); got != 50 {
		t.Fatalf("default limit = %d", got)
	}
	if got := SanitizeLimit(-3); got != 50 {
		t.Fatalf("negative limit = %d", got)
	}
	if got := SanitizeLimit(9999); got != 200 {
		t.Fatalf("cap = %d", got)
	}
	if got := SanitizeLimit(25); got != 25 {
		t.Fatalf("passthrough = %d", got)
	}
}

type strErr string

func (e strErr) Error() string { return string(e) }

func errFrom(msg string) error { return strErr(msg) }
