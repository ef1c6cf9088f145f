package fieldpolicy

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve(t *testing.T) {
	p := &Policy{
		Rules: []Rule{
			{ID: "email", When: RuleWhen{Types: []string{"email"}}, Widget: "email-input"},
			{ID: "date", When: RuleWhen{Types: []string{"date", "datetime"}}, Widget: "date-picker"},
			{ID: "tags", When: RuleWhen{NameRegex: "_tags$"}, Widget: "tag-editor"},
		},
	}
	if err := p.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	widget, _ := p.Resolve(casedef.Field{FieldID: "reporter_email", Type: casedef.FieldEmail})
	if widget != "email-input" {
		t.Fatalf("expected email-input, got %s", widget)
	}
	widget, _ = p.Resolve(casedef.Field{FieldID: "due", Type: casedef.FieldDatetime})
	if widget != "date-picker" {
		t.Fatalf("expected date-picker, got %s", widget)
	}
	widget, _ = p.Resolve(casedef.Field{FieldID: "topic_tags", Type: casedef.FieldText})
	if widget != "tag-editor" {
		t.Fatalf("expected tag-editor, got %s", widget)
	}
	widget, _ = p.Resolve(casedef.Field{FieldID: "other", Type: casedef.FieldText})
	if widget != "text-input" {
		t.Fatalf("fallback failed: %s", widget)
	}
}

func TestLoadKeepsOldPolicyOnBadRegex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yml")
	os.WriteFile(path, []byte("version: 1\nrules:\n- widget: textarea\n"), 0644)
	st := NewStore(path, testLogger())
	if err := st.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	os.WriteFile(path, []byte("version: 2\nrules:\n- id: bad\n  when:\n    name_regex: \"[\"\n  widget: tag-editor\n"), 0644)
	if err := st.Load(); err == nil {
		t.Fatal("expected an error for an invalid name_regex")
	}
	widget, _ := st.Get().Resolve(casedef.Field{FieldID: "x", Type: casedef.FieldText})
	if widget != "textarea" {
		t.Fatalf("bad reload must keep the old policy, got %s", widget)
	}
}

func TestStoreHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yml")
	os.WriteFile(path, []byte("version: 1\nrules:\n- widget: text-input\n"), 0644)
	st := NewStore(path, testLogger())
	if err := st.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go st.Watch(ctx)
	widget, _ := st.Get().Resolve(casedef.Field{FieldID: "x", Type: casedef.FieldText})
	if widget != "text-input" {
		t.Fatalf("initial resolve: %s", widget)
	}
	os.WriteFile(path, []byte("version: 1\nrules:\n- widget: textarea\n"), 0644)
	time.Sleep(100 * time.Millisecond)
	if err := st.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	widget, _ = st.Get().Resolve(casedef.Field{FieldID: "x", Type: casedef.FieldText})
	if widget != "textarea" {
		t.Fatalf("reload failed: %s", widget)
	}
}
