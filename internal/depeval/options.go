package depeval

import (
	"context"
	"fmt"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// Option is one selectable choice offered to a dependent field.
type Option struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

// RecordSearcher resolves dynamic options from a lookup table.
type RecordSearcher interface {
	Search(ctx context.Context, tableID int64, q, displayColumn string, limit int) ([]casedef.SearchHit, error)
}

// OptionsForField resolves the choices for a select/autocomplete field:
// lookup-backed fields search their data table, dependent fields read the
// optionsMap entry keyed by the parent's current value, static fields read
// the "options" list from field_config.
func OptionsForField(ctx context.Context, f casedef.Field, searcher RecordSearcher, q, parentValue string, limit int) ([]Option, error) {
	if f.DataTableID != nil {
		if searcher == nil {
			return nil, fmt.Errorf("field %q: no data table searcher configured", f.FieldID)
		}
		displayColumn := ""
		if f.Config != nil {
			if v, ok := f.Config["displayColumn"].(string); ok {
				displayColumn = v
			}
		}
		hits, err := searcher.Search(ctx, *f.DataTableID, q, displayColumn, limit)
		if err != nil {
			return nil, err
		}
		opts := make([]Option, 0, len(hits))
		for _, h := range hits {
			opts = append(opts, Option{Value: fmt.Sprintf("%d", h.ID), Display: h.Display})
		}
		return opts, nil
	}

	if f.Config == nil {
		return nil, nil
	}
	if m, ok := f.Config["optionsMap"].(map[string]any); ok {
		if parentValue == "" {
			return nil, nil
		}
		raw, _ := m[parentValue].([]any)
		return staticOptions(raw), nil
	}
	raw, ok := f.Config["options"].([]any)
	if !ok {
		return nil, nil
	}
	return staticOptions(raw), nil
}

func staticOptions(raw []any) []Option {
	var opts []Option
	for _, item := range raw {
		switch t := item.(type) {
		case string:
			opts = append(opts, Option{Value: t, Display: t})
		case map[string]any:
			o := Option{Value: stringify(t["value"]), Display: stringify(t["label"])}
			if o.Display == "" {
				o.Display = o.Value
			}
			opts = append(opts, o)
		default:
			opts = append(opts, Option{Value: stringify(item), Display: stringify(item)})
		}
	}
	return opts
}
