package datatable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
	"github.com/caseflow-dev/caseflow/pkg/util"
)

// DisplayColumn picks the column whose value represents a record in pickers:
// the first column flagged as display field, otherwise the first column,
// otherwise the literal "id".
func DisplayColumn(cols []casedef.Column) string {
	for _, c := range cols {
		if c.DisplayKey {
			return c.Name
		}
	}
	if len(cols) > 0 {
		return cols[0].Name
	}
	return "id"
}

// Search returns active records whose serialized data contains q as a
// case-sensitive substring. displayColumn overrides the table's resolved
// display column when non-empty.
func (r *Repo) Search(ctx context.Context, tableID int64, q, displayColumn string, limit int) ([]casedef.SearchHit, error) {
	cols, err := r.Columns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if displayColumn == "" {
		displayColumn = DisplayColumn(cols)
	} else {
		displayColumn = NormalizeName(displayColumn)
	}
	limit = util.SanitizeLimit(limit)

	// The LIKE only narrows the scan; containment is re-checked in Go
	// because LIKE is case-insensitive on some collations. Wildcards are
	// escaped so the prefilter can over-match but never under-match, and
	// the limit is applied after the Go check so case-insensitive
	// near-matches cannot displace genuine hits.
	query := util.Rebind(r.Driver, fmt.Sprintf("SELECT id, record_data FROM %s WHERE table_id = ? AND is_active = ? AND record_data LIKE ?%s ORDER BY id", r.table("data_table_records"), likeEscapeClause(r.Driver)))
	rows, err := r.DB.QueryContext(ctx, query, tableID, true, "%"+escapeLike(q)+"%")
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()
	var hits []casedef.SearchHit
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if q != "" && !strings.Contains(raw, q) {
			continue
		}
		hit := casedef.SearchHit{ID: id}
		if err := json.Unmarshal([]byte(raw), &hit.Data); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", id, err)
		}
		hit.Display = displayValue(hit.Data, displayColumn, id)
		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}
	return hits, rows.Err()
}

// escapeLike escapes %, _ and the escape character itself so user input is
// matched literally. Backslash is the LIKE escape on mysql and postgres by
// default; sqlite needs the explicit ESCAPE clause.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func likeEscapeClause(driver string) string {
	if driver == "sqlite3" {
		return ` ESCAPE '\'`
	}
	return ""
}

func displayValue(data map[string]any, column string, id int64) string {
	if v, ok := data[column]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%d", id)
}
