package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/caseflow-dev/caseflow/internal/datatable"
	"github.com/caseflow-dev/caseflow/internal/metrics"
	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// DataTableHandler exposes lookup table management and record search.
type DataTableHandler struct {
	Repo *datatable.Repo
}

// RegisterDataTables registers data table endpoints.
func RegisterDataTables(api huma.API, h *DataTableHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listDataTables",
		Method:      http.MethodGet,
		Path:        "/v1/data-tables",
		Summary:     "List lookup tables",
		Tags:        []string{"DataTables"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "getDataTable",
		Method:      http.MethodGet,
		Path:        "/v1/data-tables/{id}",
		Summary:     "Get a lookup table with its columns",
		Tags:        []string{"DataTables"},
	}, h.get)
	huma.Register(api, huma.Operation{
		OperationID:   "createDataTable",
		Method:        http.MethodPost,
		Path:          "/v1/data-tables",
		Summary:       "Create a lookup table",
		Tags:          []string{"DataTables"},
		DefaultStatus: http.StatusCreated,
	}, h.create)
	huma.Register(api, huma.Operation{
		OperationID: "updateDataTable",
		Method:      http.MethodPut,
		Path:        "/v1/data-tables/{id}",
		Summary:     "Replace a lookup table's metadata and columns",
		Tags:        []string{"DataTables"},
	}, h.update)
	huma.Register(api, huma.Operation{
		OperationID:   "deleteDataTable",
		Method:        http.MethodDelete,
		Path:          "/v1/data-tables/{id}",
		Summary:       "Delete a lookup table",
		Tags:          []string{"DataTables"},
		DefaultStatus: http.StatusNoContent,
	}, h.delete)
	huma.Register(api, huma.Operation{
		OperationID:   "addDataTableRecord",
		Method:        http.MethodPost,
		Path:          "/v1/data-tables/{id}/records",
		Summary:       "Append a record to a lookup table",
		Tags:          []string{"DataTables"},
		DefaultStatus: http.StatusCreated,
	}, h.addRecord)
	huma.Register(api, huma.Operation{
		OperationID: "listDataTableRecords",
		Method:      http.MethodGet,
		Path:        "/v1/data-tables/{id}/records",
		Summary:     "List a lookup table's active records",
		Tags:        []string{"DataTables"},
	}, h.records)
	huma.Register(api, huma.Operation{
		OperationID: "searchDataTable",
		Method:      http.MethodGet,
		Path:        "/v1/data-tables/{id}/search",
		Summary:     "Search a lookup table's records",
		Tags:        []string{"DataTables"},
	}, h.search)
}

type tableListOutput struct {
	Body []casedef.TableSummary `json:"body"`
}

func (h *DataTableHandler) list(ctx context.Context, _ *struct{}) (*tableListOutput, error) {
	res, err := h.Repo.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &tableListOutput{Body: res}, nil
}

type tableOutput struct {
	Body casedef.DataTable `json:"body"`
}

func (h *DataTableHandler) get(ctx context.Context, p *struct {
	ID int64 `path:"id"`
}) (*tableOutput, error) {
	dt, err := h.Repo.Get(ctx, p.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &tableOutput{Body: dt}, nil
}

type tableInput struct {
	Body struct {
		Name        string           `json:"tableName" minLength:"1"`
		DisplayName string           `json:"displayName" minLength:"1"`
		Description string           `json:"description,omitempty"`
		Columns     []casedef.Column `json:"columns"`
	}
}

func (h *DataTableHandler) create(ctx context.Context, in *tableInput) (*createdOutput, error) {
	dt := casedef.DataTable{
		Name:        in.Body.Name,
		DisplayName: in.Body.DisplayName,
		Description: in.Body.Description,
		Columns:     in.Body.Columns,
	}
	id, err := h.Repo.Create(ctx, dt, userFromContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := &createdOutput{}
	out.Body.ID = id
	return out, nil
}

type tableUpdateInput struct {
	ID   int64 `path:"id"`
	Body struct {
		DisplayName string           `json:"displayName" minLength:"1"`
		Description string           `json:"description,omitempty"`
		Active      bool             `json:"isActive"`
		Columns     []casedef.Column `json:"columns"`
	}
}

func (h *DataTableHandler) update(ctx context.Context, in *tableUpdateInput) (*struct{}, error) {
	dt := casedef.DataTable{
		DisplayName: in.Body.DisplayName,
		Description: in.Body.Description,
		Active:      in.Body.Active,
		Columns:     in.Body.Columns,
	}
	if err := h.Repo.Update(ctx, in.ID, dt); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

func (h *DataTableHandler) delete(ctx context.Context, p *struct {
	ID int64 `path:"id"`
}) (*struct{}, error) {
	if err := h.Repo.Delete(ctx, p.ID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

type recordInput struct {
	ID   int64          `path:"id"`
	Body map[string]any `json:"body"`
}

func (h *DataTableHandler) addRecord(ctx context.Context, in *recordInput) (*createdOutput, error) {
	id, err := h.Repo.AddRecord(ctx, in.ID, in.Body, userFromContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := &createdOutput{}
	out.Body.ID = id
	return out, nil
}

type recordListOutput struct {
	Body []casedef.Record `json:"body"`
}

func (h *DataTableHandler) records(ctx context.Context, p *struct {
	ID    int64 `path:"id"`
	Limit int   `query:"limit"`
}) (*recordListOutput, error) {
	res, err := h.Repo.Records(ctx, p.ID, p.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	return &recordListOutput{Body: res}, nil
}

type searchOutput struct {
	Body []casedef.SearchHit `json:"body"`
}

func (h *DataTableHandler) search(ctx context.Context, p *struct {
	ID            int64  `path:"id"`
	Q             string `query:"q"`
	DisplayColumn string `query:"display_column"`
	Limit         int    `query:"limit"`
}) (*searchOutput, error) {
	start := time.Now()
	hits, err := h.Repo.Search(ctx, p.ID, p.Q, p.DisplayColumn, p.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	metrics.SearchLatency.WithLabelValues(strconv.FormatInt(p.ID, 10)).Observe(time.Since(start).Seconds())
	return &searchOutput{Body: hits}, nil
}
