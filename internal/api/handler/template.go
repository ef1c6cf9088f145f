package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/caseflow-dev/caseflow/internal/fieldpolicy"
	"github.com/caseflow-dev/caseflow/internal/template"
	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// TemplateHandler exposes template CRUD over the API.
type TemplateHandler struct {
	Repo   *template.Repo
	Policy *fieldpolicy.Store
}

// RegisterTemplates registers template endpoints.
func RegisterTemplates(api huma.API, h *TemplateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listTemplates",
		Method:      http.MethodGet,
		Path:        "/v1/templates",
		Summary:     "List case templates",
		Tags:        []string{"Templates"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "getTemplate",
		Method:      http.MethodGet,
		Path:        "/v1/templates/{id}",
		Summary:     "Get a case template with its fields",
		Tags:        []string{"Templates"},
	}, h.get)
	huma.Register(api, huma.Operation{
		OperationID:   "createTemplate",
		Method:        http.MethodPost,
		Path:          "/v1/templates",
		Summary:       "Create a case template",
		Tags:          []string{"Templates"},
		DefaultStatus: http.StatusCreated,
	}, h.create)
	huma.Register(api, huma.Operation{
		OperationID: "updateTemplate",
		Method:      http.MethodPut,
		Path:        "/v1/templates/{id}",
		Summary:     "Replace a template's metadata and field set",
		Tags:        []string{"Templates"},
	}, h.update)
	huma.Register(api, huma.Operation{
		OperationID:   "deleteTemplate",
		Method:        http.MethodDelete,
		Path:          "/v1/templates/{id}",
		Summary:       "Delete a case template",
		Tags:          []string{"Templates"},
		DefaultStatus: http.StatusNoContent,
	}, h.delete)
}

type templateListOutput struct {
	Body []casedef.TemplateSummary `json:"body"`
}

func (h *TemplateHandler) list(ctx context.Context, _ *struct{}) (*templateListOutput, error) {
	res, err := h.Repo.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &templateListOutput{Body: res}, nil
}

// fieldView is a template field with the widget resolved from the policy.
type fieldView struct {
	casedef.Field
	Widget       string         `json:"widget,omitempty"`
	WidgetConfig map[string]any `json:"widgetConfig,omitempty"`
}

type templateOutput struct {
	Body struct {
		ID          int64          `json:"id"`
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Category    string         `json:"category,omitempty"`
		Config      map[string]any `json:"templateConfig,omitempty"`
		Fields      []fieldView    `json:"fields"`
		CreatedAt   time.Time      `json:"createdAt,omitempty"`
		UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
		CreatedBy   string         `json:"createdBy,omitempty"`
	}
}

func (h *TemplateHandler) get(ctx context.Context, p *struct {
	ID int64 `path:"id"`
}) (*templateOutput, error) {
	tpl, err := h.Repo.Get(ctx, p.ID)
	if err != nil {
		return nil, mapError(err)
	}
	out := &templateOutput{}
	out.Body.ID = tpl.ID
	out.Body.Name = tpl.Name
	out.Body.Description = tpl.Description
	out.Body.Category = tpl.Category
	out.Body.Config = tpl.Config
	out.Body.CreatedAt = tpl.CreatedAt
	out.Body.UpdatedAt = tpl.UpdatedAt
	out.Body.CreatedBy = tpl.CreatedBy
	out.Body.Fields = make([]fieldView, len(tpl.Fields))
	for i, f := range tpl.Fields {
		fv := fieldView{Field: f}
		if h.Policy != nil {
			fv.Widget, fv.WidgetConfig = h.Policy.Get().Resolve(f)
		}
		out.Body.Fields[i] = fv
	}
	return out, nil
}

type templateInput struct {
	Body struct {
		Name        string          `json:"name" minLength:"1"`
		Description string          `json:"description,omitempty"`
		Category    string          `json:"category,omitempty"`
		Config      map[string]any  `json:"templateConfig,omitempty"`
		Fields      []casedef.Field `json:"fields"`
	}
}

type createdOutput struct {
	Body struct {
		ID int64 `json:"id"`
	}
}

func (h *TemplateHandler) create(ctx context.Context, in *templateInput) (*createdOutput, error) {
	tpl := casedef.Template{
		Name:        in.Body.Name,
		Description: in.Body.Description,
		Category:    in.Body.Category,
		Config:      in.Body.Config,
		Fields:      in.Body.Fields,
	}
	id, err := h.Repo.Create(ctx, tpl, userFromContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := &createdOutput{}
	out.Body.ID = id
	return out, nil
}

type templateUpdateInput struct {
	ID   int64 `path:"id"`
	Body struct {
		Name        string          `json:"name" minLength:"1"`
		Description string          `json:"description,omitempty"`
		Category    string          `json:"category,omitempty"`
		Fields      []casedef.Field `json:"fields"`
	}
}

func (h *TemplateHandler) update(ctx context.Context, in *templateUpdateInput) (*struct{}, error) {
	tpl := casedef.Template{
		Name:        in.Body.Name,
		Description: in.Body.Description,
		Category:    in.Body.Category,
		Fields:      in.Body.Fields,
	}
	if err := h.Repo.Update(ctx, in.ID, tpl, userFromContext(ctx)); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

func (h *TemplateHandler) delete(ctx context.Context, p *struct {
	ID int64 `path:"id"`
}) (*struct{}, error) {
	if err := h.Repo.Delete(ctx, p.ID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}
