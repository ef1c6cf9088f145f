package handler

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/caseflow-dev/caseflow/internal/datatable"
	"github.com/caseflow-dev/caseflow/internal/depeval"
	"github.com/caseflow-dev/caseflow/internal/template"
)

// EvaluateHandler runs the dependency evaluator without persisting anything,
// so clients can drive conditional form behavior server-side.
type EvaluateHandler struct {
	Templates *template.Repo
	Tables    *datatable.Repo
}

// RegisterEvaluate registers evaluation endpoints.
func RegisterEvaluate(api huma.API, h *EvaluateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "evaluateDependencies",
		Method:      http.MethodPost,
		Path:        "/v1/templates/{id}/evaluate",
		Summary:     "Evaluate a template's dependency rules against a payload",
		Tags:        []string{"Evaluation"},
	}, h.evaluate)
	huma.Register(api, huma.Operation{
		OperationID: "getFieldOptions",
		Method:      http.MethodGet,
		Path:        "/v1/templates/{id}/fields/{field}/options",
		Summary:     "Resolve the selectable options for a field",
		Tags:        []string{"Evaluation"},
	}, h.options)
}

type evaluateInput struct {
	ID   int64          `path:"id"`
	Body map[string]any `json:"body"`
}

type evaluateOutput struct {
	Body depeval.Result `json:"body"`
}

func (h *EvaluateHandler) evaluate(ctx context.Context, in *evaluateInput) (*evaluateOutput, error) {
	tpl, err := h.Templates.Get(ctx, in.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &evaluateOutput{Body: depeval.Evaluate(tpl, in.Body)}, nil
}

type optionsOutput struct {
	Body []depeval.Option `json:"body"`
}

func (h *EvaluateHandler) options(ctx context.Context, p *struct {
	ID          int64  `path:"id"`
	Field       string `path:"field"`
	Q           string `query:"q"`
	ParentValue string `query:"parent_value"`
	Limit       int    `query:"limit"`
}) (*optionsOutput, error) {
	tpl, err := h.Templates.Get(ctx, p.ID)
	if err != nil {
		return nil, mapError(err)
	}
	for _, f := range tpl.Fields {
		if f.FieldID != p.Field {
			continue
		}
		opts, err := depeval.OptionsForField(ctx, f, h.Tables, p.Q, p.ParentValue, p.Limit)
		if err != nil {
			return nil, mapError(err)
		}
		return &optionsOutput{Body: opts}, nil
	}
	return nil, huma.Error404NotFound("field not found")
}
