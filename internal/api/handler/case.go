package handler

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/caseflow-dev/caseflow/internal/casestore"
	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// CaseHandler exposes case lifecycle operations.
type CaseHandler struct {
	Repo *casestore.Repo
}

// RegisterCases registers case endpoints.
func RegisterCases(api huma.API, h *CaseHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listCases",
		Method:      http.MethodGet,
		Path:        "/v1/cases",
		Summary:     "List cases",
		Tags:        []string{"Cases"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "getCase",
		Method:      http.MethodGet,
		Path:        "/v1/cases/{id}",
		Summary:     "Get a case",
		Tags:        []string{"Cases"},
	}, h.get)
	huma.Register(api, huma.Operation{
		OperationID:   "createCase",
		Method:        http.MethodPost,
		Path:          "/v1/cases",
		Summary:       "Create a case against a template",
		Tags:          []string{"Cases"},
		DefaultStatus: http.StatusCreated,
	}, h.create)
	huma.Register(api, huma.Operation{
		OperationID: "updateCaseField",
		Method:      http.MethodPatch,
		Path:        "/v1/cases/{id}/fields/{field}",
		Summary:     "Update one field of a case",
		Tags:        []string{"Cases"},
	}, h.updateField)
	huma.Register(api, huma.Operation{
		OperationID: "updateCaseStatus",
		Method:      http.MethodPut,
		Path:        "/v1/cases/{id}/status",
		Summary:     "Transition a case's status",
		Tags:        []string{"Cases"},
	}, h.updateStatus)
	huma.Register(api, huma.Operation{
		OperationID: "assignCase",
		Method:      http.MethodPut,
		Path:        "/v1/cases/{id}/assignee",
		Summary:     "Assign a case",
		Tags:        []string{"Cases"},
	}, h.assign)
	huma.Register(api, huma.Operation{
		OperationID:   "addCaseComment",
		Method:        http.MethodPost,
		Path:          "/v1/cases/{id}/comments",
		Summary:       "Add a comment to a case's history",
		Tags:          []string{"Cases"},
		DefaultStatus: http.StatusCreated,
	}, h.addComment)
	huma.Register(api, huma.Operation{
		OperationID: "getCaseHistory",
		Method:      http.MethodGet,
		Path:        "/v1/cases/{id}/history",
		Summary:     "Get a case's audit trail",
		Tags:        []string{"Cases"},
	}, h.history)
}

type caseListOutput struct {
	Body []casedef.Case `json:"body"`
}

func (h *CaseHandler) list(ctx context.Context, p *struct {
	Status     string `query:"status"`
	AssignedTo string `query:"assigned_to"`
	TemplateID int64  `query:"template_id"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
}) (*caseListOutput, error) {
	res, err := h.Repo.List(ctx, casestore.Filter{
		Status:     p.Status,
		AssignedTo: p.AssignedTo,
		TemplateID: p.TemplateID,
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &caseListOutput{Body: res}, nil
}

type caseOutput struct {
	Body casedef.Case `json:"body"`
}

func (h *CaseHandler) get(ctx context.Context, p *struct {
	ID int64 `path:"id"`
}) (*caseOutput, error) {
	c, err := h.Repo.Get(ctx, p.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &caseOutput{Body: c}, nil
}

type caseInput struct {
	Body struct {
		TemplateID  int64          `json:"templateId"`
		Title       string         `json:"title" minLength:"1"`
		Description string         `json:"description,omitempty"`
		Status      string         `json:"status,omitempty"`
		Priority    string         `json:"priority,omitempty"`
		AssignedTo  string         `json:"assignedTo,omitempty"`
		Data        map[string]any `json:"caseData"`
		Metadata    map[string]any `json:"metadata,omitempty"`
		Tags        string         `json:"tags,omitempty"`
		DueDate     string         `json:"dueDate,omitempty"`
	}
}

type caseCreatedOutput struct {
	Body struct {
		ID         int64  `json:"id"`
		CaseNumber string `json:"caseNumber"`
	}
}

func (h *CaseHandler) create(ctx context.Context, in *caseInput) (*caseCreatedOutput, error) {
	c := casedef.Case{
		TemplateID:  in.Body.TemplateID,
		Title:       in.Body.Title,
		Description: in.Body.Description,
		Status:      casedef.CaseStatus(in.Body.Status),
		Priority:    casedef.CasePriority(in.Body.Priority),
		AssignedTo:  in.Body.AssignedTo,
		Data:        in.Body.Data,
		Metadata:    in.Body.Metadata,
		Tags:        in.Body.Tags,
		DueDate:     in.Body.DueDate,
	}
	id, number, err := h.Repo.Create(ctx, c, userFromContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := &caseCreatedOutput{}
	out.Body.ID = id
	out.Body.CaseNumber = number
	return out, nil
}

type fieldUpdateInput struct {
	ID    int64  `path:"id"`
	Field string `path:"field"`
	Body  struct {
		OldValue any `json:"oldValue,omitempty"`
		NewValue any `json:"newValue"`
	}
}

func (h *CaseHandler) updateField(ctx context.Context, in *fieldUpdateInput) (*struct{}, error) {
	if err := h.Repo.UpdateField(ctx, in.ID, in.Field, in.Body.OldValue, in.Body.NewValue, userFromContext(ctx)); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

type statusUpdateInput struct {
	ID   int64 `path:"id"`
	Body struct {
		Status  string `json:"status" minLength:"1"`
		Comment string `json:"comment,omitempty"`
	}
}

func (h *CaseHandler) updateStatus(ctx context.Context, in *statusUpdateInput) (*struct{}, error) {
	if err := h.Repo.UpdateStatus(ctx, in.ID, casedef.CaseStatus(in.Body.Status), in.Body.Comment, userFromContext(ctx)); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

type assignInput struct {
	ID   int64 `path:"id"`
	Body struct {
		AssignedTo string `json:"assignedTo"`
	}
}

func (h *CaseHandler) assign(ctx context.Context, in *assignInput) (*struct{}, error) {
	if err := h.Repo.Assign(ctx, in.ID, in.Body.AssignedTo, userFromContext(ctx)); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

type commentInput struct {
	ID   int64 `path:"id"`
	Body struct {
		Comment string `json:"comment" minLength:"1"`
	}
}

func (h *CaseHandler) addComment(ctx context.Context, in *commentInput) (*struct{}, error) {
	if err := h.Repo.AddComment(ctx, in.ID, in.Body.Comment, userFromContext(ctx)); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

type historyOutput struct {
	Body []casedef.HistoryEntry `json:"body"`
}

func (h *CaseHandler) history(ctx context.Context, p *struct {
	ID int64 `path:"id"`
}) (*historyOutput, error) {
	res, err := h.Repo.History(ctx, p.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &historyOutput{Body: res}, nil
}
