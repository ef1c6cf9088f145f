package casedef

import "time"

// DefaultTablePrefix is applied when no prefix is provided.
const DefaultTablePrefix = "cms_"

// Prefix returns p when non-empty or DefaultTablePrefix otherwise.
func Prefix(p string) string {
	if p == "" {
		return DefaultTablePrefix
	}
	return p
}

// TableName returns the storage table name with the supplied prefix applied.
func TableName(prefix, name string) string {
	return Prefix(prefix) + name
}

// FieldType identifies the form element rendered for a field.
type FieldType string

const (
	FieldText            FieldType = "text"
	FieldTextarea        FieldType = "textarea"
	FieldNumber          FieldType = "number"
	FieldEmail           FieldType = "email"
	FieldPhone           FieldType = "phone"
	FieldURL             FieldType = "url"
	FieldDate            FieldType = "date"
	FieldDatetime        FieldType = "datetime"
	FieldSelect          FieldType = "select"
	FieldMultiselect     FieldType = "multiselect"
	FieldRadio           FieldType = "radio"
	FieldCheckbox        FieldType = "checkbox"
	FieldToggle          FieldType = "toggle"
	FieldAutocomplete    FieldType = "autocomplete"
	FieldDataTableLookup FieldType = "data_table_lookup"
	FieldDependent       FieldType = "dependent_field"
	FieldFileUpload      FieldType = "file_upload"
	FieldImageUpload     FieldType = "image_upload"
	FieldSignature       FieldType = "signature"
	FieldRating          FieldType = "rating"
	FieldLocation        FieldType = "location"
	FieldColor           FieldType = "color"
	FieldJSONEditor      FieldType = "json_editor"
)

var fieldTypes = map[FieldType]struct{}{
	FieldText: {}, FieldTextarea: {}, FieldNumber: {}, FieldEmail: {},
	FieldPhone: {}, FieldURL: {}, FieldDate: {}, FieldDatetime: {},
	FieldSelect: {}, FieldMultiselect: {}, FieldRadio: {}, FieldCheckbox: {},
	FieldToggle: {}, FieldAutocomplete: {}, FieldDataTableLookup: {},
	FieldDependent: {}, FieldFileUpload: {}, FieldImageUpload: {},
	FieldSignature: {}, FieldRating: {}, FieldLocation: {}, FieldColor: {},
	FieldJSONEditor: {},
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	_, ok := fieldTypes[t]
	return ok
}

// ConditionType identifies how a dependency rule compares the parent value.
type ConditionType string

const (
	CondEquals      ConditionType = "equals"
	CondNotEquals   ConditionType = "not_equals"
	CondContains    ConditionType = "contains"
	CondNotContains ConditionType = "not_contains"
	CondGreaterThan ConditionType = "greater_than"
	CondLessThan    ConditionType = "less_than"
	CondInList      ConditionType = "in_list"
	CondNotInList   ConditionType = "not_in_list"
	CondIsEmpty     ConditionType = "is_empty"
	CondIsNotEmpty  ConditionType = "is_not_empty"
)

var conditionTypes = map[ConditionType]struct{}{
	CondEquals: {}, CondNotEquals: {}, CondContains: {}, CondNotContains: {},
	CondGreaterThan: {}, CondLessThan: {}, CondInList: {}, CondNotInList: {},
	CondIsEmpty: {}, CondIsNotEmpty: {},
}

// Valid reports whether c is a known condition type.
func (c ConditionType) Valid() bool {
	_, ok := conditionTypes[c]
	return ok
}

// ActionType identifies the effect a fired dependency rule applies.
type ActionType string

const (
	ActionShow          ActionType = "show"
	ActionHide          ActionType = "hide"
	ActionEnable        ActionType = "enable"
	ActionDisable       ActionType = "disable"
	ActionRequire       ActionType = "require"
	ActionOptional      ActionType = "optional"
	ActionSetValue      ActionType = "set_value"
	ActionClearValue    ActionType = "clear_value"
	ActionUpdateOptions ActionType = "update_options"
)

var actionTypes = map[ActionType]struct{}{
	ActionShow: {}, ActionHide: {}, ActionEnable: {}, ActionDisable: {},
	ActionRequire: {}, ActionOptional: {}, ActionSetValue: {},
	ActionClearValue: {}, ActionUpdateOptions: {},
}

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	_, ok := actionTypes[a]
	return ok
}

// ValidationRules holds per-field value constraints interpreted by the evaluator.
type ValidationRules struct {
	MinLength   *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	EmailFormat bool     `json:"emailFormat,omitempty" yaml:"emailFormat,omitempty"`
}

// DependencyRule links a parent field's value to an effect on the field that
// carries the rule. ParentField is the parent's field_id within the same template.
type DependencyRule struct {
	ID           int64          `json:"id,omitempty" yaml:"-"`
	ParentField  string         `json:"parentField" yaml:"parentField"`
	Condition    ConditionType  `json:"conditionType" yaml:"condition"`
	Value        string         `json:"conditionValue,omitempty" yaml:"value,omitempty"`
	Action       ActionType     `json:"actionType" yaml:"action"`
	ActionConfig map[string]any `json:"actionConfig,omitempty" yaml:"actionConfig,omitempty"`
}

// Field is one typed, configurable form element within a template.
type Field struct {
	DBID          int64            `json:"dbId,omitempty" yaml:"-"`
	FieldID       string           `json:"fieldId" yaml:"field"`
	Name          string           `json:"fieldName" yaml:"name"`
	Type          FieldType        `json:"fieldType" yaml:"type"`
	Required      bool             `json:"isRequired,omitempty" yaml:"required,omitempty"`
	DisplayOrder  int              `json:"displayOrder" yaml:"-"`
	Config        map[string]any   `json:"fieldConfig,omitempty" yaml:"config,omitempty"`
	Validation    *ValidationRules `json:"validationRules,omitempty" yaml:"validation,omitempty"`
	DataTableID   *int64           `json:"dataTableId,omitempty" yaml:"dataTableId,omitempty"`
	ParentFieldID *int64           `json:"parentFieldId,omitempty" yaml:"parentFieldId,omitempty"`
	Dependencies  []DependencyRule `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Template is a named, versionless schema describing a form's fields for one
// class of case.
type Template struct {
	ID          int64          `json:"id" yaml:"-"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty"`
	Config      map[string]any `json:"templateConfig,omitempty" yaml:"config,omitempty"`
	Fields      []Field        `json:"fields" yaml:"fields"`
	CreatedAt   time.Time      `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty" yaml:"-"`
	CreatedBy   string         `json:"createdBy,omitempty" yaml:"-"`
}

// TemplateSummary is the listing view of a template.
type TemplateSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	FieldCount  int       `json:"fieldCount"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// ColumnType constrains data table column values.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnNumber  ColumnType = "number"
	ColumnDate    ColumnType = "date"
	ColumnBoolean ColumnType = "boolean"
)

// Valid reports whether c is a known column data type.
func (c ColumnType) Valid() bool {
	switch c {
	case ColumnText, ColumnNumber, ColumnDate, ColumnBoolean:
		return true
	}
	return false
}

// Column describes one typed column of a data table.
type Column struct {
	Name       string     `json:"columnName" yaml:"name"`
	Display    string     `json:"displayName" yaml:"display"`
	Type       ColumnType `json:"dataType" yaml:"type"`
	KeyField   bool       `json:"isKeyField,omitempty" yaml:"key,omitempty"`
	DisplayKey bool       `json:"isDisplayField,omitempty" yaml:"displayField,omitempty"`
	Searchable bool       `json:"isSearchable" yaml:"searchable"`
}

// DataTable is an administrator-defined lookup table backing autocomplete and
// select fields.
type DataTable struct {
	ID          int64     `json:"id"`
	Name        string    `json:"tableName"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description,omitempty"`
	Columns     []Column  `json:"columns"`
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// TableSummary is the listing view of a data table.
type TableSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"tableName"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	RecordCount int    `json:"recordCount"`
}

// Record is one opaque row stored in a data table.
type Record struct {
	ID      int64          `json:"id"`
	TableID int64          `json:"tableId"`
	Data    map[string]any `json:"data"`
	Active  bool           `json:"isActive"`
}

// SearchHit is one record matched by a data table search, with the resolved
// display value.
type SearchHit struct {
	ID      int64          `json:"id"`
	Data    map[string]any `json:"data"`
	Display string         `json:"display"`
}

// CaseStatus constrains the case lifecycle state.
type CaseStatus string

const (
	StatusDraft      CaseStatus = "draft"
	StatusOpen       CaseStatus = "open"
	StatusInProgress CaseStatus = "in_progress"
	StatusPending    CaseStatus = "pending"
	StatusResolved   CaseStatus = "resolved"
	StatusClosed     CaseStatus = "closed"
	StatusCancelled  CaseStatus = "cancelled"
	StatusEscalated  CaseStatus = "escalated"
)

// Valid reports whether s is a known case status.
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusInProgress, StatusPending,
		StatusResolved, StatusClosed, StatusCancelled, StatusEscalated:
		return true
	}
	return false
}

// CasePriority constrains the case priority level.
type CasePriority string

const (
	PriorityLow      CasePriority = "low"
	PriorityMedium   CasePriority = "medium"
	PriorityHigh     CasePriority = "high"
	PriorityUrgent   CasePriority = "urgent"
	PriorityCritical CasePriority = "critical"
)

// Valid reports whether p is a known case priority.
func (p CasePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Case is one instance of data submitted against a template.
type Case struct {
	ID           int64          `json:"id"`
	CaseNumber   string         `json:"caseNumber"`
	TemplateID   int64          `json:"templateId"`
	TemplateName string         `json:"templateName,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       CaseStatus     `json:"status"`
	Priority     CasePriority   `json:"priority"`
	AssignedTo   string         `json:"assignedTo,omitempty"`
	Data         map[string]any `json:"caseData"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Tags         string         `json:"tags,omitempty"`
	DueDate      string         `json:"dueDate,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt,omitempty"`
	CreatedBy    string         `json:"createdBy,omitempty"`
	ModifiedBy   string         `json:"lastModifiedBy,omitempty"`
}

// HistoryAction identifies the kind of case mutation recorded in the audit trail.
type HistoryAction string

const (
	HistoryCreated         HistoryAction = "created"
	HistoryUpdated         HistoryAction = "updated"
	HistoryStatusChanged   HistoryAction = "status_changed"
	HistoryAssigned        HistoryAction = "assigned"
	HistoryCommentAdded    HistoryAction = "comment_added"
	HistoryAttachmentAdded HistoryAction = "attachment_added"
	HistoryFieldChanged    HistoryAction = "field_changed"
)

// HistoryEntry is one append-only audit record of a case-affecting mutation.
type HistoryEntry struct {
	ID        int64         `json:"id"`
	CaseID    int64         `json:"caseId"`
	Action    HistoryAction `json:"actionType"`
	FieldName string        `json:"fieldName,omitempty"`
	OldValue  string        `json:"oldValue,omitempty"`
	NewValue  string        `json:"newValue,omitempty"`
	Comment   string        `json:"comment,omitempty"`
	CreatedAt time.Time     `json:"createdAt,omitempty"`
	CreatedBy string        `json:"createdBy,omitempty"`
}
