package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidQuery reports a query that cannot be executed.
var ErrInvalidQuery = errors.New("invalid query")

const maxSortCriteria = 3

// Column describes one displayable and possibly editable issue attribute.
type Column struct {
	Name        string
	Sortable    bool
	Groupable   bool
	Totalable   bool
	Block       bool
	CustomField *CustomField
}

// CaptionKey is the localization key of the column header.
func (c Column) CaptionKey() string {
	if c.CustomField != nil {
		return ""
	}
	return "field_" + c.Name
}

func (c Column) IsCustomField() bool {
	return c.CustomField != nil
}

var builtinColumns = []Column{
	{Name: "id", Sortable: true},
	{Name: "project", Sortable: true, Groupable: true},
	{Name: "tracker", Sortable: true, Groupable: true},
	{Name: "parent", Sortable: true},
	{Name: "status", Sortable: true, Groupable: true},
	{Name: "priority", Sortable: true, Groupable: true},
	{Name: "subject", Sortable: true},
	{Name: "author", Sortable: true},
	{Name: "assigned_to", Sortable: true, Groupable: true},
	{Name: "updated_on", Sortable: true},
	{Name: "category", Sortable: true, Groupable: true},
	{Name: "fixed_version", Sortable: true, Groupable: true},
	{Name: "start_date", Sortable: true},
	{Name: "due_date", Sortable: true},
	{Name: "estimated_hours", Sortable: true, Totalable: true},
	{Name: "spent_hours", Sortable: true, Totalable: true},
	{Name: "done_ratio", Sortable: true, Groupable: true},
	{Name: "is_private", Sortable: true, Groupable: true},
	{Name: "created_on", Sortable: true},
	{Name: "description", Block: true},
}

// DefaultColumnNames are shown when a query selects no columns.
var DefaultColumnNames = []string{"tracker", "status", "priority", "subject", "assigned_to", "updated_on"}

// AvailableColumns lists built-in columns followed by one column per custom field.
func AvailableColumns(fields []CustomField) []Column {
	out := make([]Column, 0, len(builtinColumns)+len(fields))
	out = append(out, builtinColumns...)
	for i := range fields {
		field := fields[i]
		groupable := !field.Multiple && field.FieldFormat != FormatText
		out = append(out, Column{
			Name:        field.ColumnName(),
			Sortable:    !field.Multiple,
			Groupable:   groupable,
			Block:       field.FieldFormat == FormatText,
			CustomField: &field,
		})
	}
	return out
}

// FindColumn returns the named column.
func FindColumn(columns []Column, name string) (Column, bool) {
	for _, column := range columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// Filter is one query condition.
type Filter struct {
	Field    string   `json:"field" yaml:"field"`
	Operator string   `json:"operator" yaml:"operator"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// SortCriterion orders by one column.
type SortCriterion struct {
	Column string `json:"column" yaml:"column"`
	Desc   bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Query is a saved or ad-hoc filter, column, sort and grouping specification.
type Query struct {
	ID           int64
	Name         string
	ProjectID    *int64
	Filters      []Filter
	ColumnNames  []string
	SortCriteria []SortCriterion
	GroupBy      string
}

// Filter operators.
const (
	OpEquals      = "="
	OpNotEquals   = "!"
	OpAny         = "*"
	OpNone        = "!*"
	OpOpen        = "o"
	OpClosed      = "c"
	OpContains    = "~"
	OpNotContains = "!~"
	OpGreaterEq   = ">="
	OpLessEq      = "<="
)

type filterKind int

const (
	filterIDs filterKind = iota
	filterStatus
	filterText
	filterInt
	filterBool
	filterCustom
)

var filterKinds = map[string]filterKind{
	"project_id":       filterIDs,
	"tracker_id":       filterIDs,
	"priority_id":      filterIDs,
	"assigned_to_id":   filterIDs,
	"author_id":        filterIDs,
	"category_id":      filterIDs,
	"fixed_version_id": filterIDs,
	"parent_id":        filterIDs,
	"status_id":        filterStatus,
	"subject":          filterText,
	"description":      filterText,
	"done_ratio":       filterInt,
	"is_private":       filterBool,
}

var kindOperators = map[filterKind][]string{
	filterIDs:    {OpEquals, OpNotEquals, OpAny, OpNone},
	filterStatus: {OpOpen, OpClosed, OpEquals, OpNotEquals, OpAny},
	filterText:   {OpContains, OpNotContains, OpAny, OpNone},
	filterInt:    {OpEquals, OpGreaterEq, OpLessEq, OpAny, OpNone},
	filterBool:   {OpEquals},
	filterCustom: {OpEquals, OpNotEquals, OpContains, OpAny, OpNone},
}

// CustomFieldID parses a cf_<id> name.
func CustomFieldID(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, "cf_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Grouped reports whether the query groups its results.
func (q *Query) Grouped() bool {
	return q != nil && q.GroupBy != ""
}

// Validate checks filters, grouping and sort against the available columns.
func (q *Query) Validate(fields []CustomField) error {
	if q == nil {
		return fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}
	columns := AvailableColumns(fields)
	for _, filter := range q.Filters {
		if err := validateFilter(filter, fields); err != nil {
			return err
		}
	}
	if q.GroupBy != "" {
		column, ok := FindColumn(columns, q.GroupBy)
		if !ok || !column.Groupable {
			return fmt.Errorf("%w: cannot group by %s", ErrInvalidQuery, q.GroupBy)
		}
	}
	for _, criterion := range q.SortCriteria {
		column, ok := FindColumn(columns, criterion.Column)
		if !ok || !column.Sortable {
			return fmt.Errorf("%w: cannot sort by %s", ErrInvalidQuery, criterion.Column)
		}
	}
	return nil
}

func validateFilter(filter Filter, fields []CustomField) error {
	kind, ok := filterKinds[filter.Field]
	if !ok {
		id, isCustom := CustomFieldID(filter.Field)
		if !isCustom || !hasField(fields, id) {
			return fmt.Errorf("%w: unknown filter %s", ErrInvalidQuery, filter.Field)
		}
		kind = filterCustom
	}

	allowed := false
	for _, op := range kindOperators[kind] {
		if op == filter.Operator {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: operator %q not allowed for %s", ErrInvalidQuery, filter.Operator, filter.Field)
	}

	switch filter.Operator {
	case OpAny, OpNone, OpOpen, OpClosed:
		return nil
	}
	if len(filter.Values) == 0 {
		return fmt.Errorf("%w: %s requires a value", ErrInvalidQuery, filter.Field)
	}

	switch kind {
	case filterIDs, filterStatus:
		for _, value := range filter.Values {
			if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
				return fmt.Errorf("%w: invalid value %q for %s", ErrInvalidQuery, value, filter.Field)
			}
		}
	case filterInt:
		if _, err := strconv.Atoi(strings.TrimSpace(filter.Values[0])); err != nil {
			return fmt.Errorf("%w: invalid value %q for %s", ErrInvalidQuery, filter.Values[0], filter.Field)
		}
	case filterBool:
		switch strings.TrimSpace(filter.Values[0]) {
		case "0", "1":
		default:
			return fmt.Errorf("%w: invalid value %q for %s", ErrInvalidQuery, filter.Values[0], filter.Field)
		}
	case filterText, filterCustom:
		if strings.TrimSpace(filter.Values[0]) == "" {
			return fmt.Errorf("%w: %s requires a value", ErrInvalidQuery, filter.Field)
		}
	}
	return nil
}

// Columns returns the query's selected columns, falling back to defaults.
// Unknown names are skipped.
func (q *Query) Columns(fields []CustomField) []Column {
	available := AvailableColumns(fields)
	names := DefaultColumnNames
	if q != nil && len(q.ColumnNames) > 0 {
		names = q.ColumnNames
	}
	out := make([]Column, 0, len(names))
	for _, name := range names {
		if column, ok := FindColumn(available, name); ok {
			out = append(out, column)
		}
	}
	return out
}

// InlineColumns returns the selected non-block columns.
func (q *Query) InlineColumns(fields []CustomField) []Column {
	out := []Column{}
	for _, column := range q.Columns(fields) {
		if !column.Block {
			out = append(out, column)
		}
	}
	return out
}

// GroupByColumn returns the grouping column, if any.
func (q *Query) GroupByColumn(fields []CustomField) (Column, bool) {
	if !q.Grouped() {
		return Column{}, false
	}
	return FindColumn(AvailableColumns(fields), q.GroupBy)
}

// ParseSortParam parses "col[:desc],col2" into criteria. Columns that are not
// sortable are dropped, and at most three criteria are kept.
func ParseSortParam(raw string, fields []CustomField) []SortCriterion {
	available := AvailableColumns(fields)
	out := []SortCriterion{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, _ := strings.Cut(part, ":")
		column, ok := FindColumn(available, strings.TrimSpace(name))
		if !ok || !column.Sortable {
			continue
		}
		out = append(out, SortCriterion{Column: column.Name, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")})
		if len(out) == maxSortCriteria {
			break
		}
	}
	return out
}

// FormatSortParam is the inverse of ParseSortParam.
func FormatSortParam(criteria []SortCriterion) string {
	parts := make([]string, 0, len(criteria))
	for _, criterion := range criteria {
		if criterion.Desc {
			parts = append(parts, criterion.Column+":desc")
			continue
		}
		parts = append(parts, criterion.Column)
	}
	return strings.Join(parts, ",")
}

func hasField(fields []CustomField, id int64) bool {
	for _, field := range fields {
		if field.ID == id {
			return true
		}
	}
	return false
}
