package models

import (
	"fmt"
	"sort"
	"strings"
)

// PermissionInlineEdit is the project permission guarding both inline edit actions.
const PermissionInlineEdit = "issues_inline_edit"

// ParentMode controls how a parent issue attribute is computed.
type ParentMode string

const (
	ParentModeDerived     ParentMode = "derived"
	ParentModeIndependent ParentMode = "independent"
)

// Inline-editable issue attribute names, as submitted by the edit form.
const (
	FieldTrackerID      = "tracker_id"
	FieldStatusID       = "status_id"
	FieldPriorityID     = "priority_id"
	FieldSubject        = "subject"
	FieldAssignedToID   = "assigned_to_id"
	FieldCategoryID     = "category_id"
	FieldFixedVersionID = "fixed_version_id"
	FieldStartDate      = "start_date"
	FieldDueDate        = "due_date"
	FieldDoneRatio      = "done_ratio"
	FieldEstimatedHours = "estimated_hours"
	FieldIsPrivate      = "is_private"
	FieldDescription    = "description"
	FieldCustomValues   = "custom_field_values"
)

var inlineEditableFields = []string{
	FieldTrackerID,
	FieldStatusID,
	FieldPriorityID,
	FieldSubject,
	FieldAssignedToID,
	FieldCategoryID,
	FieldFixedVersionID,
	FieldStartDate,
	FieldDueDate,
	FieldDoneRatio,
	FieldEstimatedHours,
	FieldIsPrivate,
	FieldDescription,
}

// ParentSettings holds the three derived-field flags for parent issues.
type ParentSettings struct {
	DoneRatioDerived bool
	DatesDerived     bool
	PriorityDerived  bool
}

// DefaultParentSettings mirrors a fresh tracker install: everything derived.
func DefaultParentSettings() ParentSettings {
	return ParentSettings{DoneRatioDerived: true, DatesDerived: true, PriorityDerived: true}
}

func ParseParentMode(raw string) (ParentMode, error) {
	value := ParentMode(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case ParentModeDerived, ParentModeIndependent:
		return value, nil
	case "":
		return "", fmt.Errorf("parent mode is required")
	default:
		return "", fmt.Errorf("invalid parent mode: %s", value)
	}
}

// NewParentSettings builds settings from the three configured modes.
func NewParentSettings(doneRatio, dates, priority string) (ParentSettings, error) {
	var s ParentSettings
	modes := []struct {
		raw string
		dst *bool
	}{
		{doneRatio, &s.DoneRatioDerived},
		{dates, &s.DatesDerived},
		{priority, &s.PriorityDerived},
	}
	for _, m := range modes {
		mode, err := ParseParentMode(m.raw)
		if err != nil {
			return ParentSettings{}, err
		}
		*m.dst = mode == ParentModeDerived
	}
	return s, nil
}

// FieldSet is a set of attribute names.
type FieldSet map[string]struct{}

func NewFieldSet(names ...string) FieldSet {
	set := make(FieldSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s FieldSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InlineEditableFields returns every built-in attribute the inline form can submit.
func InlineEditableFields() FieldSet {
	return NewFieldSet(inlineEditableFields...)
}
