package inline

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inlineedit/internal/models"
)

func TestApplyAttributesValidation(t *testing.T) {
	st := seededStore(t)
	catalog := testCatalog(t, st)

	tests := []struct {
		name  string
		attrs Attributes
		field string
		key   string
	}{
		{name: "blank subject", attrs: Attributes{"subject": "  "}, field: "subject", key: "blank"},
		{name: "long subject", attrs: Attributes{"subject": strings.Repeat("x", 256)}, field: "subject", key: "too_long"},
		{name: "tracker not in project", attrs: Attributes{"tracker_id": "3"}, field: "tracker_id", key: "inclusion"},
		{name: "unknown status", attrs: Attributes{"status_id": "42"}, field: "status_id", key: "inclusion"},
		{name: "inactive priority", attrs: Attributes{"priority_id": "6"}, field: "priority_id", key: "inclusion"},
		{name: "assignee not a member", attrs: Attributes{"assigned_to_id": "1"}, field: "assigned_to_id", key: "invalid"},
		{name: "category of other project", attrs: Attributes{"category_id": "3"}, field: "category_id", key: "inclusion"},
		{name: "closed version", attrs: Attributes{"fixed_version_id": "1"}, field: "fixed_version_id", key: "inclusion"},
		{name: "bad date", attrs: Attributes{"start_date": "2024-13-01"}, field: "start_date", key: "not_a_date"},
		{name: "due before start", attrs: Attributes{"due_date": "2023-12-31"}, field: "due_date", key: "greater_than_start_date"},
		{name: "done ratio range", attrs: Attributes{"done_ratio": "101"}, field: "done_ratio", key: "inclusion"},
		{name: "negative estimate", attrs: Attributes{"estimated_hours": "-1"}, field: "estimated_hours", key: "greater_than_or_equal_to"},
		{name: "unparsable estimate", attrs: Attributes{"estimated_hours": "soon"}, field: "estimated_hours", key: "invalid"},
		{name: "private flag", attrs: Attributes{"is_private": "maybe"}, field: "is_private", key: "inclusion"},
		{name: "list value", attrs: Attributes{"custom_field_values": map[string]any{"2": "SQLite"}}, field: "cf_2", key: "inclusion"},
		{name: "string length", attrs: Attributes{"custom_field_values": map[string]any{"1": strings.Repeat("y", 21)}}, field: "cf_1", key: "too_long"},
		{name: "float value", attrs: Attributes{"custom_field_values": map[string]any{"3": "lots"}}, field: "cf_3", key: "invalid"},
		{name: "date value", attrs: Attributes{"custom_field_values": map[string]any{"6": "tomorrow"}}, field: "cf_6", key: "not_a_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue, err := st.GetIssue(context.Background(), 1)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			_, errs := ApplyAttributes(issue, tt.attrs, catalog)
			if len(errs) != 1 {
				t.Fatalf("expected one error, got %v", errs)
			}
			if errs[0].Field != tt.field || errs[0].Key != tt.key {
				t.Fatalf("expected %s/%s, got %s/%s", tt.field, tt.key, errs[0].Field, errs[0].Key)
			}
		})
	}
}

func TestApplyAttributesAssignsValues(t *testing.T) {
	st := seededStore(t)
	catalog := testCatalog(t, st)
	issue, err := st.GetIssue(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	changed, errs := ApplyAttributes(issue, Attributes{
		"subject":             " Print again ",
		"status_id":           "2",
		"assigned_to_id":      "",
		"category_id":         "2",
		"due_date":            "2024-02-01",
		"done_ratio":          "40",
		"estimated_hours":     "3,5",
		"is_private":          "1",
		"description":         "line one\r\nline two",
		"custom_field_values": map[string][]string{"2": {"Oracle"}, "3": {""}},
		"unknown":             "ignored",
	}, catalog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if !changed {
		t.Fatal("expected changes")
	}

	if issue.Subject != "Print again" || issue.StatusID != 2 || issue.AssignedToID != nil {
		t.Fatalf("unexpected scalar values %+v", issue)
	}
	if issue.CategoryID == nil || *issue.CategoryID != 2 {
		t.Fatalf("unexpected category %v", issue.CategoryID)
	}
	if issue.DueDate == nil || issue.DueDate.String() != "2024-02-01" {
		t.Fatalf("unexpected due date %v", issue.DueDate)
	}
	if issue.DoneRatio != 40 || issue.EstimatedHours == nil || *issue.EstimatedHours != 3.5 || !issue.IsPrivate {
		t.Fatalf("unexpected numeric values %+v", issue)
	}
	if issue.Description != "line one\nline two" {
		t.Fatalf("unexpected description %q", issue.Description)
	}
	want := map[int64][]string{1: {"abc"}, 2: {"Oracle"}, 3: {""}}
	if diff := cmp.Diff(want, issue.CustomValues); diff != "" {
		t.Fatalf("custom values mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyAttributesUnchanged(t *testing.T) {
	st := seededStore(t)
	catalog := testCatalog(t, st)
	issue, err := st.GetIssue(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	changed, errs := ApplyAttributes(issue, Attributes{
		"subject":             "Cannot print recipes",
		"priority_id":         "4",
		"assigned_to_id":      "3",
		"start_date":          "2024-01-01",
		"estimated_hours":     "1.5",
		"custom_field_values": map[string]any{"2": "MySQL"},
		"unknown":             "x",
	}, catalog)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if changed {
		t.Fatal("expected no changes")
	}
}

func TestApplyAttributesSkipsFieldsNotEditable(t *testing.T) {
	st := seededStore(t)
	catalog := testCatalog(t, st)
	issue, err := st.GetIssue(context.Background(), 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// Issue 2 is a Feature: Database (cf 2) is Bug-only and Internal (cf 7) is not editable.
	changed, errs := ApplyAttributes(issue, Attributes{
		"custom_field_values": map[string]any{"2": "Oracle", "7": "1"},
	}, catalog)
	if changed || len(errs) != 0 {
		t.Fatalf("expected no-op, got changed=%v errs=%v", changed, errs)
	}
}

func TestFieldErrorFullMessage(t *testing.T) {
	tr := englishTranslator(t)

	tests := []struct {
		err  FieldError
		want string
	}{
		{err: FieldError{Field: "subject", Key: "blank"}, want: "Subject cannot be blank"},
		{err: FieldError{Field: "category_id", Key: "inclusion"}, want: "Category is not included in the list"},
		{err: FieldError{Field: "cf_1", Label: "Searchable", Key: "too_long", Args: []any{"count", 20}}, want: "Searchable is too long (maximum is 20 characters)"},
	}
	for _, tt := range tests {
		if got := tt.err.FullMessage(tr); got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestRequiredCustomField(t *testing.T) {
	issue := &models.Issue{ID: 1, ProjectID: 1, TrackerID: 1}
	catalog := models.NewCatalog()
	catalog.CustomFields = []models.CustomField{{
		ID: 9, Name: "Severity", FieldFormat: models.FormatString, IsRequired: true, IsForAll: true,
		Editable: true, TrackerIDs: []int64{1},
	}}

	_, errs := ApplyAttributes(issue, Attributes{"custom_field_values": map[string]any{"9": " "}}, catalog)
	if len(errs) != 1 || errs[0].Key != "blank" || errs[0].Label != "Severity" {
		t.Fatalf("expected blank error, got %v", errs)
	}
}

func TestApplyAttributesKeepsStoredOutOfSetValues(t *testing.T) {
	st := seededStore(t)
	catalog := testCatalog(t, st)
	issue, err := st.GetIssue(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Sybase was dropped from Database.
	issue.CustomValues[2] = []string{"Sybase"}
	issue.DoneRatio = 35

	changed, errs := ApplyAttributes(issue, Attributes{
		"done_ratio":          "35",
		"custom_field_values": map[string]any{"2": "Sybase"},
	}, catalog)
	if changed || len(errs) != 0 {
		t.Fatalf("resubmitted values should be a no-op, got changed=%v errs=%v", changed, errs)
	}

	_, errs = ApplyAttributes(issue, Attributes{
		"custom_field_values": map[string]any{"2": "Informix"},
	}, catalog)
	if len(errs) != 1 || errs[0].Field != "cf_2" || errs[0].Key != "inclusion" {
		t.Fatalf("expected a cf_2 inclusion error, got %v", errs)
	}
}

func TestApplyAttributesKeepsDisabledTracker(t *testing.T) {
	st := seededStore(t)
	catalog := testCatalog(t, st)
	issue, err := st.GetIssue(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Support is not enabled for ecookbook.
	issue.TrackerID = 3

	changed, errs := ApplyAttributes(issue, Attributes{"tracker_id": "3"}, catalog)
	if changed || len(errs) != 0 {
		t.Fatalf("resubmitted tracker should be a no-op, got changed=%v errs=%v", changed, errs)
	}

	issue.TrackerID = 2
	_, errs = ApplyAttributes(issue, Attributes{"tracker_id": "3"}, catalog)
	if len(errs) != 1 || errs[0].Field != "tracker_id" || errs[0].Key != "inclusion" {
		t.Fatalf("expected a tracker inclusion error, got %v", errs)
	}
}
