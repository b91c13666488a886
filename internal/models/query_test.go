package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestQueryValidate(t *testing.T) {
	fields := []CustomField{{ID: 3, Name: "Team", FieldFormat: FormatList}}

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{name: "empty query", query: Query{}},
		{name: "open statuses", query: Query{Filters: []Filter{{Field: "status_id", Operator: OpOpen}}}},
		{name: "tracker ids", query: Query{Filters: []Filter{{Field: "tracker_id", Operator: OpEquals, Values: []string{"1", "2"}}}}},
		{name: "custom field filter", query: Query{Filters: []Filter{{Field: "cf_3", Operator: OpEquals, Values: []string{"core"}}}}},
		{name: "unknown field", query: Query{Filters: []Filter{{Field: "bogus", Operator: OpEquals, Values: []string{"1"}}}}, wantErr: true},
		{name: "unknown custom field", query: Query{Filters: []Filter{{Field: "cf_9", Operator: OpEquals, Values: []string{"x"}}}}, wantErr: true},
		{name: "bad operator", query: Query{Filters: []Filter{{Field: "subject", Operator: OpOpen}}}, wantErr: true},
		{name: "non numeric id", query: Query{Filters: []Filter{{Field: "tracker_id", Operator: OpEquals, Values: []string{"abc"}}}}, wantErr: true},
		{name: "missing value", query: Query{Filters: []Filter{{Field: "subject", Operator: OpContains}}}, wantErr: true},
		{name: "group by tracker", query: Query{GroupBy: "tracker"}},
		{name: "group by subject", query: Query{GroupBy: "subject"}, wantErr: true},
		{name: "sort by description", query: Query{SortCriteria: []SortCriterion{{Column: "description"}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(fields)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestQueryColumns(t *testing.T) {
	fields := []CustomField{{ID: 7, Name: "Notes", FieldFormat: FormatText}}

	q := &Query{ColumnNames: []string{"subject", "nope", "description", "cf_7", "done_ratio"}}
	got := []string{}
	for _, column := range q.Columns(fields) {
		got = append(got, column.Name)
	}
	if diff := cmp.Diff([]string{"subject", "description", "cf_7", "done_ratio"}, got); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}

	inline := []string{}
	for _, column := range q.InlineColumns(fields) {
		inline = append(inline, column.Name)
	}
	if diff := cmp.Diff([]string{"subject", "done_ratio"}, inline); diff != "" {
		t.Fatalf("inline columns mismatch (-want +got):\n%s", diff)
	}

	var empty *Query
	if len(empty.Columns(nil)) != len(DefaultColumnNames) {
		t.Fatal("expected default columns for nil query")
	}
}

func TestParseSortParam(t *testing.T) {
	got := ParseSortParam("subject:desc, bogus ,id,priority,tracker", nil)
	want := []SortCriterion{{Column: "subject", Desc: true}, {Column: "id"}, {Column: "priority"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sort mismatch (-want +got):\n%s", diff)
	}
	if FormatSortParam(got) != "subject:desc,id,priority" {
		t.Fatalf("unexpected formatted sort: %q", FormatSortParam(got))
	}
}

func TestCustomFieldCastValue(t *testing.T) {
	tests := []struct {
		format string
		raw    string
		want   any
	}{
		{FormatInt, "42", int64(42)},
		{FormatInt, "x", nil},
		{FormatFloat, "1.5", 1.5},
		{FormatBool, "1", true},
		{FormatBool, "0", false},
		{FormatDate, "2024-02-29", NewDate(2024, 2, 29)},
		{FormatList, "core", "core"},
		{FormatString, "  ", nil},
	}
	for _, tt := range tests {
		field := CustomField{FieldFormat: tt.format}
		if got := field.CastValue(tt.raw); got != tt.want {
			t.Fatalf("%s %q: expected %#v, got %#v", tt.format, tt.raw, tt.want, got)
		}
	}
}

func TestCustomFieldEnabledFor(t *testing.T) {
	field := CustomField{TrackerIDs: []int64{1}, ProjectIDs: []int64{10}}
	if !field.EnabledFor(10, 1) {
		t.Fatal("expected field enabled for project 10 tracker 1")
	}
	if field.EnabledFor(11, 1) {
		t.Fatal("expected field disabled for project 11")
	}
	field.IsForAll = true
	if !field.EnabledFor(11, 1) {
		t.Fatal("expected for-all field enabled for any project")
	}
	if field.EnabledFor(11, 2) {
		t.Fatal("expected field disabled for tracker 2")
	}
}

func TestIssueCloneIsDeep(t *testing.T) {
	start := NewDate(2024, 1, 2)
	issue := &Issue{ID: 1, StartDate: &start, EstimatedHours: Float64Ptr(2), CustomValues: map[int64][]string{3: {"a"}}}
	clone := issue.Clone()
	clone.CustomValues[3][0] = "b"
	*clone.EstimatedHours = 5
	if issue.CustomValues[3][0] != "a" || *issue.EstimatedHours != 2 {
		t.Fatalf("clone shares state with original: %+v", issue)
	}
}
