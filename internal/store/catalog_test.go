package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inlineedit/internal/models"
)

func TestLoadCatalog(t *testing.T) {
	st := seededStore(t)

	catalog, err := st.LoadCatalog(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	if _, ok := catalog.Projects[1]; !ok {
		t.Fatal("expected project 1")
	}
	if _, ok := catalog.Projects[2]; ok {
		t.Fatal("did not expect project 2")
	}

	var trackers []string
	for _, tracker := range catalog.TrackersFor(1) {
		trackers = append(trackers, tracker.Name)
	}
	if diff := cmp.Diff([]string{"Bug", "Feature"}, trackers); diff != "" {
		t.Fatalf("trackers mismatch (-want +got):\n%s", diff)
	}

	if got := len(catalog.ActivePriorities()); got != 3 {
		t.Fatalf("expected 3 active priorities, got %d", got)
	}

	var members []string
	for _, user := range catalog.AssignableUsers(1) {
		members = append(members, user.DisplayName())
	}
	if diff := cmp.Diff([]string{"Dave Lopper", "John Smith", "Robert Hill"}, members); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}

	if _, ok := catalog.Version(1, 2); !ok {
		t.Fatal("expected version 2 in project 1")
	}
	if _, ok := catalog.Category(1, 3); ok {
		t.Fatal("category 3 belongs to project 2")
	}
}

func TestCustomFieldsRoundTrip(t *testing.T) {
	st := seededStore(t)

	fields, err := st.CustomFields(context.Background())
	if err != nil {
		t.Fatalf("custom fields: %v", err)
	}
	if len(fields) != 7 {
		t.Fatalf("expected 7 fields, got %d", len(fields))
	}

	list := fields[1]
	if diff := cmp.Diff([]string{"MySQL", "PostgreSQL", "Oracle"}, list.PossibleValues); diff != "" {
		t.Fatalf("possible values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1}, list.ProjectIDs); diff != "" {
		t.Fatalf("project ids mismatch (-want +got):\n%s", diff)
	}

	search := fields[3]
	if search.SearchByClick == nil || *search.SearchByClick != 1 {
		t.Fatalf("expected search_by_click 1, got %v", search.SearchByClick)
	}
	if search.StrictSelection != nil || search.StrictErrorMessage != nil {
		t.Fatal("expected unset sql_search options to stay nil")
	}
	if search.FormParams == "" {
		t.Fatal("expected form params")
	}
	if fields[6].Editable {
		t.Fatal("expected field 7 to be read-only")
	}
}

func TestGetQuery(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	q, err := st.GetQuery(ctx, 1)
	if err != nil {
		t.Fatalf("get query: %v", err)
	}
	want := &models.Query{
		ID:           1,
		Name:         "Open bugs",
		ProjectID:    models.Int64Ptr(1),
		Filters:      []models.Filter{{Field: "status_id", Operator: "o"}},
		ColumnNames:  []string{"tracker", "status", "subject", "estimated_hours", "spent_hours", "cf_2"},
		SortCriteria: []models.SortCriterion{{Column: "id", Desc: true}},
	}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}

	if _, err := st.GetQuery(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindProject(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	byIdentifier, err := st.FindProject(ctx, "onlinestore")
	if err != nil {
		t.Fatalf("find by identifier: %v", err)
	}
	byID, err := st.FindProject(ctx, "2")
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if diff := cmp.Diff(byIdentifier, byID); diff != "" {
		t.Fatalf("project mismatch (-identifier +id):\n%s", diff)
	}
	if _, err := st.FindProject(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
