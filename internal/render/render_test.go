package render

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inlineedit/internal/i18n"
	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

type fixture struct {
	st       *store.Store
	fields   []models.CustomField
	renderer *Renderer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	seed, err := store.LoadFixtureFile(filepath.Join("..", "store", "testdata", "fixture.yml"))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	ctx := context.Background()
	if _, err := st.Seed(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	catalog, err := st.LoadCatalog(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	fields, err := st.CustomFields(ctx)
	if err != nil {
		t.Fatalf("custom fields: %v", err)
	}
	return fixture{
		st:       st,
		fields:   fields,
		renderer: NewRenderer(englishTranslator(t), catalog, models.DefaultParentSettings(), "/redmine/"),
	}
}

func (f fixture) issue(t *testing.T, id int64) *models.Issue {
	t.Helper()
	issue, err := f.st.GetIssue(context.Background(), id)
	if err != nil {
		t.Fatalf("get issue %d: %v", id, err)
	}
	return issue
}

func (f fixture) column(t *testing.T, name string) models.Column {
	t.Helper()
	column, ok := models.FindColumn(models.AvailableColumns(f.fields), name)
	if !ok {
		t.Fatalf("missing column %s", name)
	}
	return column
}

func englishTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	bundle, err := i18n.Load()
	if err != nil {
		t.Fatalf("load i18n: %v", err)
	}
	return bundle.Translator("en")
}

func TestFormatColumnValue(t *testing.T) {
	r := NewRenderer(englishTranslator(t), nil, models.DefaultParentSettings(), "")
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil", value: nil, want: ""},
		{name: "time", value: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), want: "2024-03-04 05:06"},
		{name: "date", value: models.NewDate(2024, 3, 4), want: "2024-03-04"},
		{name: "nil date", value: (*models.Date)(nil), want: ""},
		{name: "float", value: 3.14159, want: "3.14"},
		{name: "float pointer", value: models.Float64Ptr(2), want: "2.00"},
		{name: "true", value: true, want: "Yes"},
		{name: "false", value: false, want: "No"},
		{name: "named", value: models.Project{Name: "Fish & Chips"}, want: "Fish &amp; Chips"},
		{name: "principal", value: models.Principal{Login: "jdoe"}, want: "jdoe"},
		{name: "text", value: "<b>bold</b>", want: "&lt;b&gt;bold&lt;/b&gt;"},
		{name: "int", value: 42, want: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.FormatColumnValue(tt.value); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestColumnContent(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 1)

	tests := map[string]string{
		"project":         "eCookbook",
		"tracker":         "Bug",
		"status":          "New",
		"priority":        "Normal",
		"assigned_to":     "Dave Lopper",
		"category":        "Printing",
		"fixed_version":   "1.0",
		"start_date":      "2024-01-01",
		"estimated_hours": "1.50",
		"spent_hours":     "3.50",
		"is_private":      "No",
		"cf_2":            "MySQL",
		"cf_3":            "1.50",
	}
	for name, want := range tests {
		if got := string(f.renderer.ColumnContent(f.column(t, name), issue)); got != want {
			t.Fatalf("%s: expected %q, got %q", name, want, got)
		}
	}

	if got := f.renderer.ColumnContent(f.column(t, "category"), f.issue(t, 6)); got != "" {
		t.Fatalf("dangling category should render empty, got %q", got)
	}
}

func TestColumnFormContentBuiltins(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 1)
	ctx := RowContext{}

	tests := []struct {
		column string
		want   []string
	}{
		{column: "tracker", want: []string{`<select name="issues[1][tracker_id]" id="issues_1_tracker_id">`, `<option value="1" selected="selected">Bug</option>`, `<option value="2">Feature</option>`}},
		{column: "status", want: []string{`<option value="5">Closed</option>`}},
		{column: "priority", want: []string{`<option value="4" selected="selected">Normal</option>`}},
		{column: "subject", want: []string{`<input type="text" name="issues[1][subject]" id="issues_1_subject" value="Cannot print recipes" size="20" />`}},
		{column: "assigned_to", want: []string{`<option value=""></option>`, `<option value="3" selected="selected">Dave Lopper</option>`}},
		{column: "estimated_hours", want: []string{`value="1.5" size="3"`}},
		{column: "start_date", want: []string{`<input type="date" name="issues[1][start_date]" id="issues_1_start_date" value="2024-01-01" size="8" />`}},
		{column: "done_ratio", want: []string{`<option value="0" selected="selected">0 %</option>`, `<option value="100">100 %</option>`}},
		{column: "is_private", want: []string{`<input type="hidden" name="issues[1][is_private]" value="0" />`, `<input type="checkbox" name="issues[1][is_private]" id="issues_1_is_private" value="1" />`}},
		{column: "description", want: []string{`<textarea name="issues[1][description]" id="issues_1_description">Printing fails on the second page.</textarea>`}},
		{column: "category", want: []string{`<option value=""></option>`, `<option value="1" selected="selected">Printing</option>`, `<option value="2">Recipes</option>`}},
		{column: "fixed_version", want: []string{`<option value="2" selected="selected">1.0</option>`}},
		{column: "author", want: []string{"John Smith"}},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got := string(f.renderer.ColumnFormContent(f.column(t, tt.column), issue, ctx))
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Fatalf("expected %q in:\n%s", want, got)
				}
			}
		})
	}

	priorities := string(f.renderer.ColumnFormContent(f.column(t, "priority"), issue, ctx))
	if strings.Contains(priorities, "Obsolete") {
		t.Fatalf("inactive priority offered: %s", priorities)
	}
}

func TestColumnFormContentLockedOnParent(t *testing.T) {
	f := newFixture(t)
	parent := f.issue(t, 2)
	ctx := RowContext{HasChildren: true}

	if got := f.renderer.ColumnFormContent(f.column(t, "done_ratio"), parent, ctx); got != "0" {
		t.Fatalf("expected read-only done ratio, got %q", got)
	}
	if got := f.renderer.ColumnFormContent(f.column(t, "priority"), parent, ctx); got != "High" {
		t.Fatalf("expected read-only priority, got %q", got)
	}
	if got := string(f.renderer.ColumnFormContent(f.column(t, "subject"), parent, ctx)); !strings.Contains(got, "<input") {
		t.Fatalf("subject should stay editable, got %q", got)
	}

	leaf := string(f.renderer.ColumnFormContent(f.column(t, "done_ratio"), f.issue(t, 3), RowContext{}))
	if !strings.Contains(leaf, `<option value="30" selected="selected">30 %</option>`) {
		t.Fatalf("leaf done ratio should be editable, got %q", leaf)
	}
}

func TestColumnFormContentKeepsUnofferedValue(t *testing.T) {
	f := newFixture(t)
	got := string(f.renderer.ColumnFormContent(f.column(t, "category"), f.issue(t, 6), RowContext{}))
	if !strings.Contains(got, `<option value="99" selected="selected">99</option>`) {
		t.Fatalf("expected current category to stay selectable, got %s", got)
	}
}

func TestColumnFormContentKeepsOffGridDoneRatio(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 3)
	issue.DoneRatio = 35

	got := string(f.renderer.ColumnFormContent(f.column(t, "done_ratio"), issue, RowContext{}))
	if !strings.Contains(got, `<option value="35" selected="selected">35 %</option>`) {
		t.Fatalf("expected the stored ratio to stay selected, got %s", got)
	}
	if strings.Count(got, `selected="selected"`) != 1 {
		t.Fatalf("expected exactly one selected ratio, got %s", got)
	}
}

func TestColumnFormContentLabelsDisabledTracker(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 1)
	// Support is not enabled for ecookbook.
	issue.TrackerID = 3

	got := string(f.renderer.ColumnFormContent(f.column(t, "tracker"), issue, RowContext{}))
	if !strings.Contains(got, `<option value="3" selected="selected">Support</option>`) {
		t.Fatalf("expected the current tracker labeled by name, got %s", got)
	}
	if !strings.Contains(got, `<option value="1">Bug</option>`) {
		t.Fatalf("expected enabled trackers to stay offered, got %s", got)
	}
}
