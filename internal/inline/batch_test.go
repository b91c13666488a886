package inline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

func testUpdater(t *testing.T, st *store.Store, settings models.ParentSettings) *BatchUpdater {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBatchUpdater(st, settings, englishTranslator(t), logger)
}

func mustIssue(t *testing.T, st *store.Store, id int64) *models.Issue {
	t.Helper()
	issue, err := st.GetIssue(context.Background(), id)
	if err != nil {
		t.Fatalf("get issue %d: %v", id, err)
	}
	return issue
}

func TestUpdateMultiplePartialSuccess(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.DefaultParentSettings())

	result, err := u.UpdateMultiple(context.Background(), map[int64]Attributes{
		3: {"subject": ""},
		1: {"subject": "Renamed"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if diff := cmp.Diff([]int64{1}, result.UpdatedIDs); diff != "" {
		t.Fatalf("updated ids mismatch (-want +got):\n%s", diff)
	}
	wantFailed := []FailedIssue{{ID: 3, Messages: []string{"Subject cannot be blank"}}}
	if diff := cmp.Diff(wantFailed, result.Failed); diff != "" {
		t.Fatalf("failed mismatch (-want +got):\n%s", diff)
	}
	if result.Message != "Issue 3: Subject cannot be blank" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if result.OK() {
		t.Fatal("result with failures must not be OK")
	}

	if got := mustIssue(t, st, 1); got.Subject != "Renamed" || got.LockVersion != 1 {
		t.Fatalf("issue 1 not saved: %+v", got)
	}
	if got := mustIssue(t, st, 3); got.Subject != "Child one" || got.LockVersion != 0 {
		t.Fatalf("issue 3 should be untouched: %+v", got)
	}
}

func TestUpdateMultipleJoinsMessages(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.DefaultParentSettings())

	result, err := u.UpdateMultiple(context.Background(), map[int64]Attributes{
		4: {"subject": ""},
		3: {"done_ratio": "120"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := "Issue 3: % Done is not included in the list and Issue 4: Subject cannot be blank"
	if result.Message != want {
		t.Fatalf("expected %q, got %q", want, result.Message)
	}
}

func TestUpdateMultipleMasksDerivedParentFields(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.DefaultParentSettings())

	result, err := u.UpdateMultiple(context.Background(), map[int64]Attributes{
		2: {"done_ratio": "50", "priority_id": "3", "subject": "Parent renamed"},
		3: {"done_ratio": "80"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff([]int64{2, 3}, result.UpdatedIDs); diff != "" {
		t.Fatalf("updated ids mismatch (-want +got):\n%s", diff)
	}

	parent := mustIssue(t, st, 2)
	if parent.Subject != "Parent renamed" {
		t.Fatalf("parent subject not saved: %q", parent.Subject)
	}
	if parent.DoneRatio != 0 || parent.PriorityID != 5 {
		t.Fatalf("derived parent fields changed: done=%d priority=%d", parent.DoneRatio, parent.PriorityID)
	}
	if leaf := mustIssue(t, st, 3); leaf.DoneRatio != 80 {
		t.Fatalf("leaf done ratio not saved: %d", leaf.DoneRatio)
	}
}

func TestUpdateMultipleIndependentParentFields(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.ParentSettings{})

	if _, err := u.UpdateMultiple(context.Background(), map[int64]Attributes{2: {"done_ratio": "50"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if parent := mustIssue(t, st, 2); parent.DoneRatio != 50 {
		t.Fatalf("expected done ratio 50, got %d", parent.DoneRatio)
	}
}

func TestUpdateMultipleNotFound(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.DefaultParentSettings())

	for _, payload := range []map[int64]Attributes{{}, {999: {"subject": "x"}}} {
		if _, err := u.UpdateMultiple(context.Background(), payload); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
}

func TestUpdateMultipleIdempotent(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.DefaultParentSettings())
	payload := map[int64]Attributes{1: {
		"subject":             "Twice",
		"custom_field_values": map[string]any{"2": "PostgreSQL"},
	}}

	if _, err := u.UpdateMultiple(context.Background(), payload); err != nil {
		t.Fatalf("first update: %v", err)
	}
	first := mustIssue(t, st, 1)

	result, err := u.UpdateMultiple(context.Background(), payload)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if diff := cmp.Diff([]int64{1}, result.UnchangedIDs); diff != "" {
		t.Fatalf("unchanged ids mismatch (-want +got):\n%s", diff)
	}
	second := mustIssue(t, st, 1)
	if second.LockVersion != first.LockVersion || second.Subject != "Twice" {
		t.Fatalf("second update wrote again: %+v", second)
	}
	if value, _ := second.CustomValue(2); value != "PostgreSQL" {
		t.Fatalf("custom value not saved: %q", value)
	}
}

func TestUpdateMultipleStaleLockVersion(t *testing.T) {
	st := seededStore(t)
	u := testUpdater(t, st, models.DefaultParentSettings())
	ctx := context.Background()

	if _, err := u.UpdateMultiple(ctx, map[int64]Attributes{1: {"subject": "Someone else", LockVersionKey: "0"}}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	result, err := u.UpdateMultiple(ctx, map[int64]Attributes{1: {"subject": "Mine", LockVersionKey: "0"}})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].Messages[0] != englishTranslator(t).T("notice_issue_update_conflict") {
		t.Fatalf("expected conflict, got %+v", result)
	}
	if got := mustIssue(t, st, 1); got.Subject != "Someone else" {
		t.Fatalf("stale write applied: %q", got.Subject)
	}
}
