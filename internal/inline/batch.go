package inline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"inlineedit/internal/i18n"
	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

// IssueRepository is the persistence the batch updater needs.
type IssueRepository interface {
	GetIssues(ctx context.Context, ids []int64) ([]models.Issue, error)
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	SaveIssue(ctx context.Context, issue *models.Issue, expectedLockVersion int) error
	LoadCatalog(ctx context.Context, projectIDs []int64) (*models.Catalog, error)
}

// FailedIssue lists the localized messages of one rejected record.
type FailedIssue struct {
	ID       int64    `json:"id"`
	Messages []string `json:"messages"`
}

// BatchResult summarizes an UpdateMultiple call.
type BatchResult struct {
	UpdatedIDs   []int64       `json:"updated_ids"`
	UnchangedIDs []int64       `json:"unchanged_ids"`
	Failed       []FailedIssue `json:"failed"`
	// Message joins every failure message into one sentence.
	Message string `json:"message,omitempty"`
}

// OK reports whether every record was saved or left unchanged.
func (r BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// BatchUpdater applies submitted attribute maps to many issues. Each
// record is saved on its own; a failure never rolls back its neighbours.
type BatchUpdater struct {
	repo     IssueRepository
	settings models.ParentSettings
	tr       *i18n.Translator
	logger   *slog.Logger
}

func NewBatchUpdater(repo IssueRepository, settings models.ParentSettings, tr *i18n.Translator, logger *slog.Logger) *BatchUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchUpdater{repo: repo, settings: settings, tr: tr, logger: logger.With("component", "inline")}
}

// UpdateMultiple updates every existing issue named in payload, in
// ascending id order. It returns ErrNotFound when none of the ids exist.
func (u *BatchUpdater) UpdateMultiple(ctx context.Context, payload map[int64]Attributes) (BatchResult, error) {
	result := BatchResult{UpdatedIDs: []int64{}, UnchangedIDs: []int64{}, Failed: []FailedIssue{}}

	ids := make([]int64, 0, len(payload))
	for id := range payload {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	existing, err := u.repo.GetIssues(ctx, ids)
	if err != nil {
		return result, err
	}
	if len(existing) == 0 {
		return result, ErrNotFound
	}

	projectIDs := make([]int64, 0, len(existing))
	for _, issue := range existing {
		projectIDs = append(projectIDs, issue.ProjectID)
	}
	catalog, err := u.repo.LoadCatalog(ctx, projectIDs)
	if err != nil {
		return result, err
	}

	var messages []string
	for _, loaded := range existing {
		outcome, failures, err := u.updateOne(ctx, loaded.ID, payload[loaded.ID], catalog)
		if err != nil {
			return result, fmt.Errorf("update issue %d: %w", loaded.ID, err)
		}
		switch outcome {
		case outcomeUpdated:
			result.UpdatedIDs = append(result.UpdatedIDs, loaded.ID)
		case outcomeUnchanged:
			result.UnchangedIDs = append(result.UnchangedIDs, loaded.ID)
		case outcomeFailed:
			prefixed := make([]string, 0, len(failures))
			for _, failure := range failures {
				prefixed = append(prefixed, u.tr.T("label_issue")+" "+strconv.FormatInt(loaded.ID, 10)+": "+failure)
			}
			result.Failed = append(result.Failed, FailedIssue{ID: loaded.ID, Messages: failures})
			messages = append(messages, prefixed...)
		}
	}

	result.Message = u.tr.ToSentence(messages)
	u.logger.Debug("inline update finished",
		"requested", len(ids),
		"updated", len(result.UpdatedIDs),
		"unchanged", len(result.UnchangedIDs),
		"failed", len(result.Failed),
	)
	return result, nil
}

type outcome int

const (
	outcomeUpdated outcome = iota
	outcomeUnchanged
	outcomeFailed
)

func (u *BatchUpdater) updateOne(ctx context.Context, id int64, attrs Attributes, catalog *models.Catalog) (outcome, []string, error) {
	issue, err := u.repo.GetIssue(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted since the batch was loaded.
		return outcomeUnchanged, nil, nil
	}
	if err != nil {
		return outcomeFailed, nil, err
	}

	attrs = attrs.Clone()
	expected := issue.LockVersion
	if raw, ok := attrs[LockVersionKey]; ok {
		delete(attrs, LockVersionKey)
		value, err := scalarValue(raw)
		if err == nil {
			if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				expected = parsed
			}
		}
	}

	children, err := u.repo.CountChildren(ctx, id)
	if err != nil {
		return outcomeFailed, nil, err
	}
	attrs = Mask(attrs, children > 0, u.settings)

	changed, fieldErrs := ApplyAttributes(issue, attrs, catalog)
	if len(fieldErrs) > 0 {
		messages := make([]string, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			messages = append(messages, fieldErr.FullMessage(u.tr))
		}
		u.logger.Debug("inline update rejected", "issue_id", id, "errors", len(fieldErrs))
		return outcomeFailed, messages, nil
	}
	if !changed {
		return outcomeUnchanged, nil, nil
	}

	err = u.repo.SaveIssue(ctx, issue, expected)
	switch {
	case errors.Is(err, store.ErrStaleObject):
		u.logger.Warn("inline update conflict", "issue_id", id, "lock_version", expected)
		return outcomeFailed, []string{u.tr.T("notice_issue_update_conflict")}, nil
	case errors.Is(err, store.ErrNotFound):
		return outcomeUnchanged, nil, nil
	case err != nil:
		return outcomeFailed, nil, err
	}
	return outcomeUpdated, nil, nil
}
