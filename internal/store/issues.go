package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"inlineedit/internal/models"
)

const issueColumns = `i.id, i.project_id, i.parent_id, i.tracker_id, i.status_id, i.priority_id, i.author_id,
	i.assigned_to_id, i.category_id, i.fixed_version_id, i.subject, i.description, i.start_date, i.due_date,
	i.done_ratio, i.estimated_hours, i.is_private, i.lock_version, i.created_on, i.updated_on,
	` + spentHoursExpr

const spentHoursExpr = `COALESCE((SELECT SUM(te.hours) FROM time_entries te WHERE te.issue_id = i.id), 0)`

// TimeEntry is logged work against an issue.
type TimeEntry struct {
	IssueID  int64       `yaml:"issue_id"`
	UserID   int64       `yaml:"user_id"`
	Hours    float64     `yaml:"hours"`
	SpentOn  models.Date `yaml:"-"`
	Comments string      `yaml:"comments"`
}

// GetIssue returns one issue with its custom values.
func (s *Store) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+issueColumns+" FROM issues i WHERE i.id = ?", id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	issues := []models.Issue{*issue}
	if err := s.loadCustomValues(ctx, issues); err != nil {
		return nil, err
	}
	return &issues[0], nil
}

// GetIssues returns the existing issues among ids in ascending id order.
// Missing ids are skipped.
func (s *Store) GetIssues(ctx context.Context, ids []int64) ([]models.Issue, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Issue{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM issues i WHERE i.id IN (%s) ORDER BY i.id ASC", issueColumns, placeholders(len(ids)))
	return s.queryIssues(ctx, query, int64Args(ids)...)
}

// IssueProjects maps each existing issue id to its project id.
func (s *Store) IssueProjects(ctx context.Context, ids []int64) (map[int64]int64, error) {
	ids = uniqueIDs(ids)
	result := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, project_id FROM issues WHERE id IN (%s)", placeholders(len(ids))), int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, projectID int64
		if err := rows.Scan(&id, &projectID); err != nil {
			return nil, err
		}
		result[id] = projectID
	}
	return result, rows.Err()
}

// CountChildren returns the number of direct subtasks of an issue.
func (s *Store) CountChildren(ctx context.Context, id int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM issues WHERE parent_id = ?", id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateIssue inserts a new issue. A zero ID is assigned by the database.
func (s *Store) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue == nil {
		return fmt.Errorf("issue is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertIssue(ctx, tx, issue, s.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func insertIssue(ctx context.Context, tx *sql.Tx, issue *models.Issue, now time.Time) error {
	if issue.CreatedOn.IsZero() {
		issue.CreatedOn = now
	}
	if issue.UpdatedOn.IsZero() {
		issue.UpdatedOn = issue.CreatedOn
	}

	var id any
	if issue.ID > 0 {
		id = issue.ID
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO issues (
			id, project_id, parent_id, tracker_id, status_id, priority_id, author_id, assigned_to_id,
			category_id, fixed_version_id, subject, description, start_date, due_date, done_ratio,
			estimated_hours, is_private, lock_version, created_on, updated_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		issue.ProjectID,
		nullInt64(issue.ParentID),
		issue.TrackerID,
		issue.StatusID,
		issue.PriorityID,
		issue.AuthorID,
		nullInt64(issue.AssignedToID),
		nullInt64(issue.CategoryID),
		nullInt64(issue.FixedVersionID),
		issue.Subject,
		nullIfEmpty(issue.Description),
		nullDate(issue.StartDate),
		nullDate(issue.DueDate),
		issue.DoneRatio,
		nullFloat(issue.EstimatedHours),
		boolInt(issue.IsPrivate),
		issue.LockVersion,
		formatTime(issue.CreatedOn),
		formatTime(issue.UpdatedOn),
	)
	if err != nil {
		return err
	}
	if issue.ID == 0 {
		if issue.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}
	return replaceCustomValues(ctx, tx, issue.ID, issue.CustomValues)
}

// SaveIssue persists issue attributes and its custom values in one
// transaction. The write only applies when the stored lock_version still
// equals expectedLockVersion; otherwise ErrStaleObject is returned.
func (s *Store) SaveIssue(ctx context.Context, issue *models.Issue, expectedLockVersion int) error {
	if issue == nil {
		return fmt.Errorf("issue is required")
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE issues SET
			parent_id = ?, tracker_id = ?, status_id = ?, priority_id = ?, assigned_to_id = ?,
			category_id = ?, fixed_version_id = ?, subject = ?, description = ?, start_date = ?,
			due_date = ?, done_ratio = ?, estimated_hours = ?, is_private = ?,
			lock_version = lock_version + 1, updated_on = ?
		WHERE id = ? AND lock_version = ?
	`,
		nullInt64(issue.ParentID),
		issue.TrackerID,
		issue.StatusID,
		issue.PriorityID,
		nullInt64(issue.AssignedToID),
		nullInt64(issue.CategoryID),
		nullInt64(issue.FixedVersionID),
		issue.Subject,
		nullIfEmpty(issue.Description),
		nullDate(issue.StartDate),
		nullDate(issue.DueDate),
		issue.DoneRatio,
		nullFloat(issue.EstimatedHours),
		boolInt(issue.IsPrivate),
		formatTime(now),
		issue.ID,
		expectedLockVersion,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, "SELECT 1 FROM issues WHERE id = ?", issue.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("issue %d: %w", issue.ID, ErrNotFound)
			return err
		}
		if err != nil {
			return err
		}
		err = fmt.Errorf("issue %d: %w", issue.ID, ErrStaleObject)
		return err
	}

	if err = replaceCustomValues(ctx, tx, issue.ID, issue.CustomValues); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	issue.LockVersion = expectedLockVersion + 1
	issue.UpdatedOn = now
	return nil
}

// AddTimeEntry logs hours against an issue.
func (s *Store) AddTimeEntry(ctx context.Context, entry TimeEntry) error {
	return insertTimeEntry(ctx, s.db, entry, s.now().UTC())
}

func insertTimeEntry(ctx context.Context, db execer, entry TimeEntry, now time.Time) error {
	spentOn := entry.SpentOn
	if spentOn.IsZero() {
		spentOn = models.NewDate(now.Year(), now.Month(), now.Day())
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO time_entries (issue_id, user_id, hours, spent_on, comments)
		VALUES (?, ?, ?, ?, ?)
	`, entry.IssueID, entry.UserID, entry.Hours, spentOn.String(), entry.Comments)
	return err
}

func (s *Store) queryIssues(ctx context.Context, query string, args ...any) ([]models.Issue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := []models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadCustomValues(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (s *Store) loadCustomValues(ctx context.Context, issues []models.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	index := make(map[int64]int, len(issues))
	ids := make([]int64, 0, len(issues))
	for i := range issues {
		index[issues[i].ID] = i
		ids = append(ids, issues[i].ID)
		issues[i].CustomValues = map[int64][]string{}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT customized_id, custom_field_id, value
		FROM custom_values
		WHERE customized_id IN (%s)
		ORDER BY id ASC
	`, placeholders(len(ids))), int64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var issueID, fieldID int64
		var value string
		if err := rows.Scan(&issueID, &fieldID, &value); err != nil {
			return err
		}
		i, ok := index[issueID]
		if !ok {
			continue
		}
		issues[i].CustomValues[fieldID] = append(issues[i].CustomValues[fieldID], value)
	}
	return rows.Err()
}

// replaceCustomValues rewrites the stored values of every field present in
// values. Fields absent from the map keep their stored values.
func replaceCustomValues(ctx context.Context, tx *sql.Tx, issueID int64, values map[int64][]string) error {
	fieldIDs := make([]int64, 0, len(values))
	for fieldID := range values {
		fieldIDs = append(fieldIDs, fieldID)
	}
	sort.Slice(fieldIDs, func(a, b int) bool { return fieldIDs[a] < fieldIDs[b] })

	for _, fieldID := range fieldIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM custom_values WHERE customized_id = ? AND custom_field_id = ?", issueID, fieldID); err != nil {
			return err
		}
		for _, value := range values[fieldID] {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO custom_values (customized_id, custom_field_id, value) VALUES (?, ?, ?)
			`, issueID, fieldID, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func scanIssue(scanner interface {
	Scan(dest ...any) error
}) (*models.Issue, error) {
	var issue models.Issue
	var parentID, assignedToID, categoryID, versionID sql.NullInt64
	var description, startDate, dueDate sql.NullString
	var estimated sql.NullFloat64
	var isPrivate int
	var createdOn, updatedOn string

	if err := scanner.Scan(
		&issue.ID,
		&issue.ProjectID,
		&parentID,
		&issue.TrackerID,
		&issue.StatusID,
		&issue.PriorityID,
		&issue.AuthorID,
		&assignedToID,
		&categoryID,
		&versionID,
		&issue.Subject,
		&description,
		&startDate,
		&dueDate,
		&issue.DoneRatio,
		&estimated,
		&isPrivate,
		&issue.LockVersion,
		&createdOn,
		&updatedOn,
		&issue.SpentHours,
	); err != nil {
		return nil, err
	}

	issue.ParentID = int64FromNull(parentID)
	issue.AssignedToID = int64FromNull(assignedToID)
	issue.CategoryID = int64FromNull(categoryID)
	issue.FixedVersionID = int64FromNull(versionID)
	issue.Description = description.String
	issue.IsPrivate = isPrivate != 0
	if estimated.Valid {
		issue.EstimatedHours = models.Float64Ptr(estimated.Float64)
	}

	var err error
	if issue.StartDate, err = dateFromNull(startDate); err != nil {
		return nil, err
	}
	if issue.DueDate, err = dateFromNull(dueDate); err != nil {
		return nil, err
	}
	if issue.CreatedOn, err = parseTime(createdOn); err != nil {
		return nil, err
	}
	if issue.UpdatedOn, err = parseTime(updatedOn); err != nil {
		return nil, err
	}
	return &issue, nil
}

func int64FromNull(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	return models.Int64Ptr(value.Int64)
}

func dateFromNull(value sql.NullString) (*models.Date, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	date, err := models.ParseDate(value.String)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func nullDate(value *models.Date) any {
	if value == nil {
		return nil
	}
	return value.String()
}

func nullFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
