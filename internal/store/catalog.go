package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"inlineedit/internal/models"
)

// LoadCatalog loads every lookup needed to render and validate issues of
// the given projects.
func (s *Store) LoadCatalog(ctx context.Context, projectIDs []int64) (*models.Catalog, error) {
	projectIDs = uniqueIDs(projectIDs)
	catalog := models.NewCatalog()

	if err := s.loadProjects(ctx, catalog, projectIDs); err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	if err := s.loadTrackers(ctx, catalog, projectIDs); err != nil {
		return nil, fmt.Errorf("load trackers: %w", err)
	}
	if err := s.loadStatusesAndPriorities(ctx, catalog); err != nil {
		return nil, err
	}
	if err := s.loadCategoriesAndVersions(ctx, catalog, projectIDs); err != nil {
		return nil, err
	}
	if err := s.loadUsersAndMembers(ctx, catalog, projectIDs); err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	fields, err := s.CustomFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("load custom fields: %w", err)
	}
	catalog.CustomFields = fields
	return catalog, nil
}

func (s *Store) loadProjects(ctx context.Context, catalog *models.Catalog, projectIDs []int64) error {
	if len(projectIDs) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, identifier, name FROM projects WHERE id IN (%s)", placeholders(len(projectIDs))), int64Args(projectIDs)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.Identifier, &project.Name); err != nil {
			return err
		}
		catalog.Projects[project.ID] = project
	}
	return rows.Err()
}

func (s *Store) loadTrackers(ctx context.Context, catalog *models.Catalog, projectIDs []int64) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, position FROM trackers ORDER BY position, id")
	if err != nil {
		return err
	}
	defer rows.Close()
	order := map[int64]int{}
	for rows.Next() {
		var tracker models.Tracker
		if err := rows.Scan(&tracker.ID, &tracker.Name, &tracker.Position); err != nil {
			return err
		}
		order[tracker.ID] = len(order)
		catalog.Trackers[tracker.ID] = tracker
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(projectIDs) == 0 {
		return nil
	}

	linkRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT pt.project_id, pt.tracker_id
		FROM projects_trackers pt
		JOIN trackers t ON t.id = pt.tracker_id
		WHERE pt.project_id IN (%s)
		ORDER BY t.position, t.id
	`, placeholders(len(projectIDs))), int64Args(projectIDs)...)
	if err != nil {
		return err
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var projectID, trackerID int64
		if err := linkRows.Scan(&projectID, &trackerID); err != nil {
			return err
		}
		catalog.ProjectTrackers[projectID] = append(catalog.ProjectTrackers[projectID], trackerID)
	}
	return linkRows.Err()
}

func (s *Store) loadStatusesAndPriorities(ctx context.Context, catalog *models.Catalog) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, is_closed, position FROM issue_statuses ORDER BY position, id")
	if err != nil {
		return fmt.Errorf("load statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status models.IssueStatus
		var closed int
		if err := rows.Scan(&status.ID, &status.Name, &closed, &status.Position); err != nil {
			return err
		}
		status.IsClosed = closed != 0
		catalog.Statuses = append(catalog.Statuses, status)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	priorityRows, err := s.db.QueryContext(ctx, "SELECT id, name, position, active, is_default FROM issue_priorities ORDER BY position, id")
	if err != nil {
		return fmt.Errorf("load priorities: %w", err)
	}
	defer priorityRows.Close()
	for priorityRows.Next() {
		var priority models.IssuePriority
		var active, isDefault int
		if err := priorityRows.Scan(&priority.ID, &priority.Name, &priority.Position, &active, &isDefault); err != nil {
			return err
		}
		priority.Active = active != 0
		priority.IsDefault = isDefault != 0
		catalog.Priorities = append(catalog.Priorities, priority)
	}
	return priorityRows.Err()
}

func (s *Store) loadCategoriesAndVersions(ctx context.Context, catalog *models.Catalog, projectIDs []int64) error {
	if len(projectIDs) == 0 {
		return nil
	}
	in := placeholders(len(projectIDs))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, project_id, name FROM issue_categories WHERE project_id IN (%s) ORDER BY name, id", in), int64Args(projectIDs)...)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category models.IssueCategory
		if err := rows.Scan(&category.ID, &category.ProjectID, &category.Name); err != nil {
			return err
		}
		catalog.ProjectCategories[category.ProjectID] = append(catalog.ProjectCategories[category.ProjectID], category)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	versionRows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, project_id, name, status FROM versions WHERE project_id IN (%s) ORDER BY name, id", in), int64Args(projectIDs)...)
	if err != nil {
		return fmt.Errorf("load versions: %w", err)
	}
	defer versionRows.Close()
	for versionRows.Next() {
		var version models.Version
		if err := versionRows.Scan(&version.ID, &version.ProjectID, &version.Name, &version.Status); err != nil {
			return err
		}
		catalog.ProjectVersions[version.ProjectID] = append(catalog.ProjectVersions[version.ProjectID], version)
	}
	return versionRows.Err()
}

func (s *Store) loadUsersAndMembers(ctx context.Context, catalog *models.Catalog, projectIDs []int64) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, login, firstname, lastname FROM users")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var user models.Principal
		if err := rows.Scan(&user.ID, &user.Login, &user.Firstname, &user.Lastname); err != nil {
			return err
		}
		catalog.Users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(projectIDs) == 0 {
		return nil
	}

	memberRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.project_id, m.user_id
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE u.disabled = 0 AND m.project_id IN (%s)
		ORDER BY u.firstname, u.lastname, u.login
	`, placeholders(len(projectIDs))), int64Args(projectIDs)...)
	if err != nil {
		return err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var projectID, userID int64
		if err := memberRows.Scan(&projectID, &userID); err != nil {
			return err
		}
		catalog.ProjectMembers[projectID] = append(catalog.ProjectMembers[projectID], userID)
	}
	return memberRows.Err()
}

// CustomFields returns every issue custom field with its enablement.
func (s *Store) CustomFields(ctx context.Context) ([]models.CustomField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, field_format, possible_values, is_required, is_for_all, multiple, editable,
			description, default_value, regexp, min_length, max_length, text_formatting, position,
			search_by_click, strict_selection, strict_error_message, form_params
		FROM custom_fields
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []models.CustomField{}
	index := map[int64]int{}
	for rows.Next() {
		field, err := scanCustomField(rows)
		if err != nil {
			return nil, err
		}
		index[field.ID] = len(fields)
		fields = append(fields, *field)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return fields, nil
	}

	links := []struct {
		query string
		apply func(field *models.CustomField, id int64)
	}{
		{
			query: "SELECT custom_field_id, project_id FROM custom_fields_projects ORDER BY project_id",
			apply: func(field *models.CustomField, id int64) { field.ProjectIDs = append(field.ProjectIDs, id) },
		},
		{
			query: "SELECT custom_field_id, tracker_id FROM custom_fields_trackers ORDER BY tracker_id",
			apply: func(field *models.CustomField, id int64) { field.TrackerIDs = append(field.TrackerIDs, id) },
		},
	}
	for _, link := range links {
		if err := s.scanLinks(ctx, link.query, func(fieldID, id int64) {
			if i, ok := index[fieldID]; ok {
				link.apply(&fields[i], id)
			}
		}); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func (s *Store) scanLinks(ctx context.Context, query string, fn func(a, b int64)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b)
	}
	return rows.Err()
}

func scanCustomField(scanner interface {
	Scan(dest ...any) error
}) (*models.CustomField, error) {
	var field models.CustomField
	var possibleValues sql.NullString
	var required, forAll, multiple, editable int
	var searchByClick, strictSelection sql.NullInt64
	var strictMessage sql.NullString

	if err := scanner.Scan(
		&field.ID,
		&field.Name,
		&field.FieldFormat,
		&possibleValues,
		&required,
		&forAll,
		&multiple,
		&editable,
		&field.Description,
		&field.DefaultValue,
		&field.Regexp,
		&field.MinLength,
		&field.MaxLength,
		&field.TextFormatting,
		&field.Position,
		&searchByClick,
		&strictSelection,
		&strictMessage,
		&field.FormParams,
	); err != nil {
		return nil, err
	}

	field.IsRequired = required != 0
	field.IsForAll = forAll != 0
	field.Multiple = multiple != 0
	field.Editable = editable != 0
	if possibleValues.Valid && possibleValues.String != "" {
		if err := yaml.Unmarshal([]byte(possibleValues.String), &field.PossibleValues); err != nil {
			return nil, fmt.Errorf("custom field %d possible values: %w", field.ID, err)
		}
	}
	if searchByClick.Valid {
		v := int(searchByClick.Int64)
		field.SearchByClick = &v
	}
	if strictSelection.Valid {
		v := int(strictSelection.Int64)
		field.StrictSelection = &v
	}
	if strictMessage.Valid {
		v := strictMessage.String
		field.StrictErrorMessage = &v
	}
	return &field, nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	err := s.db.QueryRowContext(ctx, "SELECT id, identifier, name FROM projects WHERE id = ?", id).
		Scan(&project.ID, &project.Identifier, &project.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// FindProject resolves a project by numeric id or identifier.
func (s *Store) FindProject(ctx context.Context, ref string) (*models.Project, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.GetProject(ctx, id)
	}
	var project models.Project
	err := s.db.QueryRowContext(ctx, "SELECT id, identifier, name FROM projects WHERE identifier = ?", ref).
		Scan(&project.ID, &project.Identifier, &project.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetQuery returns a saved query. Filters, columns and sort criteria are
// stored as YAML documents.
func (s *Store) GetQuery(ctx context.Context, id int64) (*models.Query, error) {
	var query models.Query
	var projectID sql.NullInt64
	var filters, columns, sortCriteria sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, filters, column_names, sort_criteria, group_by
		FROM queries
		WHERE id = ?
	`, id).Scan(&query.ID, &projectID, &query.Name, &filters, &columns, &sortCriteria, &query.GroupBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	query.ProjectID = int64FromNull(projectID)
	docs := []struct {
		raw sql.NullString
		dst any
	}{
		{filters, &query.Filters},
		{columns, &query.ColumnNames},
		{sortCriteria, &query.SortCriteria},
	}
	for _, doc := range docs {
		if !doc.raw.Valid || doc.raw.String == "" {
			continue
		}
		if err := yaml.Unmarshal([]byte(doc.raw.String), doc.dst); err != nil {
			return nil, fmt.Errorf("query %d: %w", id, err)
		}
	}
	return &query, nil
}

// CreateQuery stores a query and assigns its id when zero.
func (s *Store) CreateQuery(ctx context.Context, query *models.Query) error {
	return createQuery(ctx, s.db, query)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createQuery(ctx context.Context, db execer, query *models.Query) error {
	if query == nil {
		return fmt.Errorf("query is required")
	}
	filters, err := yamlOrNil(query.Filters, len(query.Filters))
	if err != nil {
		return err
	}
	columns, err := yamlOrNil(query.ColumnNames, len(query.ColumnNames))
	if err != nil {
		return err
	}
	sortCriteria, err := yamlOrNil(query.SortCriteria, len(query.SortCriteria))
	if err != nil {
		return err
	}

	var id any
	if query.ID > 0 {
		id = query.ID
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO queries (id, project_id, name, filters, column_names, sort_criteria, group_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, nullInt64(query.ProjectID), query.Name, filters, columns, sortCriteria, query.GroupBy)
	if err != nil {
		return err
	}
	if query.ID == 0 {
		query.ID, err = result.LastInsertId()
	}
	return err
}

func yamlOrNil(value any, length int) (any, error) {
	if length == 0 {
		return nil, nil
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
