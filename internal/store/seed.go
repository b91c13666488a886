package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"inlineedit/internal/auth"
	"inlineedit/internal/models"
)

// Fixture is a YAML document describing a complete dataset.
type Fixture struct {
	Projects     []FixtureProject       `yaml:"projects"`
	Trackers     []models.Tracker       `yaml:"trackers"`
	Statuses     []models.IssueStatus   `yaml:"statuses"`
	Priorities   []models.IssuePriority `yaml:"priorities"`
	Categories   []models.IssueCategory `yaml:"categories"`
	Versions     []models.Version       `yaml:"versions"`
	Users        []FixtureUser          `yaml:"users"`
	Members      []FixtureMember        `yaml:"members"`
	CustomFields []models.CustomField   `yaml:"custom_fields"`
	Issues       []FixtureIssue         `yaml:"issues"`
	TimeEntries  []FixtureTimeEntry     `yaml:"time_entries"`
	Queries      []FixtureQuery         `yaml:"queries"`
}

type FixtureProject struct {
	models.Project `yaml:",inline"`
	TrackerIDs     []int64 `yaml:"tracker_ids"`
}

type FixtureUser struct {
	ID           int64  `yaml:"id"`
	Login        string `yaml:"login"`
	Firstname    string `yaml:"firstname"`
	Lastname     string `yaml:"lastname"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	APIKey       string `yaml:"api_key"`
	Admin        bool   `yaml:"admin"`
	Language     string `yaml:"language"`
}

type FixtureMember struct {
	UserID      int64    `yaml:"user_id"`
	ProjectID   int64    `yaml:"project_id"`
	Permissions []string `yaml:"permissions"`
}

type FixtureIssue struct {
	models.Issue `yaml:",inline"`
	StartDate    string `yaml:"start_date"`
	DueDate      string `yaml:"due_date"`
}

type FixtureTimeEntry struct {
	TimeEntry `yaml:",inline"`
	SpentOn   string `yaml:"spent_on"`
}

type FixtureQuery struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	ProjectID   *int64          `yaml:"project_id"`
	Filters     []models.Filter `yaml:"filters"`
	ColumnNames []string        `yaml:"column_names"`
	Sort        string          `yaml:"sort"`
	GroupBy     string          `yaml:"group_by"`
}

// ParseFixture decodes a fixture, rejecting unknown keys.
func ParseFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fixture Fixture
	if err := dec.Decode(&fixture); err != nil {
		if errors.Is(err, io.EOF) {
			return &fixture, nil
		}
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fixture, nil
}

// LoadFixtureFile reads and parses a fixture file.
func LoadFixtureFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(bytes.NewReader(data))
}

// SeedSummary counts inserted rows per kind.
type SeedSummary struct {
	Projects     int `json:"projects"`
	Users        int `json:"users"`
	CustomFields int `json:"custom_fields"`
	Issues       int `json:"issues"`
	TimeEntries  int `json:"time_entries"`
	Queries      int `json:"queries"`
}

// Seed inserts a fixture in one transaction.
func (s *Store) Seed(ctx context.Context, f *Fixture) (*SeedSummary, error) {
	if f == nil {
		return nil, fmt.Errorf("fixture is required")
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"trackers", func() error {
			for _, t := range f.Trackers {
				if _, err := tx.ExecContext(ctx, "INSERT INTO trackers (id, name, position) VALUES (?, ?, ?)", t.ID, t.Name, t.Position); err != nil {
					return err
				}
			}
			return nil
		}},
		{"projects", func() error {
			for _, p := range f.Projects {
				if _, err := tx.ExecContext(ctx, "INSERT INTO projects (id, identifier, name) VALUES (?, ?, ?)", p.ID, p.Identifier, p.Name); err != nil {
					return err
				}
				for _, trackerID := range p.TrackerIDs {
					if _, err := tx.ExecContext(ctx, "INSERT INTO projects_trackers (project_id, tracker_id) VALUES (?, ?)", p.ID, trackerID); err != nil {
						return err
					}
				}
			}
			return nil
		}},
		{"statuses", func() error {
			for _, st := range f.Statuses {
				if _, err := tx.ExecContext(ctx, "INSERT INTO issue_statuses (id, name, is_closed, position) VALUES (?, ?, ?, ?)", st.ID, st.Name, boolInt(st.IsClosed), st.Position); err != nil {
					return err
				}
			}
			return nil
		}},
		{"priorities", func() error {
			for _, p := range f.Priorities {
				if _, err := tx.ExecContext(ctx, "INSERT INTO issue_priorities (id, name, position, active, is_default) VALUES (?, ?, ?, ?, ?)", p.ID, p.Name, p.Position, boolInt(p.Active), boolInt(p.IsDefault)); err != nil {
					return err
				}
			}
			return nil
		}},
		{"categories", func() error {
			for _, c := range f.Categories {
				if _, err := tx.ExecContext(ctx, "INSERT INTO issue_categories (id, project_id, name) VALUES (?, ?, ?)", c.ID, c.ProjectID, c.Name); err != nil {
					return err
				}
			}
			return nil
		}},
		{"versions", func() error {
			for _, v := range f.Versions {
				status := v.Status
				if status == "" {
					status = models.VersionOpen
				}
				if _, err := tx.ExecContext(ctx, "INSERT INTO versions (id, project_id, name, status) VALUES (?, ?, ?, ?)", v.ID, v.ProjectID, v.Name, status); err != nil {
					return err
				}
			}
			return nil
		}},
		{"users", func() error {
			for _, u := range f.Users {
				if err := seedUser(ctx, tx, u, now); err != nil {
					return fmt.Errorf("user %s: %w", u.Login, err)
				}
			}
			return nil
		}},
		{"members", func() error {
			for _, m := range f.Members {
				if err := grantPermissions(ctx, tx, m.UserID, m.ProjectID, m.Permissions); err != nil {
					return err
				}
			}
			return nil
		}},
		{"custom fields", func() error {
			for _, field := range f.CustomFields {
				if err := insertCustomField(ctx, tx, field); err != nil {
					return fmt.Errorf("custom field %d: %w", field.ID, err)
				}
			}
			return nil
		}},
		{"issues", func() error {
			return seedIssues(ctx, tx, f.Issues, now)
		}},
		{"time entries", func() error {
			for _, entry := range f.TimeEntries {
				timeEntry := entry.TimeEntry
				if entry.SpentOn != "" {
					spentOn, err := models.ParseDate(entry.SpentOn)
					if err != nil {
						return err
					}
					timeEntry.SpentOn = spentOn
				}
				if err := insertTimeEntry(ctx, tx, timeEntry, now); err != nil {
					return err
				}
			}
			return nil
		}},
		{"queries", func() error {
			for _, q := range f.Queries {
				query := &models.Query{
					ID:           q.ID,
					Name:         q.Name,
					ProjectID:    q.ProjectID,
					Filters:      q.Filters,
					ColumnNames:  q.ColumnNames,
					SortCriteria: models.ParseSortParam(q.Sort, f.CustomFields),
					GroupBy:      q.GroupBy,
				}
				if err := query.Validate(f.CustomFields); err != nil {
					return fmt.Errorf("query %q: %w", q.Name, err)
				}
				if err := createQuery(ctx, tx, query); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	for _, step := range steps {
		if err = step.fn(); err != nil {
			err = fmt.Errorf("seed %s: %w", step.name, err)
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &SeedSummary{
		Projects:     len(f.Projects),
		Users:        len(f.Users),
		CustomFields: len(f.CustomFields),
		Issues:       len(f.Issues),
		TimeEntries:  len(f.TimeEntries),
		Queries:      len(f.Queries),
	}, nil
}

func seedUser(ctx context.Context, db execer, u FixtureUser, now time.Time) error {
	login, err := auth.NormalizeLogin(u.Login)
	if err != nil {
		return err
	}
	passwordHash := u.PasswordHash
	if u.Password != "" {
		if passwordHash, err = auth.HashPassword(u.Password); err != nil {
			return err
		}
	}
	keyHash := ""
	if u.APIKey != "" {
		keyHash = auth.HashToken(u.APIKey)
	}
	_, err = createUser(ctx, db, NewUser{
		ID:           u.ID,
		Login:        login,
		Firstname:    u.Firstname,
		Lastname:     u.Lastname,
		PasswordHash: passwordHash,
		APIKeyHash:   keyHash,
		Admin:        u.Admin,
		Language:     u.Language,
	}, now)
	return err
}

func insertCustomField(ctx context.Context, tx *sql.Tx, field models.CustomField) error {
	possibleValues, err := yamlOrNil(field.PossibleValues, len(field.PossibleValues))
	if err != nil {
		return err
	}
	editable := field.Editable
	_, err = tx.ExecContext(ctx, `
		INSERT INTO custom_fields (
			id, name, field_format, possible_values, is_required, is_for_all, multiple, editable,
			description, default_value, regexp, min_length, max_length, text_formatting, position,
			search_by_click, strict_selection, strict_error_message, form_params
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		field.ID, field.Name, field.FieldFormat, possibleValues, boolInt(field.IsRequired), boolInt(field.IsForAll),
		boolInt(field.Multiple), boolInt(editable), field.Description, field.DefaultValue, field.Regexp,
		field.MinLength, field.MaxLength, field.TextFormatting, field.Position,
		nullInt(field.SearchByClick), nullInt(field.StrictSelection), nullString(field.StrictErrorMessage), field.FormParams,
	)
	if err != nil {
		return err
	}
	for _, projectID := range field.ProjectIDs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO custom_fields_projects (custom_field_id, project_id) VALUES (?, ?)", field.ID, projectID); err != nil {
			return err
		}
	}
	for _, trackerID := range field.TrackerIDs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO custom_fields_trackers (custom_field_id, tracker_id) VALUES (?, ?)", field.ID, trackerID); err != nil {
			return err
		}
	}
	return nil
}

// seedIssues inserts issues without parents first and links parents once
// every row exists, so fixtures may list children before parents.
func seedIssues(ctx context.Context, tx *sql.Tx, issues []FixtureIssue, now time.Time) error {
	type parentLink struct{ child, parent int64 }
	var links []parentLink

	for _, fixture := range issues {
		issue := fixture.Issue
		var err error
		if issue.StartDate, err = optionalDate(fixture.StartDate); err != nil {
			return fmt.Errorf("issue %d start_date: %w", issue.ID, err)
		}
		if issue.DueDate, err = optionalDate(fixture.DueDate); err != nil {
			return fmt.Errorf("issue %d due_date: %w", issue.ID, err)
		}
		parent := issue.ParentID
		issue.ParentID = nil
		if err := insertIssue(ctx, tx, &issue, now); err != nil {
			return fmt.Errorf("issue %d: %w", fixture.ID, err)
		}
		if parent != nil {
			links = append(links, parentLink{child: issue.ID, parent: *parent})
		}
	}

	for _, link := range links {
		if _, err := tx.ExecContext(ctx, "UPDATE issues SET parent_id = ? WHERE id = ?", link.parent, link.child); err != nil {
			return fmt.Errorf("issue %d parent: %w", link.child, err)
		}
	}
	return nil
}

func optionalDate(raw string) (*models.Date, error) {
	if raw == "" {
		return nil, nil
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
