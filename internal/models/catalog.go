package models

// Catalog bundles the lookups a request needs to render and validate issues
// across one or more projects.
type Catalog struct {
	Projects     map[int64]Project
	Trackers     map[int64]Tracker
	Statuses     []IssueStatus
	Priorities   []IssuePriority
	Users        map[int64]Principal
	CustomFields []CustomField

	ProjectTrackers   map[int64][]int64
	ProjectCategories map[int64][]IssueCategory
	ProjectVersions   map[int64][]Version
	ProjectMembers    map[int64][]int64
}

// NewCatalog returns an empty catalog with initialized maps.
func NewCatalog() *Catalog {
	return &Catalog{
		Projects:          map[int64]Project{},
		Trackers:          map[int64]Tracker{},
		Users:             map[int64]Principal{},
		ProjectTrackers:   map[int64][]int64{},
		ProjectCategories: map[int64][]IssueCategory{},
		ProjectVersions:   map[int64][]Version{},
		ProjectMembers:    map[int64][]int64{},
	}
}

func (c *Catalog) TrackersFor(projectID int64) []Tracker {
	ids := c.ProjectTrackers[projectID]
	out := make([]Tracker, 0, len(ids))
	for _, id := range ids {
		if tracker, ok := c.Trackers[id]; ok {
			out = append(out, tracker)
		}
	}
	return out
}

func (c *Catalog) TrackerEnabled(projectID, trackerID int64) bool {
	for _, id := range c.ProjectTrackers[projectID] {
		if id == trackerID {
			return true
		}
	}
	return false
}

func (c *Catalog) Status(id int64) (IssueStatus, bool) {
	for _, status := range c.Statuses {
		if status.ID == id {
			return status, true
		}
	}
	return IssueStatus{}, false
}

func (c *Catalog) Priority(id int64) (IssuePriority, bool) {
	for _, priority := range c.Priorities {
		if priority.ID == id {
			return priority, true
		}
	}
	return IssuePriority{}, false
}

// ActivePriorities returns the priorities offered in selects.
func (c *Catalog) ActivePriorities() []IssuePriority {
	out := make([]IssuePriority, 0, len(c.Priorities))
	for _, priority := range c.Priorities {
		if priority.Active {
			out = append(out, priority)
		}
	}
	return out
}

func (c *Catalog) Category(projectID, id int64) (IssueCategory, bool) {
	for _, category := range c.ProjectCategories[projectID] {
		if category.ID == id {
			return category, true
		}
	}
	return IssueCategory{}, false
}

func (c *Catalog) Version(projectID, id int64) (Version, bool) {
	for _, version := range c.ProjectVersions[projectID] {
		if version.ID == id {
			return version, true
		}
	}
	return Version{}, false
}

// AnyCategory finds a category regardless of project, for grouping keys.
func (c *Catalog) AnyCategory(id int64) (IssueCategory, bool) {
	for _, categories := range c.ProjectCategories {
		for _, category := range categories {
			if category.ID == id {
				return category, true
			}
		}
	}
	return IssueCategory{}, false
}

// AnyVersion finds a version regardless of project, for grouping keys.
func (c *Catalog) AnyVersion(id int64) (Version, bool) {
	for _, versions := range c.ProjectVersions {
		for _, version := range versions {
			if version.ID == id {
				return version, true
			}
		}
	}
	return Version{}, false
}

// AssignableUsers returns project members in catalog order.
func (c *Catalog) AssignableUsers(projectID int64) []Principal {
	ids := c.ProjectMembers[projectID]
	out := make([]Principal, 0, len(ids))
	for _, id := range ids {
		if user, ok := c.Users[id]; ok {
			out = append(out, user)
		}
	}
	return out
}

func (c *Catalog) IsAssignable(projectID, userID int64) bool {
	for _, id := range c.ProjectMembers[projectID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Catalog) CustomField(id int64) (CustomField, bool) {
	for _, field := range c.CustomFields {
		if field.ID == id {
			return field, true
		}
	}
	return CustomField{}, false
}

// EditableCustomFields returns the fields an issue exposes for editing,
// based on its project and tracker.
func (c *Catalog) EditableCustomFields(issue *Issue) []CustomField {
	out := []CustomField{}
	for _, field := range c.CustomFields {
		if field.Editable && field.EnabledFor(issue.ProjectID, issue.TrackerID) {
			out = append(out, field)
		}
	}
	return out
}
