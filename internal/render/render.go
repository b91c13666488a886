// Package render turns issue columns into HTML: read-only cell values and
// the per-row inline form controls of the edit page.
package render

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"inlineedit/internal/i18n"
	"inlineedit/internal/inline"
	"inlineedit/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// Renderer renders cells for one request: one locale, one catalog.
type Renderer struct {
	tr       *i18n.Translator
	catalog  *models.Catalog
	settings models.ParentSettings
	// root is the relative URL root prepended to generated links.
	root string
}

func NewRenderer(tr *i18n.Translator, catalog *models.Catalog, settings models.ParentSettings, root string) *Renderer {
	if catalog == nil {
		catalog = models.NewCatalog()
	}
	return &Renderer{tr: tr, catalog: catalog, settings: settings, root: strings.TrimRight(root, "/")}
}

// RowContext carries per-row facts the renderer cannot derive from the issue.
type RowContext struct {
	HasChildren bool
}

// FormatColumnValue renders a display value as escaped text.
func (r *Renderer) FormatColumnValue(v any) string {
	var out string
	switch value := v.(type) {
	case nil:
		return ""
	case time.Time:
		out = value.Format(timeLayout)
	case models.Date:
		out = value.String()
	case *models.Date:
		if value == nil {
			return ""
		}
		out = value.String()
	case float64:
		out = fmt.Sprintf("%.2f", value)
	case *float64:
		if value == nil {
			return ""
		}
		out = fmt.Sprintf("%.2f", *value)
	case bool:
		out = r.tr.YesNo(value)
	case models.Displayable:
		out = value.DisplayName()
	default:
		out = fmt.Sprint(value)
	}
	return template.HTMLEscapeString(out)
}

// ColumnValue returns the raw display value of column for issue. Lookups
// that no longer resolve yield nil.
func (r *Renderer) ColumnValue(column models.Column, issue *models.Issue) any {
	if column.CustomField != nil {
		values := issue.CustomValues[column.CustomField.ID]
		switch len(values) {
		case 0:
			return nil
		case 1:
			return column.CustomField.CastValue(values[0])
		default:
			return strings.Join(values, ", ")
		}
	}

	c := r.catalog
	switch column.Name {
	case "id":
		return issue.ID
	case "project":
		return lookup(c.Projects, issue.ProjectID)
	case "tracker":
		return lookup(c.Trackers, issue.TrackerID)
	case "parent":
		if issue.ParentID == nil {
			return nil
		}
		return models.IssueRef{ID: *issue.ParentID}
	case "status":
		if status, ok := c.Status(issue.StatusID); ok {
			return status
		}
	case "priority":
		if priority, ok := c.Priority(issue.PriorityID); ok {
			return priority
		}
	case "subject":
		return issue.Subject
	case "author":
		return lookup(c.Users, issue.AuthorID)
	case "assigned_to":
		if issue.AssignedToID == nil {
			return nil
		}
		return lookup(c.Users, *issue.AssignedToID)
	case "category":
		if issue.CategoryID == nil {
			return nil
		}
		if category, ok := c.Category(issue.ProjectID, *issue.CategoryID); ok {
			return category
		}
	case "fixed_version":
		if issue.FixedVersionID == nil {
			return nil
		}
		if version, ok := c.Version(issue.ProjectID, *issue.FixedVersionID); ok {
			return version
		}
	case "start_date":
		return issue.StartDate
	case "due_date":
		return issue.DueDate
	case "estimated_hours":
		return issue.EstimatedHours
	case "spent_hours":
		return issue.SpentHours
	case "done_ratio":
		return issue.DoneRatio
	case "is_private":
		return issue.IsPrivate
	case "created_on":
		return issue.CreatedOn
	case "updated_on":
		return issue.UpdatedOn
	case "description":
		return issue.Description
	}
	return nil
}

func lookup[T models.Displayable](values map[int64]T, id int64) any {
	if value, ok := values[id]; ok {
		return value
	}
	return nil
}

// ColumnContent renders the read-only cell of column.
func (r *Renderer) ColumnContent(column models.Column, issue *models.Issue) template.HTML {
	return template.HTML(r.FormatColumnValue(r.ColumnValue(column, issue)))
}

// ColumnFormContent renders the inline editor of column for issue. Fields
// locked on parent issues, and columns without an editor, render read-only.
func (r *Renderer) ColumnFormContent(column models.Column, issue *models.Issue, ctx RowContext) template.HTML {
	if column.CustomField != nil {
		return r.customFieldContent(*column.CustomField, issue)
	}

	attribute, ok := columnAttributes[column.Name]
	if !ok {
		return r.ColumnContent(column, issue)
	}
	if inline.LockedFields(ctx.HasChildren, r.settings).Has(attribute) {
		return r.ColumnContent(column, issue)
	}

	f := formField{issueID: issue.ID, attribute: attribute}
	switch column.Name {
	case "tracker":
		options := make([]option, 0)
		for _, tracker := range r.catalog.TrackersFor(issue.ProjectID) {
			options = append(options, idOption(tracker.ID, tracker.Name))
		}
		current := formatID(issue.TrackerID)
		return f.selectTag(ensureOption(options, current, r.catalog.Trackers[issue.TrackerID].Name), current)
	case "status":
		options := make([]option, 0, len(r.catalog.Statuses))
		for _, status := range r.catalog.Statuses {
			options = append(options, idOption(status.ID, status.Name))
		}
		return f.selectTag(options, formatID(issue.StatusID))
	case "priority":
		options := make([]option, 0, len(r.catalog.Priorities))
		for _, priority := range r.catalog.ActivePriorities() {
			options = append(options, idOption(priority.ID, priority.Name))
		}
		priority, _ := r.catalog.Priority(issue.PriorityID)
		current := formatID(issue.PriorityID)
		return f.selectTag(ensureOption(options, current, priority.Name), current)
	case "subject":
		return f.input("text", issue.Subject, attr{"size", "20"})
	case "assigned_to":
		options := []option{{}}
		for _, user := range r.catalog.AssignableUsers(issue.ProjectID) {
			options = append(options, idOption(user.ID, user.DisplayName()))
		}
		current := formatOptionalID(issue.AssignedToID)
		var label string
		if issue.AssignedToID != nil {
			if user, ok := r.catalog.Users[*issue.AssignedToID]; ok {
				label = user.DisplayName()
			}
		}
		return f.selectTag(ensureOption(options, current, label), current)
	case "estimated_hours":
		value := ""
		if issue.EstimatedHours != nil {
			value = strconv.FormatFloat(*issue.EstimatedHours, 'f', -1, 64)
		}
		return f.input("text", value, attr{"size", "3"})
	case "start_date":
		return f.input("date", dateValue(issue.StartDate), attr{"size", "8"})
	case "due_date":
		return f.input("date", dateValue(issue.DueDate), attr{"size", "8"})
	case "done_ratio":
		options := make([]option, 0, 11)
		for ratio := 0; ratio <= 100; ratio += 10 {
			options = append(options, doneRatioOption(ratio))
		}
		current := doneRatioOption(issue.DoneRatio)
		return f.selectTag(ensureOption(options, current.value, current.label), current.value)
	case "is_private":
		hidden := inputTag("hidden", attr{"name", f.name()}, attr{"value", "0"})
		checkbox := []attr{{"name", f.name()}, {"id", f.id()}, {"value", "1"}}
		if issue.IsPrivate {
			checkbox = append(checkbox, attr{"checked", "checked"})
		}
		return hidden + inputTag("checkbox", checkbox...)
	case "description":
		return textareaTag(issue.Description, attr{"name", f.name()}, attr{"id", f.id()})
	case "category":
		options := []option{{}}
		for _, category := range r.catalog.ProjectCategories[issue.ProjectID] {
			options = append(options, idOption(category.ID, category.Name))
		}
		var label string
		if issue.CategoryID != nil {
			category, _ := r.catalog.AnyCategory(*issue.CategoryID)
			label = category.Name
		}
		current := formatOptionalID(issue.CategoryID)
		return f.selectTag(ensureOption(options, current, label), current)
	case "fixed_version":
		options := []option{{}}
		for _, version := range r.catalog.ProjectVersions[issue.ProjectID] {
			options = append(options, idOption(version.ID, version.Name))
		}
		var label string
		if issue.FixedVersionID != nil {
			version, _ := r.catalog.AnyVersion(*issue.FixedVersionID)
			label = version.Name
		}
		current := formatOptionalID(issue.FixedVersionID)
		return f.selectTag(ensureOption(options, current, label), current)
	}
	return r.ColumnContent(column, issue)
}

// columnAttributes maps editable columns to the attribute they submit.
var columnAttributes = map[string]string{
	"tracker":         models.FieldTrackerID,
	"status":          models.FieldStatusID,
	"priority":        models.FieldPriorityID,
	"subject":         models.FieldSubject,
	"assigned_to":     models.FieldAssignedToID,
	"estimated_hours": models.FieldEstimatedHours,
	"start_date":      models.FieldStartDate,
	"due_date":        models.FieldDueDate,
	"done_ratio":      models.FieldDoneRatio,
	"is_private":      models.FieldIsPrivate,
	"description":     models.FieldDescription,
	"category":        models.FieldCategoryID,
	"fixed_version":   models.FieldFixedVersionID,
}

// formField names the form control of one issue attribute.
type formField struct {
	issueID   int64
	attribute string
}

func (f formField) name() string {
	return fmt.Sprintf("issues[%d][%s]", f.issueID, f.attribute)
}

func (f formField) id() string {
	return fmt.Sprintf("issues_%d_%s", f.issueID, f.attribute)
}

func (f formField) input(inputType, value string, extra ...attr) template.HTML {
	attrs := append([]attr{{"name", f.name()}, {"id", f.id()}, {"value", value}}, extra...)
	return inputTag(inputType, attrs...)
}

func (f formField) selectTag(options []option, selected string) template.HTML {
	return selectTag(options, []string{selected}, attr{"name", f.name()}, attr{"id", f.id()})
}

// ensureOption keeps the current value selectable when it is no longer
// offered, so resubmitting an untouched row changes nothing. An empty label
// falls back to the value.
func ensureOption(options []option, value, label string) []option {
	if value == "" {
		return options
	}
	for _, o := range options {
		if o.value == value {
			return options
		}
	}
	if label == "" {
		label = value
	}
	return append(options, option{label: label, value: value})
}

func doneRatioOption(ratio int) option {
	return option{label: fmt.Sprintf("%d %%", ratio), value: strconv.Itoa(ratio)}
}

func idOption(id int64, label string) option {
	return option{label: label, value: formatID(id)}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return formatID(*id)
}

func dateValue(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
