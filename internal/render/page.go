package render

import (
	"embed"
	"html/template"
	"io"
	"strconv"

	"inlineedit/internal/inline"
	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageInput is what the edit page is built from.
type PageInput struct {
	Project     *models.Project
	Query       *models.Query
	Fields      []models.CustomField
	Issues      []models.Issue
	Parents     map[int64]bool
	GroupCounts []store.GroupCount
	BackURL     string
	UpdateURL   string
	Flash       string
	FlashKind   string
	Page        int
	PerPage     int
	Total       int
}

// Page is the edit page view model.
type Page struct {
	Lang      string
	Title     string
	Assets    string
	Flash     string
	FlashKind string
	ProjectID string
	BackURL   string
	UpdateURL string
	Headers   []Header
	Colspan   int
	Groups    []Group
	Totals    []Total
	Page      int
	Pages     int
	Count     int
	Labels    map[string]string
}

type Header struct {
	Name  string
	Label string
}

// Group is a run of rows sharing a group key. Ungrouped pages have a single
// group with an empty Label.
type Group struct {
	Grouped   bool
	Label     string
	ClassName string
	Count     int
	Totals    []Total
	Rows      []Row
}

type Row struct {
	ID          int64
	LockVersion int
	FieldName   string
	ClassName   string
	Cells       []Cell
}

type Cell struct {
	Class   string
	Content template.HTML
}

type Total struct {
	Column string
	Name   string
	Value  string
}

// InlineEditColumns returns the query's inline columns with the description
// column, when selected, moved to the second position.
func InlineEditColumns(q *models.Query, fields []models.CustomField) []models.Column {
	columns := q.InlineColumns(fields)
	description, ok := models.FindColumn(q.Columns(fields), "description")
	if !ok {
		return columns
	}
	index := 1
	if len(columns) < index {
		index = len(columns)
	}
	out := make([]models.Column, 0, len(columns)+1)
	out = append(out, columns[:index]...)
	out = append(out, description)
	return append(out, columns[index:]...)
}

// BuildPage lays out the edit page: headers, grouped rows with editors,
// and group and overall totals.
func (r *Renderer) BuildPage(in PageInput) Page {
	columns := InlineEditColumns(in.Query, in.Fields)
	page := Page{
		Lang:      r.tr.Locale(),
		Title:     r.tr.T("label_inline_edit"),
		Assets:    AssetsPath(r.root),
		Flash:     in.Flash,
		FlashKind: flashKind(in.FlashKind),
		ProjectID: InlineProjectID(in.Project),
		BackURL:   in.BackURL,
		UpdateURL: in.UpdateURL,
		Page:      max(in.Page, 1),
		Count:     in.Total,
		Labels: map[string]string{
			"save":   r.tr.T("button_save"),
			"cancel": r.tr.T("button_cancel"),
			"total":  r.tr.T("label_total"),
		},
	}
	if in.PerPage > 0 {
		page.Pages = (in.Total + in.PerPage - 1) / in.PerPage
	}

	for _, column := range columns {
		page.Headers = append(page.Headers, Header{Name: column.Name, Label: r.columnLabel(column)})
	}
	page.Colspan = len(page.Headers) + 1
	for _, column := range columns {
		if value, ok := inline.ColumnTotal(column, in.Issues); ok {
			page.Totals = append(page.Totals, Total{Column: column.Name, Value: value})
		}
	}

	groupColumn, grouped := in.Query.GroupByColumn(in.Fields)
	var current *Group
	var currentKey any
	for i := range in.Issues {
		issue := &in.Issues[i]
		var key any
		if grouped {
			key = inline.GroupKey(issue, groupColumn, r.catalog)
		}
		if current == nil || (grouped && !inline.SameGroupKey(key, currentKey)) {
			page.Groups = append(page.Groups, r.newGroup(in, grouped, groupColumn, key, columns))
			current = &page.Groups[len(page.Groups)-1]
			currentKey = key
		}
		current.Rows = append(current.Rows, r.buildRow(issue, columns, in.Parents[issue.ID], current.ClassName))
	}
	return page
}

func (r *Renderer) newGroup(in PageInput, grouped bool, groupColumn models.Column, key any, columns []models.Column) Group {
	if !grouped {
		return Group{}
	}
	label := r.FormatColumnValue(inline.GroupValue(groupColumn, key, r.catalog))
	if key == nil || label == "" {
		label = r.tr.T("label_none")
	}
	group := Group{Grouped: true, Label: label, ClassName: GroupClassName(label)}
	for _, count := range in.GroupCounts {
		if inline.SameGroupKey(count.Key, key) {
			group.Count = count.Count
			break
		}
	}
	for _, column := range columns {
		if value, ok := inline.GroupColumnTotal(column, in.Issues, groupColumn, key, r.catalog); ok {
			group.Totals = append(group.Totals, Total{Column: column.Name, Name: GroupTotalName(label, column.Name), Value: value})
		}
	}
	return group
}

func (r *Renderer) buildRow(issue *models.Issue, columns []models.Column, hasChildren bool, groupClass string) Row {
	row := Row{
		ID:          issue.ID,
		LockVersion: issue.LockVersion,
		FieldName:   "issues[" + strconv.FormatInt(issue.ID, 10) + "][" + inline.LockVersionKey + "]",
		ClassName:   groupClass,
	}
	if hasChildren {
		row.ClassName += " parent"
	}
	ctx := RowContext{HasChildren: hasChildren}
	for _, column := range columns {
		class := column.Name
		if column.CustomField != nil {
			class = column.CustomField.CSSClasses()
		}
		row.Cells = append(row.Cells, Cell{Class: class, Content: r.ColumnFormContent(column, issue, ctx)})
	}
	return row
}

func (r *Renderer) columnLabel(column models.Column) string {
	if column.CustomField != nil {
		return column.CustomField.Name
	}
	return r.tr.T(column.CaptionKey())
}

// WritePage renders page as a complete HTML document.
func WritePage(w io.Writer, page Page) error {
	return pageTemplate.ExecuteTemplate(w, "edit_multiple.html", page)
}

// flashKind maps a flash kind onto the CSS classes the page styles.
func flashKind(kind string) string {
	if kind == "notice" {
		return kind
	}
	return "error"
}
