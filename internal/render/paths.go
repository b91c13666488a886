package render

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"inlineedit/internal/models"
)

// GroupClassName is the CSS class of a group's rows: "group_" followed by
// the group label without whitespace, or "" outside of groups.
func GroupClassName(group string) string {
	if group == "" {
		return ""
	}
	return "group_" + strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, group)
}

// GroupTotalName identifies the cell holding a group's total of column.
func GroupTotalName(group, column string) string {
	if group == "" || column == "" {
		return ""
	}
	return GroupClassName(group) + "_total_" + column
}

// InlineProjectID returns the project id for scripts, "" without a project.
func InlineProjectID(project *models.Project) string {
	if project == nil {
		return ""
	}
	return strconv.FormatInt(project.ID, 10)
}

func idValues(ids []int64) url.Values {
	values := url.Values{}
	for _, id := range ids {
		values.Add("ids[]", strconv.FormatInt(id, 10))
	}
	return values
}

func withQuery(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

// EditMultiplePath links to the inline edit page of ids, scoped to project
// when one is given.
func EditMultiplePath(root string, project *models.Project, ids []int64) string {
	return withQuery(projectPrefix(root, project)+"/inline_issues/edit_multiple", idValues(ids))
}

// UpdateMultiplePath is the form target of the edit page. Without a project
// the ids travel in the query string.
func UpdateMultiplePath(root string, project *models.Project, ids []int64) string {
	path := projectPrefix(root, project) + "/inline_issues/update_multiple"
	if project != nil {
		return path
	}
	return withQuery(path, idValues(ids))
}

// IssuesPath is the default page to return to after editing.
func IssuesPath(root string, project *models.Project) string {
	return projectPrefix(root, project) + "/issues"
}

func projectPrefix(root string, project *models.Project) string {
	root = strings.TrimRight(root, "/")
	if project == nil {
		return root
	}
	ref := project.Identifier
	if ref == "" {
		ref = strconv.FormatInt(project.ID, 10)
	}
	return root + "/projects/" + url.PathEscape(ref)
}

// AssetsPath is where the edit page loads its script and stylesheet from.
func AssetsPath(root string) string {
	return strings.TrimRight(root, "/") + "/plugin_assets/inline_edit"
}
