package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"inlineedit/internal/models"
)

// IssueQuery selects issues through a validated models.Query, optionally
// restricted to explicit ids.
type IssueQuery struct {
	Query  *models.Query
	Fields []models.CustomField
	IDs    []int64
	// Sort overrides the query's own sort criteria when set.
	Sort   []models.SortCriterion
	Offset int
	Limit  int
}

// GroupCount is one grouped row count. Key is nil for the empty group,
// an int64 for id and numeric groupings, and a string for custom fields.
type GroupCount struct {
	Key   any
	Count int
}

var filterColumns = map[string]string{
	"project_id":       "i.project_id",
	"tracker_id":       "i.tracker_id",
	"status_id":        "i.status_id",
	"priority_id":      "i.priority_id",
	"assigned_to_id":   "i.assigned_to_id",
	"author_id":        "i.author_id",
	"category_id":      "i.category_id",
	"fixed_version_id": "i.fixed_version_id",
	"parent_id":        "i.parent_id",
	"subject":          "i.subject",
	"description":      "i.description",
	"done_ratio":       "i.done_ratio",
	"is_private":       "i.is_private",
}

var textFilters = map[string]bool{"subject": true, "description": true}

var sortExpressions = map[string]string{
	"id":              "i.id",
	"project":         "(SELECT p.name FROM projects p WHERE p.id = i.project_id)",
	"tracker":         "(SELECT t.position FROM trackers t WHERE t.id = i.tracker_id)",
	"parent":          "i.parent_id",
	"status":          "(SELECT st.position FROM issue_statuses st WHERE st.id = i.status_id)",
	"priority":        "(SELECT ip.position FROM issue_priorities ip WHERE ip.id = i.priority_id)",
	"subject":         "i.subject",
	"author":          "(SELECT u.lastname || u.firstname || u.login FROM users u WHERE u.id = i.author_id)",
	"assigned_to":     "(SELECT u.lastname || u.firstname || u.login FROM users u WHERE u.id = i.assigned_to_id)",
	"updated_on":      "i.updated_on",
	"category":        "(SELECT c.name FROM issue_categories c WHERE c.id = i.category_id)",
	"fixed_version":   "(SELECT v.name FROM versions v WHERE v.id = i.fixed_version_id)",
	"start_date":      "i.start_date",
	"due_date":        "i.due_date",
	"estimated_hours": "i.estimated_hours",
	"spent_hours":     spentHoursExpr,
	"done_ratio":      "i.done_ratio",
	"is_private":      "i.is_private",
	"created_on":      "i.created_on",
}

var groupExpressions = map[string]string{
	"project":       "i.project_id",
	"tracker":       "i.tracker_id",
	"status":        "i.status_id",
	"priority":      "i.priority_id",
	"assigned_to":   "i.assigned_to_id",
	"category":      "i.category_id",
	"fixed_version": "i.fixed_version_id",
	"done_ratio":    "i.done_ratio",
	"is_private":    "i.is_private",
}

const customValueExpr = "(SELECT cv.value FROM custom_values cv WHERE cv.customized_id = i.id AND cv.custom_field_id = ? ORDER BY cv.id LIMIT 1)"

type issueQueryBuilder struct {
	q     IssueQuery
	where []string
	args  []any
}

func (b *issueQueryBuilder) buildWhere() (string, []any, error) {
	b.where = nil
	b.args = nil

	if b.q.Query != nil {
		if b.q.Query.ProjectID != nil {
			b.where = append(b.where, "i.project_id = ?")
			b.args = append(b.args, *b.q.Query.ProjectID)
		}
		for _, filter := range b.q.Query.Filters {
			if err := b.appendFilter(filter); err != nil {
				return "", nil, err
			}
		}
	}
	if b.q.IDs != nil {
		if len(b.q.IDs) == 0 {
			b.where = append(b.where, "0 = 1")
		} else {
			b.where = append(b.where, fmt.Sprintf("i.id IN (%s)", placeholders(len(b.q.IDs))))
			b.args = append(b.args, int64Args(b.q.IDs)...)
		}
	}

	if len(b.where) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(b.where, " AND "), b.args, nil
}

func (b *issueQueryBuilder) appendFilter(filter models.Filter) error {
	if fieldID, ok := models.CustomFieldID(filter.Field); ok {
		return b.appendCustomFilter(fieldID, filter)
	}
	column, ok := filterColumns[filter.Field]
	if !ok {
		return fmt.Errorf("%w: unknown filter %s", models.ErrInvalidQuery, filter.Field)
	}
	text := textFilters[filter.Field]

	switch filter.Operator {
	case models.OpOpen, models.OpClosed:
		closed := 0
		if filter.Operator == models.OpClosed {
			closed = 1
		}
		b.where = append(b.where, "i.status_id IN (SELECT id FROM issue_statuses WHERE is_closed = ?)")
		b.args = append(b.args, closed)
	case models.OpAny:
		if text {
			b.where = append(b.where, fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", column, column))
		} else {
			b.where = append(b.where, column+" IS NOT NULL")
		}
	case models.OpNone:
		if text {
			b.where = append(b.where, fmt.Sprintf("(%s IS NULL OR %s = '')", column, column))
		} else {
			b.where = append(b.where, column+" IS NULL")
		}
	case models.OpContains:
		b.where = append(b.where, column+" LIKE '%' || ? || '%'")
		b.args = append(b.args, firstValue(filter))
	case models.OpNotContains:
		b.where = append(b.where, fmt.Sprintf("(%s IS NULL OR %s NOT LIKE '%%' || ? || '%%')", column, column))
		b.args = append(b.args, firstValue(filter))
	case models.OpGreaterEq, models.OpLessEq:
		value, err := strconv.Atoi(firstValue(filter))
		if err != nil {
			return fmt.Errorf("%w: invalid value for %s", models.ErrInvalidQuery, filter.Field)
		}
		b.where = append(b.where, fmt.Sprintf("%s %s ?", column, filter.Operator))
		b.args = append(b.args, value)
	case models.OpEquals, models.OpNotEquals:
		values, err := intValues(filter)
		if err != nil {
			return err
		}
		if filter.Operator == models.OpEquals {
			b.where = append(b.where, fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))))
		} else {
			b.where = append(b.where, fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", column, column, placeholders(len(values))))
		}
		b.args = append(b.args, values...)
	default:
		return fmt.Errorf("%w: unknown operator %q", models.ErrInvalidQuery, filter.Operator)
	}
	return nil
}

func (b *issueQueryBuilder) appendCustomFilter(fieldID int64, filter models.Filter) error {
	const exists = "EXISTS (SELECT 1 FROM custom_values cv WHERE cv.customized_id = i.id AND cv.custom_field_id = ? AND %s)"
	switch filter.Operator {
	case models.OpEquals, models.OpNotEquals:
		if len(filter.Values) == 0 {
			return fmt.Errorf("%w: %s requires a value", models.ErrInvalidQuery, filter.Field)
		}
		clause := fmt.Sprintf(exists, fmt.Sprintf("cv.value IN (%s)", placeholders(len(filter.Values))))
		if filter.Operator == models.OpNotEquals {
			clause = "NOT " + clause
		}
		b.where = append(b.where, clause)
		b.args = append(b.args, fieldID)
		for _, value := range filter.Values {
			b.args = append(b.args, value)
		}
	case models.OpContains:
		b.where = append(b.where, fmt.Sprintf(exists, "cv.value LIKE '%' || ? || '%'"))
		b.args = append(b.args, fieldID, firstValue(filter))
	case models.OpAny:
		b.where = append(b.where, fmt.Sprintf(exists, "cv.value <> ''"))
		b.args = append(b.args, fieldID)
	case models.OpNone:
		b.where = append(b.where, "NOT "+fmt.Sprintf(exists, "cv.value <> ''"))
		b.args = append(b.args, fieldID)
	default:
		return fmt.Errorf("%w: unknown operator %q", models.ErrInvalidQuery, filter.Operator)
	}
	return nil
}

// sortExpression resolves a sortable column to its SQL expression.
func (b *issueQueryBuilder) sortExpression(name string) (string, []any, error) {
	if expr, ok := sortExpressions[name]; ok {
		return expr, nil, nil
	}
	fieldID, ok := models.CustomFieldID(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: cannot sort by %s", models.ErrInvalidQuery, name)
	}
	field, ok := findField(b.q.Fields, fieldID)
	if !ok || field.Multiple {
		return "", nil, fmt.Errorf("%w: cannot sort by %s", models.ErrInvalidQuery, name)
	}
	switch field.FieldFormat {
	case models.FormatInt, models.FormatFloat:
		return "CAST(" + customValueExpr + " AS REAL)", []any{fieldID}, nil
	default:
		return customValueExpr, []any{fieldID}, nil
	}
}

// groupExpression resolves a grouping column. ok is false when the store
// cannot group by name.
func (b *issueQueryBuilder) groupExpression(name string) (string, []any, bool) {
	if expr, ok := groupExpressions[name]; ok {
		return expr, nil, true
	}
	fieldID, ok := models.CustomFieldID(name)
	if !ok {
		return "", nil, false
	}
	field, ok := findField(b.q.Fields, fieldID)
	if !ok || field.Multiple {
		return "", nil, false
	}
	return customValueExpr, []any{fieldID}, true
}

func (b *issueQueryBuilder) buildOrder() (string, []any, error) {
	var parts []string
	var args []any

	if b.q.Query.Grouped() {
		if expr, exprArgs, ok := b.groupExpression(b.q.Query.GroupBy); ok {
			if sortExpr, ok := sortExpressions[b.q.Query.GroupBy]; ok && sortExpr != expr {
				parts = append(parts, sortExpr+" ASC")
			}
			parts = append(parts, expr+" ASC")
			args = append(args, exprArgs...)
		}
	}

	criteria := b.q.Sort
	if len(criteria) == 0 && b.q.Query != nil {
		criteria = b.q.Query.SortCriteria
	}
	for _, criterion := range criteria {
		expr, exprArgs, err := b.sortExpression(criterion.Column)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if criterion.Desc {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
		args = append(args, exprArgs...)
	}
	parts = append(parts, "i.id DESC")
	return " ORDER BY " + strings.Join(parts, ", "), args, nil
}

func (b *issueQueryBuilder) buildPagination() (string, []any) {
	var clause string
	var args []any
	hasLimit := false
	if b.q.Limit > 0 {
		clause += " LIMIT ?"
		args = append(args, b.q.Limit)
		hasLimit = true
	}
	if b.q.Offset > 0 {
		if !hasLimit {
			clause += " LIMIT -1"
		}
		clause += " OFFSET ?"
		args = append(args, b.q.Offset)
	}
	return clause, args
}

func (b *issueQueryBuilder) buildSelect(columns string) (string, []any, error) {
	where, whereArgs, err := b.buildWhere()
	if err != nil {
		return "", nil, err
	}
	order, orderArgs, err := b.buildOrder()
	if err != nil {
		return "", nil, err
	}
	page, pageArgs := b.buildPagination()

	args := append(append(whereArgs, orderArgs...), pageArgs...)
	return "SELECT " + columns + " FROM issues i" + where + order + page, args, nil
}

// ListIssues returns the matching issues, sorted and paginated.
func (s *Store) ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, error) {
	b := &issueQueryBuilder{q: q}
	query, args, err := b.buildSelect(issueColumns)
	if err != nil {
		return nil, err
	}
	return s.queryIssues(ctx, query, args...)
}

// IssueIDs returns the ids of the matching issues in list order.
func (s *Store) IssueIDs(ctx context.Context, q IssueQuery) ([]int64, error) {
	b := &issueQueryBuilder{q: q}
	query, args, err := b.buildSelect("i.id")
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountIssues counts the matching issues, ignoring pagination.
func (s *Store) CountIssues(ctx context.Context, q IssueQuery) (int, error) {
	b := &issueQueryBuilder{q: q}
	where, args, err := b.buildWhere()
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM issues i"+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountByGroup counts matching issues per value of the query's group_by
// column. It returns ErrNotFound when the column cannot be grouped by.
func (s *Store) CountByGroup(ctx context.Context, q IssueQuery) ([]GroupCount, error) {
	if !q.Query.Grouped() {
		return nil, fmt.Errorf("%w: query is not grouped", models.ErrInvalidQuery)
	}
	b := &issueQueryBuilder{q: q}
	expr, exprArgs, ok := b.groupExpression(q.Query.GroupBy)
	if !ok {
		return nil, fmt.Errorf("group column %s: %w", q.Query.GroupBy, ErrNotFound)
	}
	where, whereArgs, err := b.buildWhere()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + expr + " AS group_key, COUNT(*) FROM issues i" + where + " GROUP BY group_key ORDER BY group_key"
	rows, err := s.db.QueryContext(ctx, query, append(exprArgs, whereArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []GroupCount{}
	for rows.Next() {
		var key any
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts = append(counts, GroupCount{Key: normalizeGroupKey(key), Count: count})
	}
	return counts, rows.Err()
}

func normalizeGroupKey(key any) any {
	switch v := key.(type) {
	case []byte:
		return string(v)
	case int:
		return int64(v)
	default:
		return v
	}
}

func firstValue(filter models.Filter) string {
	if len(filter.Values) == 0 {
		return ""
	}
	return strings.TrimSpace(filter.Values[0])
}

func intValues(filter models.Filter) ([]any, error) {
	if len(filter.Values) == 0 {
		return nil, fmt.Errorf("%w: %s requires a value", models.ErrInvalidQuery, filter.Field)
	}
	out := make([]any, 0, len(filter.Values))
	for _, raw := range filter.Values {
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid value %q for %s", models.ErrInvalidQuery, raw, filter.Field)
		}
		out = append(out, value)
	}
	return out, nil
}

func findField(fields []models.CustomField, id int64) (models.CustomField, bool) {
	for _, field := range fields {
		if field.ID == id {
			return field, true
		}
	}
	return models.CustomField{}, false
}
