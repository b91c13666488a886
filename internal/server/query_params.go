package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

// queryFromParams builds the query selected by the request: a saved query
// when query_id is given, an ad-hoc one when set_filter or other query
// parameters are present, nil otherwise.
func (s *Server) queryFromParams(ctx context.Context, values url.Values, project *models.Project) (*models.Query, error) {
	if raw := strings.TrimSpace(values.Get("query_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, badRequestCode(fmt.Errorf("invalid query_id"), ErrCodeInvalidID)
		}
		q, err := s.store.GetQuery(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundCode(err, ErrCodeQueryNotFound)
		}
		if err != nil {
			return nil, storeFailure(err)
		}
		if q.ProjectID != nil && project != nil && *q.ProjectID != project.ID {
			return nil, notFoundCode(fmt.Errorf("query %d is not visible in project %s", id, project.Identifier), ErrCodeQueryNotFound)
		}
		if q.ProjectID == nil && project != nil {
			q.ProjectID = &project.ID
		}
		return q, nil
	}

	if !hasAdHocQuery(values) {
		return nil, nil
	}

	q := &models.Query{Name: "_", GroupBy: strings.TrimSpace(values.Get("group_by"))}
	if project != nil {
		q.ProjectID = &project.ID
	}
	for _, name := range values["c[]"] {
		if name = strings.TrimSpace(name); name != "" {
			q.ColumnNames = append(q.ColumnNames, name)
		}
	}

	fields, ok := values["f[]"]
	if !ok {
		q.Filters = []models.Filter{{Field: "status_id", Operator: models.OpOpen}}
		return q, nil
	}
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		q.Filters = append(q.Filters, models.Filter{
			Field:    field,
			Operator: values.Get("op[" + field + "]"),
			Values:   values["v["+field+"][]"],
		})
	}
	return q, nil
}

func hasAdHocQuery(values url.Values) bool {
	for _, key := range []string{"set_filter", "f[]", "c[]", "group_by"} {
		if _, ok := values[key]; ok {
			return true
		}
	}
	return false
}

// sortCriteria picks the sort parameter, then the query's own criteria,
// then id descending.
func sortCriteria(raw string, q *models.Query, fields []models.CustomField) []models.SortCriterion {
	if criteria := models.ParseSortParam(raw, fields); len(criteria) > 0 {
		return criteria
	}
	if len(q.SortCriteria) > 0 {
		return q.SortCriteria
	}
	return []models.SortCriterion{{Column: "id", Desc: true}}
}
