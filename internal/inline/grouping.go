package inline

import (
	"context"
	"errors"
	"fmt"

	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

// GroupCounter counts issues per group for a query.
type GroupCounter interface {
	CountByGroup(ctx context.Context, q store.IssueQuery) ([]store.GroupCount, error)
	CountIssues(ctx context.Context, q store.IssueQuery) (int, error)
}

// CountByGroup returns the row count of each group of q restricted to ids,
// or nil when q is not grouped. Keys naming a record missing from catalog
// fall into the nil group.
func CountByGroup(ctx context.Context, counter GroupCounter, q *models.Query, ids []int64, fields []models.CustomField, catalog *models.Catalog) ([]store.GroupCount, error) {
	if q == nil || !q.Grouped() {
		return nil, nil
	}
	iq := store.IssueQuery{Query: q, Fields: fields, IDs: ids}

	counts, err := counter.CountByGroup(ctx, iq)
	if errors.Is(err, store.ErrNotFound) {
		total, err := counter.CountIssues(ctx, iq)
		if err != nil {
			return nil, err
		}
		return []store.GroupCount{{Key: nil, Count: total}}, nil
	}
	if err != nil {
		return nil, err
	}

	column, ok := q.GroupByColumn(fields)
	if !ok {
		return nil, fmt.Errorf("%w: unknown group column %s", ErrInvalidQuery, q.GroupBy)
	}

	out := make([]store.GroupCount, 0, len(counts))
	for _, count := range counts {
		key := resolveStoredKey(column, count.Key, catalog)
		merged := false
		for i := range out {
			if SameGroupKey(out[i].Key, key) {
				out[i].Count += count.Count
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, store.GroupCount{Key: key, Count: count.Count})
		}
	}
	return out, nil
}

func resolveStoredKey(column models.Column, key any, catalog *models.Catalog) any {
	if key == nil {
		return nil
	}
	if column.CustomField != nil {
		return column.CustomField.CastValue(fmt.Sprint(key))
	}
	id, ok := key.(int64)
	if !ok {
		return key
	}
	return checkEntity(column.Name, id, catalog)
}

// checkEntity returns id, or nil when the referenced record is unknown.
func checkEntity(column string, id int64, catalog *models.Catalog) any {
	if catalog == nil {
		return id
	}
	var found bool
	switch column {
	case "project":
		_, found = catalog.Projects[id]
	case "tracker":
		_, found = catalog.Trackers[id]
	case "status":
		_, found = catalog.Status(id)
	case "priority":
		_, found = catalog.Priority(id)
	case "assigned_to":
		_, found = catalog.Users[id]
	case "category":
		_, found = catalog.AnyCategory(id)
	case "fixed_version":
		_, found = catalog.AnyVersion(id)
	default:
		return id
	}
	if !found {
		return nil
	}
	return id
}

// GroupKey returns the group key of issue for column, in the same form
// CountByGroup reports it.
func GroupKey(issue *models.Issue, column models.Column, catalog *models.Catalog) any {
	if column.CustomField != nil {
		value, _ := issue.CustomValue(column.CustomField.ID)
		return column.CustomField.CastValue(value)
	}

	var ref *int64
	switch column.Name {
	case "project":
		ref = &issue.ProjectID
	case "tracker":
		ref = &issue.TrackerID
	case "status":
		ref = &issue.StatusID
	case "priority":
		ref = &issue.PriorityID
	case "assigned_to":
		ref = issue.AssignedToID
	case "category":
		ref = issue.CategoryID
	case "fixed_version":
		ref = issue.FixedVersionID
	case "done_ratio":
		return int64(issue.DoneRatio)
	case "is_private":
		if issue.IsPrivate {
			return int64(1)
		}
		return int64(0)
	default:
		return nil
	}
	if ref == nil {
		return nil
	}
	return checkEntity(column.Name, *ref, catalog)
}

// GroupValue returns what a group header shows for key: the referenced
// record when column points at one, the key itself otherwise.
func GroupValue(column models.Column, key any, catalog *models.Catalog) any {
	id, ok := key.(int64)
	if !ok || catalog == nil || column.CustomField != nil {
		return key
	}
	switch column.Name {
	case "project":
		if project, ok := catalog.Projects[id]; ok {
			return project
		}
	case "tracker":
		if tracker, ok := catalog.Trackers[id]; ok {
			return tracker
		}
	case "status":
		if status, ok := catalog.Status(id); ok {
			return status
		}
	case "priority":
		if priority, ok := catalog.Priority(id); ok {
			return priority
		}
	case "assigned_to":
		if user, ok := catalog.Users[id]; ok {
			return user
		}
	case "category":
		if category, ok := catalog.AnyCategory(id); ok {
			return category
		}
	case "fixed_version":
		if version, ok := catalog.AnyVersion(id); ok {
			return version
		}
	case "is_private":
		return id == 1
	}
	return key
}

// SameGroupKey compares group keys; dates compare by instant.
func SameGroupKey(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if da, ok := a.(models.Date); ok {
		db, ok := b.(models.Date)
		return ok && da.Equal(db.Time)
	}
	return a == b
}
