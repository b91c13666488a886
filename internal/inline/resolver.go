package inline

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

// IDQueryRunner executes a saved or ad-hoc query for issue ids.
type IDQueryRunner interface {
	CustomFields(ctx context.Context) ([]models.CustomField, error)
	IssueIDs(ctx context.Context, q store.IssueQuery) ([]int64, error)
}

// ParseIDParams reads "ids[]" (used verbatim) or "ids" (whitespace
// separated) from request parameters, preserving order.
func ParseIDParams(values url.Values) ([]int64, error) {
	var tokens []string
	if list, ok := values["ids[]"]; ok {
		tokens = list
	} else if raw, ok := values["ids"]; ok {
		if len(raw) == 1 {
			tokens = strings.Fields(raw[0])
		} else {
			tokens = raw
		}
	}

	ids := make([]int64, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid issue id %q", ErrInvalidArgument, token)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResolveIDs returns the working set: explicit ids when given, otherwise
// the ids matched by q, otherwise nothing.
func ResolveIDs(ctx context.Context, explicit []int64, q *models.Query, runner IDQueryRunner) ([]int64, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if q == nil {
		return []int64{}, nil
	}

	fields, err := runner.CustomFields(ctx)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(fields); err != nil {
		return nil, err
	}
	ids, err := runner.IssueIDs(ctx, store.IssueQuery{Query: q, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return ids, nil
}
