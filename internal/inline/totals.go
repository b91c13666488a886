package inline

import (
	"fmt"

	"inlineedit/internal/models"
)

func formatHours(total float64) string {
	return fmt.Sprintf("%.2f", total)
}

// TotalEstimatedHours sums the estimates that are set.
func TotalEstimatedHours(issues []models.Issue) string {
	var total float64
	for _, issue := range issues {
		if issue.EstimatedHours != nil {
			total += *issue.EstimatedHours
		}
	}
	return formatHours(total)
}

func TotalSpentHours(issues []models.Issue) string {
	var total float64
	for _, issue := range issues {
		total += issue.SpentHours
	}
	return formatHours(total)
}

// TotalGroupEstimatedHours sums estimates of the issues whose group key for
// groupColumn equals key.
func TotalGroupEstimatedHours(issues []models.Issue, groupColumn models.Column, key any, catalog *models.Catalog) string {
	return TotalEstimatedHours(issuesInGroup(issues, groupColumn, key, catalog))
}

func TotalGroupSpentHours(issues []models.Issue, groupColumn models.Column, key any, catalog *models.Catalog) string {
	return TotalSpentHours(issuesInGroup(issues, groupColumn, key, catalog))
}

// ColumnTotal returns the formatted total of a totalable column.
func ColumnTotal(column models.Column, issues []models.Issue) (string, bool) {
	switch column.Name {
	case "estimated_hours":
		return TotalEstimatedHours(issues), true
	case "spent_hours":
		return TotalSpentHours(issues), true
	}
	return "", false
}

func GroupColumnTotal(column models.Column, issues []models.Issue, groupColumn models.Column, key any, catalog *models.Catalog) (string, bool) {
	return ColumnTotal(column, issuesInGroup(issues, groupColumn, key, catalog))
}

func issuesInGroup(issues []models.Issue, groupColumn models.Column, key any, catalog *models.Catalog) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	for i := range issues {
		if SameGroupKey(GroupKey(&issues[i], groupColumn, catalog), key) {
			out = append(out, issues[i])
		}
	}
	return out
}
