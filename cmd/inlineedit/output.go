package main

import (
	"fmt"
	"os"
	"strings"

	"inlineedit/internal/api"
	"inlineedit/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{Indent: "  "}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeUpdateResult(resp api.UpdateMultipleResponse) error {
	lines := []string{
		fmt.Sprintf("updated: %s", formatIDList(resp.UpdatedIDs)),
		fmt.Sprintf("unchanged: %s", formatIDList(resp.UnchangedIDs)),
	}
	for _, failed := range resp.Failed {
		lines = append(lines, fmt.Sprintf("failed #%d: %s", failed.ID, strings.Join(failed.Messages, "; ")))
	}
	if resp.Message != "" {
		lines = append(lines, fmt.Sprintf("message: %s", resp.Message))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatIDList(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	return strings.Join(parts, ", ")
}
