package main

import (
	"context"
	"errors"
	"net"

	"inlineedit/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: set INLINEEDIT_API_KEY to a key created with: inlineedit user add --api-key")
		case "forbidden":
			lines = append(lines, "hint: grant issues_inline_edit with: inlineedit member grant <login> <project> issues_inline_edit")
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly; too many failed attempts were recorded.")
		}
		if apiErr.IssueNotFound() {
			lines = append(lines, "hint: check that every issue id in the payload exists.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify INLINEEDIT_API_URL points to an inlineedit server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase INLINEEDIT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an inlineedit server is running at INLINEEDIT_API_URL.",
			"hint: start a local server with: inlineedit srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
