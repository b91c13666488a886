package api

import "fmt"

// errorCodeIssueNotFound is the server's numeric code for a missing issue.
const errorCodeIssueNotFound = 2001

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
	// RequestID echoes the server's X-Request-ID so failures can be found
	// in the server log.
	RequestID string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	var msg string
	switch {
	case e.Code != "" && e.Message != "":
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		msg = e.Message
	case e.Status > 0:
		msg = fmt.Sprintf("api error: %d", e.Status)
	default:
		msg = "api error"
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// IssueNotFound reports whether the batch referenced an unknown issue.
func (e *APIError) IssueNotFound() bool {
	return e != nil && e.ErrorCode == errorCodeIssueNotFound
}
