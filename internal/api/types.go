package api

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// LoginRequest starts a browser session.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResponse describes the authenticated user.
type LoginResponse struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
	Language string `json:"language,omitempty"`
}

// UpdateMultipleRequest is the JSON form of an update_multiple submission.
// Issues maps issue ids to their submitted attributes; custom field values
// travel under "custom_field_values" keyed by field id.
type UpdateMultipleRequest struct {
	Issues  map[string]map[string]any `json:"issues"`
	BackURL string                    `json:"back_url,omitempty"`
}

// FailedIssue carries the localized messages of one rejected issue.
type FailedIssue struct {
	ID       int64    `json:"id"`
	Messages []string `json:"messages"`
}

// UpdateMultipleResponse summarizes a JSON update_multiple submission.
type UpdateMultipleResponse struct {
	UpdatedIDs   []int64       `json:"updated_ids"`
	UnchangedIDs []int64       `json:"unchanged_ids"`
	Failed       []FailedIssue `json:"failed"`
	Message      string        `json:"message,omitempty"`
}
