package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and display layout of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(raw string) (Date, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", raw)
	}
	return Date{Time: parsed}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Issue is a tracked work item.
type Issue struct {
	ID             int64              `json:"id" yaml:"id"`
	ProjectID      int64              `json:"project_id" yaml:"project_id"`
	ParentID       *int64             `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	TrackerID      int64              `json:"tracker_id" yaml:"tracker_id"`
	StatusID       int64              `json:"status_id" yaml:"status_id"`
	PriorityID     int64              `json:"priority_id" yaml:"priority_id"`
	AuthorID       int64              `json:"author_id" yaml:"author_id"`
	AssignedToID   *int64             `json:"assigned_to_id,omitempty" yaml:"assigned_to_id,omitempty"`
	CategoryID     *int64             `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	FixedVersionID *int64             `json:"fixed_version_id,omitempty" yaml:"fixed_version_id,omitempty"`
	Subject        string             `json:"subject" yaml:"subject"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`
	StartDate      *Date              `json:"start_date,omitempty" yaml:"-"`
	DueDate        *Date              `json:"due_date,omitempty" yaml:"-"`
	DoneRatio      int                `json:"done_ratio" yaml:"done_ratio"`
	EstimatedHours *float64           `json:"estimated_hours,omitempty" yaml:"estimated_hours,omitempty"`
	SpentHours     float64            `json:"spent_hours" yaml:"-"`
	IsPrivate      bool               `json:"is_private" yaml:"is_private"`
	LockVersion    int                `json:"lock_version" yaml:"-"`
	CreatedOn      time.Time          `json:"created_on" yaml:"-"`
	UpdatedOn      time.Time          `json:"updated_on" yaml:"-"`
	CustomValues   map[int64][]string `json:"custom_values,omitempty" yaml:"custom_values,omitempty"`
}

// CustomValue returns the first stored value for a custom field.
func (i *Issue) CustomValue(fieldID int64) (string, bool) {
	values, ok := i.CustomValues[fieldID]
	if !ok || len(values) == 0 {
		return "", ok
	}
	return values[0], true
}

// Clone returns a deep copy, so callers can diff before and after edits.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	out := *i
	out.ParentID = cloneInt64(i.ParentID)
	out.AssignedToID = cloneInt64(i.AssignedToID)
	out.CategoryID = cloneInt64(i.CategoryID)
	out.FixedVersionID = cloneInt64(i.FixedVersionID)
	if i.StartDate != nil {
		d := *i.StartDate
		out.StartDate = &d
	}
	if i.DueDate != nil {
		d := *i.DueDate
		out.DueDate = &d
	}
	if i.EstimatedHours != nil {
		h := *i.EstimatedHours
		out.EstimatedHours = &h
	}
	if i.CustomValues != nil {
		out.CustomValues = make(map[int64][]string, len(i.CustomValues))
		for id, values := range i.CustomValues {
			out.CustomValues[id] = append([]string(nil), values...)
		}
	}
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
