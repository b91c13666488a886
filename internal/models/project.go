package models

import (
	"strconv"
	"strings"
)

// Displayable is implemented by lookup values that render as a human-readable name.
type Displayable interface {
	DisplayName() string
}

type Project struct {
	ID         int64  `json:"id" yaml:"id"`
	Identifier string `json:"identifier" yaml:"identifier"`
	Name       string `json:"name" yaml:"name"`
}

func (p Project) DisplayName() string { return p.Name }

type Tracker struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Position int    `yaml:"position"`
}

func (t Tracker) DisplayName() string { return t.Name }

type IssueStatus struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	IsClosed bool   `yaml:"is_closed"`
	Position int    `yaml:"position"`
}

func (s IssueStatus) DisplayName() string { return s.Name }

type IssuePriority struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	Position  int    `yaml:"position"`
	Active    bool   `yaml:"active"`
	IsDefault bool   `yaml:"is_default"`
}

func (p IssuePriority) DisplayName() string { return p.Name }

type IssueCategory struct {
	ID        int64  `yaml:"id"`
	ProjectID int64  `yaml:"project_id"`
	Name      string `yaml:"name"`
}

func (c IssueCategory) DisplayName() string { return c.Name }

// Version statuses.
const (
	VersionOpen   = "open"
	VersionLocked = "locked"
	VersionClosed = "closed"
)

type Version struct {
	ID        int64  `yaml:"id"`
	ProjectID int64  `yaml:"project_id"`
	Name      string `yaml:"name"`
	Status    string `yaml:"status"`
}

func (v Version) DisplayName() string { return v.Name }

// IsOpen reports whether issues may still be assigned to the version.
func (v Version) IsOpen() bool {
	return v.Status == "" || v.Status == VersionOpen
}

// Principal is a user as seen by issue forms.
type Principal struct {
	ID        int64
	Login     string
	Firstname string
	Lastname  string
}

func (p Principal) DisplayName() string {
	name := strings.TrimSpace(p.Firstname + " " + p.Lastname)
	if name == "" {
		return p.Login
	}
	return name
}

// IssueRef renders parent issue links in list cells.
type IssueRef struct {
	ID int64
}

func (r IssueRef) DisplayName() string {
	return "#" + strconv.FormatInt(r.ID, 10)
}
