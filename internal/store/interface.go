package store

import (
	"context"
	"errors"
	"time"

	"inlineedit/internal/models"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
	// ErrStaleObject reports a save against an outdated lock_version.
	ErrStaleObject = errors.New("stale object")
)

// IssueStore abstracts issue persistence and listing.
type IssueStore interface {
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	GetIssues(ctx context.Context, ids []int64) ([]models.Issue, error)
	IssueProjects(ctx context.Context, ids []int64) (map[int64]int64, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	SaveIssue(ctx context.Context, issue *models.Issue, expectedLockVersion int) error
	ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, error)
	CountIssues(ctx context.Context, q IssueQuery) (int, error)
	IssueIDs(ctx context.Context, q IssueQuery) ([]int64, error)
	CountByGroup(ctx context.Context, q IssueQuery) ([]GroupCount, error)
}

// CatalogStore loads lookups and saved queries.
type CatalogStore interface {
	LoadCatalog(ctx context.Context, projectIDs []int64) (*models.Catalog, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	FindProject(ctx context.Context, ref string) (*models.Project, error)
	GetQuery(ctx context.Context, id int64) (*models.Query, error)
	CustomFields(ctx context.Context) ([]models.CustomField, error)
}

// AuthStore abstracts users, sessions and memberships.
type AuthStore interface {
	CountEnabledUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, user NewUser) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByAPIKeyHash(ctx context.Context, keyHash string) (*User, error)
	CreateSession(ctx context.Context, userID int64, tokenHash string, expiresAt, createdAt time.Time) error
	GetUserBySessionTokenHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	RevokeSessionByTokenHash(ctx context.Context, tokenHash string, now time.Time) error
	GrantPermissions(ctx context.Context, userID, projectID int64, permissions []string) error
	UserAllowedTo(ctx context.Context, userID int64, permission string, projectIDs []int64) (bool, error)
}

var (
	_ IssueStore   = (*Store)(nil)
	_ CatalogStore = (*Store)(nil)
	_ AuthStore    = (*Store)(nil)
)
