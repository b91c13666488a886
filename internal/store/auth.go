package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a provisioned account.
type User struct {
	ID           int64
	Login        string
	Firstname    string
	Lastname     string
	PasswordHash string
	Admin        bool
	Language     string
	Disabled     bool
	CreatedOn    time.Time
	UpdatedOn    time.Time
}

// NewUser carries the attributes of an account to create.
type NewUser struct {
	ID           int64
	Login        string
	Firstname    string
	Lastname     string
	PasswordHash string
	APIKeyHash   string
	Admin        bool
	Language     string
}

const userColumns = "id, login, firstname, lastname, password_hash, admin, language, disabled, created_on, updated_on"

// CountEnabledUsers returns the number of non-disabled provisioned users.
func (s *Store) CountEnabledUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE disabled = 0").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreateUser inserts one account. Login must already be normalized.
func (s *Store) CreateUser(ctx context.Context, user NewUser) (*User, error) {
	return createUser(ctx, s.db, user, s.now())
}

func createUser(ctx context.Context, db execer, user NewUser, now time.Time) (*User, error) {
	login := normalizeLogin(user.Login)
	if login == "" {
		return nil, fmt.Errorf("login is required")
	}

	var id any
	if user.ID > 0 {
		id = user.ID
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO users (id, login, firstname, lastname, password_hash, api_key_hash, admin, language, disabled, created_on, updated_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, id, login, user.Firstname, user.Lastname, user.PasswordHash, nullIfEmpty(user.APIKeyHash),
		boolInt(user.Admin), user.Language, formatTime(now), formatTime(now))
	if err != nil {
		return nil, err
	}
	userID := user.ID
	if userID == 0 {
		if userID, err = result.LastInsertId(); err != nil {
			return nil, err
		}
	}

	return &User{
		ID:           userID,
		Login:        login,
		Firstname:    user.Firstname,
		Lastname:     user.Lastname,
		PasswordHash: user.PasswordHash,
		Admin:        user.Admin,
		Language:     user.Language,
		CreatedOn:    now.UTC(),
		UpdatedOn:    now.UTC(),
	}, nil
}

// GetUserByLogin returns a provisioned user by normalized login.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	login = normalizeLogin(login)
	if login == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE login = ? LIMIT 1", login)
	return scanUser(row)
}

// GetUserByID returns a provisioned user by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// GetUserByAPIKeyHash returns the enabled user owning an API key hash.
func (s *Store) GetUserByAPIKeyHash(ctx context.Context, keyHash string) (*User, error) {
	keyHash = strings.TrimSpace(keyHash)
	if keyHash == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE api_key_hash = ? AND disabled = 0 LIMIT 1", keyHash)
	return scanUser(row)
}

// SetAPIKeyHash replaces the API key hash of a user.
func (s *Store) SetAPIKeyHash(ctx context.Context, userID int64, keyHash string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE users SET api_key_hash = ?, updated_on = ? WHERE id = ?",
		nullIfEmpty(keyHash), formatTime(s.now()), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// CreateSession creates a browser session bound to one user and token hash.
func (s *Store) CreateSession(ctx context.Context, userID int64, tokenHash string, expiresAt, createdAt time.Time) error {
	tokenHash = strings.TrimSpace(tokenHash)
	if userID <= 0 {
		return fmt.Errorf("user id is required")
	}
	if tokenHash == "" {
		return fmt.Errorf("token hash is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, NULL, ?)
	`, userID, tokenHash, formatTime(expiresAt), formatTime(createdAt))
	return err
}

// GetUserBySessionTokenHash returns the owning user for an active, non-revoked session token hash.
func (s *Store) GetUserBySessionTokenHash(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.login, u.firstname, u.lastname, u.password_hash, u.admin, u.language, u.disabled, u.created_on, u.updated_on
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = ?
		  AND s.revoked_at IS NULL
		  AND s.expires_at > ?
		  AND u.disabled = 0
		LIMIT 1
	`, tokenHash, formatTime(now))

	return scanUser(row)
}

// RevokeSessionByTokenHash marks one session revoked by token hash.
func (s *Store) RevokeSessionByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = ?
		WHERE token_hash = ?
		  AND revoked_at IS NULL
	`, formatTime(revokedAt), tokenHash)
	return err
}

// GrantPermissions makes the user a project member holding permissions.
// Existing grants are kept.
func (s *Store) GrantPermissions(ctx context.Context, userID, projectID int64, permissions []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = grantPermissions(ctx, tx, userID, projectID, permissions); err != nil {
		return err
	}
	return tx.Commit()
}

func grantPermissions(ctx context.Context, tx *sql.Tx, userID, projectID int64, permissions []string) error {
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO members (user_id, project_id) VALUES (?, ?)", userID, projectID); err != nil {
		return err
	}
	var memberID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM members WHERE user_id = ? AND project_id = ?", userID, projectID).Scan(&memberID); err != nil {
		return err
	}
	for _, permission := range permissions {
		permission = strings.TrimSpace(permission)
		if permission == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO member_permissions (member_id, permission) VALUES (?, ?)", memberID, permission); err != nil {
			return err
		}
	}
	return nil
}

// UserAllowedTo reports whether the user holds permission on every listed
// project. Admins are always allowed. An empty project list is allowed only
// for admins.
func (s *Store) UserAllowedTo(ctx context.Context, userID int64, permission string, projectIDs []int64) (bool, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil || user.Disabled {
		return false, nil
	}
	if user.Admin {
		return true, nil
	}
	projectIDs = uniqueIDs(projectIDs)
	if len(projectIDs) == 0 {
		return false, nil
	}

	args := append([]any{userID, permission}, int64Args(projectIDs)...)
	var granted int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(DISTINCT m.project_id)
		FROM members m
		JOIN member_permissions mp ON mp.member_id = m.id
		WHERE m.user_id = ? AND mp.permission = ? AND m.project_id IN (%s)
	`, placeholders(len(projectIDs))), args...).Scan(&granted)
	if err != nil {
		return false, err
	}
	return granted == len(projectIDs), nil
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*User, error) {
	var user User
	var admin, disabled int
	var createdOn, updatedOn string
	if err := scanner.Scan(&user.ID, &user.Login, &user.Firstname, &user.Lastname, &user.PasswordHash, &admin, &user.Language, &disabled, &createdOn, &updatedOn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.Admin = admin != 0
	user.Disabled = disabled != 0
	var err error
	if user.CreatedOn, err = parseTime(createdOn); err != nil {
		return nil, err
	}
	if user.UpdatedOn, err = parseTime(updatedOn); err != nil {
		return nil, err
	}
	return &user, nil
}

func normalizeLogin(login string) string {
	return strings.TrimSpace(strings.ToLower(login))
}
