package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"inlineedit/internal/api"
	"inlineedit/internal/auth"
	"inlineedit/internal/store"
)

const (
	sessionCookieName = "inlineedit_session"
	authTypeAPIKey    = "api_key"
	authTypeSession   = "session"
)

var (
	defaultSessionTTL     = 24 * time.Hour
	errInvalidCredentials = errors.New("invalid credentials")
)

// AuthService encapsulates login, session and API key checks backed by the
// store.
type AuthService struct {
	store      store.AuthStore
	sessionTTL time.Duration
}

type authLoginResult struct {
	User      *store.User
	Token     string
	ExpiresAt time.Time
}

func NewAuthService(authStore store.AuthStore) *AuthService {
	if authStore == nil {
		return nil
	}
	return &AuthService{store: authStore, sessionTTL: defaultSessionTTL}
}

func (a *AuthService) Login(ctx context.Context, login, password string, now time.Time) (*authLoginResult, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("auth store is required")
	}

	normalized, err := auth.NormalizeLogin(login)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("password is required")
	}

	user, err := a.store.GetUserByLogin(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Disabled || !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, errInvalidCredentials
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(a.sessionTTL)
	if err := a.store.CreateSession(ctx, user.ID, auth.HashToken(token), expiresAt, now); err != nil {
		return nil, err
	}

	return &authLoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// AuthenticateSessionToken returns nil, nil for unknown or expired tokens.
func (a *AuthService) AuthenticateSessionToken(ctx context.Context, token string, now time.Time) (*store.User, error) {
	return a.lookup(token, func(hash string) (*store.User, error) {
		return a.store.GetUserBySessionTokenHash(ctx, hash, now)
	})
}

// AuthenticateAPIKey returns nil, nil for unknown keys.
func (a *AuthService) AuthenticateAPIKey(ctx context.Context, key string) (*store.User, error) {
	return a.lookup(key, func(hash string) (*store.User, error) {
		return a.store.GetUserByAPIKeyHash(ctx, hash)
	})
}

func (a *AuthService) lookup(secret string, find func(hash string) (*store.User, error)) (*store.User, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, nil
	}
	user, err := find(auth.HashToken(secret))
	if err != nil {
		return nil, err
	}
	if user == nil || user.Disabled {
		return nil, nil
	}
	return user, nil
}

func (a *AuthService) RevokeSessionToken(ctx context.Context, token string, now time.Time) error {
	if a == nil || a.store == nil {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return a.store.RevokeSessionByTokenHash(ctx, auth.HashToken(token), now)
}

// AllowedTo reports whether user holds permission on every project.
// Administrators hold every permission.
func (a *AuthService) AllowedTo(ctx context.Context, user *store.User, permission string, projectIDs []int64) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.Admin {
		return true, nil
	}
	return a.store.UserAllowedTo(ctx, user.ID, permission, projectIDs)
}

// withAuth resolves the caller from the X-API-Key header or the session
// cookie and rejects anonymous requests.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			user     *store.User
			authType string
			err      error
		)
		if key := r.Header.Get(api.APIKeyHeader); strings.TrimSpace(key) != "" {
			user, err = s.authService.AuthenticateAPIKey(r.Context(), key)
			authType = authTypeAPIKey
		} else if token := sessionTokenFromRequest(r); token != "" {
			user, err = s.authService.AuthenticateSessionToken(r.Context(), token, time.Now().UTC())
			authType = authTypeSession
		}
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("authentication required")))
			return
		}

		ctx := contextWithAuthPrincipal(r.Context(), authPrincipal{AuthType: authType, User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return strings.ToLower(proto)
	}
	return "http"
}
