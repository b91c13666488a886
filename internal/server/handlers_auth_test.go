package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"inlineedit/internal/api"
)

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("expected session cookie on login response")
	return nil
}

func TestBrowserSessionLoginFlow(t *testing.T) {
	srv, st := newTestServer(t)
	seedUserWithPassword(t, st, "alice", "password-123", true)
	h := srv.Handler()

	loginBody := []byte(`{"login":"Alice","password":"password-123"}`)
	loginReq := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(loginBody))
	loginReq.Header.Set("Content-Type", "application/json")
	loginW := httptest.NewRecorder()
	h.ServeHTTP(loginW, loginReq)
	if loginW.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d (%s)", loginW.Code, loginW.Body.String())
	}

	var resp api.LoginResponse
	if err := json.Unmarshal(loginW.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Login != "alice" || resp.Name != "Alice Tester" || !resp.Admin {
		t.Fatalf("unexpected login response %+v", resp)
	}

	cookie := sessionCookie(t, loginW)
	if !cookie.HttpOnly {
		t.Fatal("expected HttpOnly session cookie")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", cookie.SameSite)
	}

	editReq := httptest.NewRequest(http.MethodGet, "/inline_issues/edit_multiple?ids[]=1", nil)
	editReq.AddCookie(cookie)
	editW := httptest.NewRecorder()
	h.ServeHTTP(editW, editReq)
	if editW.Code != http.StatusOK {
		t.Fatalf("expected edit page 200, got %d (%s)", editW.Code, editW.Body.String())
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	logoutReq.AddCookie(cookie)
	logoutW := httptest.NewRecorder()
	h.ServeHTTP(logoutW, logoutReq)
	if logoutW.Code != http.StatusNoContent {
		t.Fatalf("expected logout 204, got %d (%s)", logoutW.Code, logoutW.Body.String())
	}

	afterReq := httptest.NewRequest(http.MethodGet, "/inline_issues/edit_multiple?ids[]=1", nil)
	afterReq.AddCookie(cookie)
	afterW := httptest.NewRecorder()
	h.ServeHTTP(afterW, afterReq)
	if afterW.Code != http.StatusUnauthorized {
		t.Fatalf("expected edit page to be unauthorized after logout, got %d", afterW.Code)
	}
}

func TestLoginWithForm(t *testing.T) {
	srv, st := newTestServer(t)
	seedUserWithPassword(t, st, "alice", "password-123", false)

	form := url.Values{"login": {"alice"}, "password": {"password-123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	sessionCookie(t, w)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv, st := newTestServer(t)
	seedUserWithPassword(t, st, "alice", "password-123", false)
	h := srv.Handler()

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := login(`{"login":"alice","password":"wrong-password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeUnauthorized {
		t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
	}

	w = login(`{"login":"nobody","password":"wrong-password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown login, got %d", w.Code)
	}

	w = login(`{"login":"","password":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank login, got %d", w.Code)
	}

	w = login(`{"login":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", w.Code)
	}
	if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeInvalidJSON {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidJSON, errResp.ErrorCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	srv, st := newTestServer(t)
	seedUserWithPassword(t, st, "alice", "password-123", false)
	h := srv.Handler()

	var last *httptest.ResponseRecorder
	for i := 0; i <= loginMaxFailures; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"login":"alice","password":"wrong-password"}`))
		req.Header.Set("Content-Type", "application/json")
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"login":"alice","password":"password-123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected blocked key to stay blocked, got %d", w.Code)
	}
}

func TestLoginRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newLoginRateLimiter(2, time.Minute, 10*time.Minute)

	l.RegisterFailure("k", now)
	if !l.Allow("k", now) {
		t.Fatal("one failure should not block")
	}
	l.RegisterFailure("k", now.Add(2*time.Minute))
	if !l.Allow("k", now.Add(2*time.Minute)) {
		t.Fatal("failures outside the window should not accumulate")
	}
	l.RegisterFailure("k", now.Add(150*time.Second))
	if l.Allow("k", now.Add(3*time.Minute)) {
		t.Fatal("expected key to be blocked")
	}
	if !l.Allow("other", now) {
		t.Fatal("other keys are unaffected")
	}
	if !l.Allow("k", now.Add(20*time.Minute)) {
		t.Fatal("block should expire")
	}

	l.RegisterFailure("k", now)
	l.Reset("k")
	l.RegisterFailure("k", now)
	if !l.Allow("k", now) {
		t.Fatal("reset should clear failures")
	}

	var disabled *loginRateLimiter
	if !disabled.Allow("k", now) {
		t.Fatal("nil limiter allows everything")
	}
}
