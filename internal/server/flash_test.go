package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSafeBackURL(t *testing.T) {
	const fallback = "/issues"
	tests := []struct {
		raw  string
		want string
	}{
		{"", fallback},
		{"/projects/ecookbook/issues?sort=id", "/projects/ecookbook/issues?sort=id"},
		{"https://evil.example.com/", fallback},
		{"//evil.example.com/", fallback},
		{"/\\evil.example.com", fallback},
		{"javascript:alert(1)", fallback},
		{"issues", fallback},
		{"/issues\r\nSet-Cookie: x=1", fallback},
	}
	for _, tc := range tests {
		if got := safeBackURL(tc.raw, fallback); got != tc.want {
			t.Errorf("safeBackURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestFlashRoundTrip(t *testing.T) {
	srv := &Server{}

	w := httptest.NewRecorder()
	srv.setFlash(w, httptest.NewRequest(http.MethodGet, "/", nil), flashNotice, "Saved <all> issues")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	msg, ok := srv.takeFlash(httptest.NewRecorder(), req)
	if !ok {
		t.Fatal("expected flash")
	}
	if msg.Kind != flashNotice || msg.Message != "Saved <all> issues" {
		t.Fatalf("unexpected flash %+v", msg)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: "!!not-base64"})
	if _, ok := srv.takeFlash(httptest.NewRecorder(), req); ok {
		t.Fatal("garbage cookie should be ignored")
	}
}

func TestTruncateFlash(t *testing.T) {
	if got := truncateFlash("short"); got != "short" {
		t.Fatalf("short message changed: %q", got)
	}

	// Every rune is two bytes wide, so a byte cut at the limit would split one.
	long := strings.Repeat("é", maxFlashLength)
	got := truncateFlash(long)
	if len(got) > maxFlashLength {
		t.Fatalf("truncated message is %d bytes, limit %d", len(got), maxFlashLength)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncated message is not valid UTF-8")
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected an ellipsis, got suffix %q", got[len(got)-8:])
	}
	if trimmed := strings.TrimSuffix(got, "…"); strings.Trim(trimmed, "é") != "" {
		t.Fatal("truncation should keep whole runes only")
	}
}

func TestFlashLongMessageSurvivesCookie(t *testing.T) {
	srv := &Server{}

	w := httptest.NewRecorder()
	srv.setFlash(w, httptest.NewRequest(http.MethodGet, "/", nil), flashError, strings.Repeat("日本", maxFlashLength))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	msg, ok := srv.takeFlash(httptest.NewRecorder(), req)
	if !ok {
		t.Fatal("expected flash")
	}
	if !utf8.ValidString(msg.Message) || !strings.HasSuffix(msg.Message, "…") {
		t.Fatalf("unexpected truncated flash %q", msg.Message[len(msg.Message)-9:])
	}
}
