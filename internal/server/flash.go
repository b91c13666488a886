package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	flashCookieName = "inlineedit_flash"
	flashError      = "error"
	flashNotice     = "notice"
	flashMaxAge     = 60 * time.Second
	maxFlashLength  = 2048
)

type flashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) setFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	payload, err := json.Marshal(flashMessage{Kind: kind, Message: truncateFlash(message)})
	if err != nil {
		s.log().Warn("encode flash", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     s.cookiePath(),
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flashMaxAge / time.Second),
	})
}

// truncateFlash shortens message to at most maxFlashLength bytes, cutting
// on a rune boundary and marking the cut with an ellipsis.
func truncateFlash(message string) string {
	if len(message) <= maxFlashLength {
		return message
	}
	const ellipsis = "…"
	cut := maxFlashLength - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + ellipsis
}

// takeFlash reads and clears the pending flash message.
func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) (flashMessage, bool) {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return flashMessage{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     s.cookiePath(),
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return flashMessage{}, false
	}
	var msg flashMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Message == "" {
		return flashMessage{}, false
	}
	return msg, true
}

// redirectWithFlash answers a browser request with 303 See Other.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	if message != "" {
		s.setFlash(w, r, kind, message)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeBackURL accepts only same-origin absolute paths.
func safeBackURL(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return raw
}
