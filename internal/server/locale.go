package server

import (
	"net/http"

	"inlineedit/internal/i18n"
)

// translator picks the caller's language, then Accept-Language, then the
// configured default.
func (s *Server) translator(r *http.Request) *i18n.Translator {
	var candidates []string
	if user := currentUser(r.Context()); user != nil {
		candidates = append(candidates, user.Language)
	}
	candidates = append(candidates, r.Header.Get("Accept-Language"), s.locale)
	return s.bundle.Translator(s.bundle.Negotiate(candidates...))
}
