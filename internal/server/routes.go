package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Edit page script and stylesheet.
	mux.Handle("GET "+assetsPrefix+"{file}", s.assetHandler())

	// Browser sessions.
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Inline editing, global and project scoped.
	mux.Handle("GET /inline_issues/edit_multiple", s.withAuth(http.HandlerFunc(s.handleEditMultiple)))
	mux.Handle("GET /projects/{project_id}/inline_issues/edit_multiple", s.withAuth(http.HandlerFunc(s.handleEditMultiple)))
	mux.Handle("POST /inline_issues/update_multiple", s.withAuth(http.HandlerFunc(s.handleUpdateMultiple)))
	mux.Handle("POST /projects/{project_id}/inline_issues/update_multiple", s.withAuth(http.HandlerFunc(s.handleUpdateMultiple)))

	return mux
}
