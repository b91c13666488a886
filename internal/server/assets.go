package server

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

const assetsPrefix = "/plugin_assets/inline_edit/"

//go:embed assets/*
var assetFS embed.FS

func (s *Server) assetHandler() http.Handler {
	dir, err := fs.Sub(assetFS, "assets")
	if err != nil {
		return http.NotFoundHandler()
	}

	fileServer := http.StripPrefix(assetsPrefix, http.FileServerFS(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	})
}
