package api

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleAudio serves a stored audio file. Each hit also runs the retention
// sweep, which may remove this very file; that case degrades to 404.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	if !s.store.Exists(name) {
		s.stats.audioNotFound.Add(1)
		slog.Warn("audio file not found", "file", name)
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}

	s.store.Sweep(s.cfg.AudioMaxAge)

	f, info, err := s.store.Open(name)
	if err != nil {
		s.stats.audioNotFound.Add(1)
		slog.Warn("audio file unavailable after sweep", "file", name, "error", err)
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	defer f.Close()

	s.stats.audioServed.Add(1)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
