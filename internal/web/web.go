// Package web serves the embedded single-page UI: a sidebar with the
// document upload control and session list, and a chat transcript with a
// message input. All behavior goes through the JSON API.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var content embed.FS

type Handler struct {
	staticFS http.Handler
}

func New() (*Handler, error) {
	staticSub, err := fs.Sub(content, "static")
	if err != nil {
		return nil, err
	}
	return &Handler{
		staticFS: http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))),
	}, nil
}

// Index serves the chat page at GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := content.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// Static serves the embedded CSS/JS assets under GET /static/.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	h.staticFS.ServeHTTP(w, r)
}
