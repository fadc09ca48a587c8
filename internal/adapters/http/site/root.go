// Package site serves the embedded operator console.
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Error constants
var (
	ErrServe = errors.New("console serve failed")
)

// Register attaches the console routes to r: the page at / and its assets
// under /static/.
func Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	root := NewRootHandler()
	r.Get("/", root.HandleRoot)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(FS())))
}

// RootHandler serves the console page.
type RootHandler struct {
	index []byte
	err   error
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	b, err := fs.ReadFile(staticRoot(), "index.html")
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrServe, err)
	}
	return &RootHandler{index: b, err: err}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	if h.err != nil {
		http.Error(w, h.err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(h.index)
}
