package site

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

func staticRoot() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// Only fails on a malformed path; fall back to the raw embed.
		return staticFS
	}
	return sub
}

// FS returns an http.FileSystem for the embedded console assets.
func FS() http.FileSystem {
	return http.FS(staticRoot())
}
