// Package uistatic serves the single-page question form.
package uistatic

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var distFS embed.FS

// Page is rendered into index.html.
type Page struct {
	Title  string
	Domain string
	Fields []string
}

func Handler(page Page) http.Handler {
	sub, err := fs.Sub(distFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}
	index, err := renderIndex(sub, page)
	if err != nil {
		return http.NotFoundHandler()
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath != "." && cleanPath != "" && cleanPath != "index.html" {
			if _, err := fs.Stat(sub, cleanPath); err == nil {
				fileServer.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	})
}

func renderIndex(filesystem fs.FS, page Page) ([]byte, error) {
	tpl, err := template.ParseFS(filesystem, "index.html")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(page.Title) == "" {
		page.Title = "Table Q&A"
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
