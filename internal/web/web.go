// Package web renders the upload form served at "/" and its static assets.
package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// IndexData feeds templates/index.html. T holds the localised labels.
type IndexData struct {
	Lang        string
	T           map[string]string
	MaxUploadMB int
	Jobs        bool
}

type Web struct {
	tpl    *template.Template
	assets http.Handler
}

func New() (*Web, error) {
	tpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(static, "static")
	if err != nil {
		return nil, err
	}
	return &Web{tpl: tpl, assets: http.FileServerFS(sub)}, nil
}

func (w *Web) RenderIndex(wr io.Writer, data IndexData) error {
	return w.tpl.ExecuteTemplate(wr, "index.html", data)
}

// Static serves the manifest, icon and service worker. Mount it under
// "/static/". The worker lives below /static/ but controls the whole site,
// which browsers only allow with Service-Worker-Allowed.
func (w *Web) Static() http.Handler {
	files := http.StripPrefix("/static/", w.assets)
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/static/sw.js" {
			rw.Header().Set("Service-Worker-Allowed", "/")
			rw.Header().Set("Cache-Control", "no-cache")
		}
		files.ServeHTTP(rw, r)
	})
}
