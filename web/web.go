// Package web holds the reader's templates and browser assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/tahcohcat/lector-web/internal/reader"
)

//go:embed templates/*.gohtml static/*
var assets embed.FS

// Assets returns the template and static tree. A non-empty dir serves files
// from disk instead, so templates can be edited without a rebuild.
func Assets(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return assets
}

// Static serves the static/ subtree of fsys.
func Static(fsys fs.FS) (http.Handler, error) {
	sub, err := fs.Sub(fsys, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}
	return http.FileServer(http.FS(sub)), nil
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.ParseFS(fsys, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page renders the whole reader page.
func (r *Renderer) Page(w io.Writer, v reader.View) error {
	return r.tmpl.ExecuteTemplate(w, "index.gohtml", v)
}

// Panel renders only the panel fragment, which the browser swaps in place.
func (r *Renderer) Panel(v reader.View) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "panel", v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) Login(w io.Writer, errMsg string) error {
	return r.tmpl.ExecuteTemplate(w, "login.gohtml", map[string]string{"Error": errMsg})
}
