// Package server contains the HTTP server setup and template management.
package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"mediavault/models"
)

// Templates wraps compiled per-page template sets.
type Templates struct {
	home    *template.Template
	login   *template.Template
	setup   *template.Template
	preview *template.Template
}

var tmplFuncs = template.FuncMap{
	"humanSize": humanSize,
	"add":       func(a, b int) int { return a + b },
}

// LoadTemplates parses all templates from the embedded FS.
// Each page gets its own template.Template cloned from base so that
// {{define "content"}} blocks don't collide.
func LoadTemplates(tfs embed.FS) (*Templates, error) {
	sub, err := fs.Sub(tfs, "templates")
	if err != nil {
		return nil, fmt.Errorf("sub fs: %w", err)
	}

	base, err := template.New("").Funcs(tmplFuncs).ParseFS(sub, "base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}

	t := &Templates{}
	for _, page := range []struct {
		dst  **template.Template
		file string
	}{
		{&t.home, "home.html"},
		{&t.login, "login.html"},
		{&t.setup, "setup.html"},
		{&t.preview, "preview.html"},
	} {
		parsed, err := cloneAndParse(base, sub, page.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page.file, err)
		}
		*page.dst = parsed
	}
	return t, nil
}

// loadTemplatesFromDisk loads templates directly from the filesystem.
// Used in tests where the embedded FS is not available.
func loadTemplatesFromDisk(dir string) (*Templates, error) {
	base, err := template.New("").Funcs(tmplFuncs).ParseFiles(dir + "/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}

	t := &Templates{}
	for _, page := range []struct {
		dst  **template.Template
		file string
	}{
		{&t.home, "home.html"},
		{&t.login, "login.html"},
		{&t.setup, "setup.html"},
		{&t.preview, "preview.html"},
	} {
		parsed, err := cloneAndParseFiles(base, dir+"/"+page.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page.file, err)
		}
		*page.dst = parsed
	}
	return t, nil
}

// cloneAndParse clones a base template set and adds one more file from an fs.FS.
func cloneAndParse(base *template.Template, fsys fs.FS, name string) (*template.Template, error) {
	t, err := base.Clone()
	if err != nil {
		return nil, err
	}
	return t.ParseFS(fsys, name)
}

// cloneAndParseFiles clones a base template set and adds files from the OS.
func cloneAndParseFiles(base *template.Template, files ...string) (*template.Template, error) {
	t, err := base.Clone()
	if err != nil {
		return nil, err
	}
	return t.ParseFiles(files...)
}

// ExecuteHome renders the category index page.
func (t *Templates) ExecuteHome(w http.ResponseWriter, data *models.HomeData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.home.ExecuteTemplate(w, "base", data)
}

// ExecuteLogin renders the login form.
func (t *Templates) ExecuteLogin(w http.ResponseWriter, data *models.AuthPageData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.login.ExecuteTemplate(w, "base", data)
}

// ExecuteSetup renders the first-run bootstrap form.
func (t *Templates) ExecuteSetup(w http.ResponseWriter, data *models.AuthPageData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.setup.ExecuteTemplate(w, "base", data)
}

// ExecutePreview renders the file preview page.
func (t *Templates) ExecutePreview(w http.ResponseWriter, data *models.PreviewData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.preview.ExecuteTemplate(w, "base", data)
}

// humanSize formats a byte count into a human-readable string.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n := n / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
