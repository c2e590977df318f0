package handlers

import (
	"bytes"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gorilla/mux"

	"mediavault/models"
	"mediavault/vault"
)

// PreviewPages renders the preview page template.
type PreviewPages interface {
	ExecutePreview(w http.ResponseWriter, data *models.PreviewData) error
}

// Preview serves an inline preview page for a stored file: images and
// audio/video get an inline viewer, text gets syntax highlighting with a
// rich render for supported document formats, and everything else gets a
// download card. renderDocs disables the rich Markdown/Org/HTML render when
// false; text then falls back to plain syntax highlighting.
func Preview(policy *vault.Policy, theme, siteName string, renderDocs bool, tmpl PreviewPages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		category, ok := vault.ParseCategory(vars["category"])
		if !ok {
			http.Error(w, "Unknown category", http.StatusNotFound)
			return
		}
		name := vars["file"]

		fsPath, err := resolveWithin(policy.RootDir(category), name)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		info, err := os.Stat(fsPath)
		if err != nil || info.IsDir() {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		fileName := filepath.Base(fsPath)
		fileURL := policy.URLPrefix(category) + "/" + fileName
		mimeType := mimeForName(fileName)

		pd := &models.PreviewData{
			Title:       fileName,
			SiteName:    siteName,
			FileName:    fileName,
			Category:    string(category),
			ViewURL:     fileURL,
			DownloadURL: "/download" + fileURL,
			FileSize:    info.Size(),
			MIMEType:    mimeType,
			ModTime:     info.ModTime(),
		}

		switch {
		case isImage(mimeType):
			pd.IsImage = true
		case isMedia(mimeType):
			pd.IsMedia = true
		case isText(mimeType):
			pd.IsText = true
			content, err := readTextFile(fsPath)
			if err != nil {
				http.Error(w, "Could not read file", http.StatusInternalServerError)
				return
			}
			// Always populate the highlighted fallback first.
			highlighted, err := highlightContent(content, fileName, theme)
			if err != nil {
				highlighted = template.HTML("<pre class=\"chroma\"><code>" +
					template.HTMLEscapeString(content) + "</code></pre>")
			}
			pd.HighlightedContent = highlighted
			// Attempt a rich render for supported formats; fall back silently.
			if renderDocs && isRenderable(mimeType) {
				if rendered, err := renderContent(content, mimeType); err == nil {
					pd.RenderedContent = rendered
					pd.IsRendered = true
				}
			}
		default:
			pd.IsBinary = true
		}

		if err := tmpl.ExecutePreview(w, pd); err != nil {
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
	}
}

// HighlightCSSHandler serves the Chroma CSS stylesheet for the configured
// theme. The CSS is generated once at startup and cached in memory.
func HighlightCSSHandler(theme string) http.HandlerFunc {
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, style); err != nil {
		buf.Reset()
	}
	css := buf.Bytes()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Write(css)
	}
}

// highlightContent runs Chroma over content, using filename for language
// detection.
func highlightContent(content, filename, theme string) (template.HTML, error) {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(true),
		chromahtml.LineNumbersInTable(true),
		chromahtml.TabWidth(4),
	)

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}

	return template.HTML(buf.String()), nil
}

// readTextFile reads a file and returns its content as a string.
// Reading is limited to 2 MB to avoid memory issues with large files.
func readTextFile(fsPath string) (string, error) {
	const maxBytes = 2 * 1024 * 1024
	f, err := os.Open(fsPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
