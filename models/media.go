// Package models defines data structures shared between handlers and
// templates.
package models

import (
	"html/template"
	"time"
)

// DocumentEntry is one row of the documents listing JSON. Field names match
// the API contract consumed by the document browser frontend.
type DocumentEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// UploadResponse is the JSON body returned by the upload endpoint.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SessionInfo is the JSON body of the session-check endpoint. The field
// names are part of the frontend contract.
type SessionInfo struct {
	LoggedIn bool   `json:"loggedIn"`
	Username string `json:"username"`
}

// CategoryCard is one tile on the home page.
type CategoryCard struct {
	Name      string // category name, e.g. "gallery"
	Label     string // display label
	URLPrefix string // public serving prefix, e.g. "/Galleria"
	APIPath   string // listing endpoint, e.g. "/api/gallery"
	FileCount int
	TotalSize int64
}

// HomeData holds everything the home template needs.
type HomeData struct {
	Title      string
	SiteName   string
	Username   string
	Categories []CategoryCard
}

// AuthPageData renders the login and setup forms.
type AuthPageData struct {
	Title    string
	SiteName string
	// Error is a short user-facing message shown above the form, empty
	// when the page is rendered without a failed attempt.
	Error string
}

// PreviewData holds the information needed to render a file preview page.
type PreviewData struct {
	Title    string
	SiteName string
	FileName string
	Category string

	// Exactly one of IsImage / IsText / IsMedia / IsBinary is true.
	IsImage  bool
	IsText   bool
	IsMedia  bool // audio or video, rendered with a native player
	IsBinary bool // generic info card

	// ViewURL serves the file inline (images, audio, video).
	ViewURL string
	// DownloadURL is the explicit download href.
	DownloadURL string

	FileSize int64
	MIMEType string
	ModTime  time.Time

	// HighlightedContent is the syntax-highlighted HTML for text files.
	HighlightedContent template.HTML
	// IsRendered is true when RenderedContent should be shown instead of
	// HighlightedContent (Markdown, Org-mode, HTML documents).
	IsRendered bool
	// RenderedContent is the sanitized rich-rendered HTML.
	// HighlightedContent is still populated as a fallback.
	RenderedContent template.HTML
}
