package handlers

import (
	"mime"
	"path/filepath"
	"strings"
)

// ownExtensions is checked before the OS MIME registry so the vault's media
// types never depend on what the host happens to have registered. ".ogg" is
// reported as audio/ogg; browsers play Ogg video fine under that type and
// the container is genuinely ambiguous.
var ownExtensions = map[string]string{
	// --- video ---
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",

	// --- audio ---
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",

	// --- images ---
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",

	// --- documents ---
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".org":  "text/x-org",
	".html": "text/html",
}

// mimeForName returns the MIME type for a file name, extension-based only.
// Unknown extensions fall back to the OS registry, then octet-stream.
func mimeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := ownExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// isImage reports whether the MIME type represents an image.
func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// isMedia reports whether the MIME type is audio or video.
func isMedia(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/")
}

// isText reports whether the MIME type is a renderable or highlightable
// text type.
func isText(mimeType string) bool {
	return strings.HasPrefix(baseMIME(mimeType), "text/")
}

// baseMIME strips any parameters from a MIME type string
// (e.g. "text/html; charset=utf-8" → "text/html").
func baseMIME(mimeType string) string {
	return strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
}
