package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Category is one of the four fixed media classes. The set is not
// user-extensible at runtime.
type Category string

const (
	CategoryVideo     Category = "video"
	CategoryGallery   Category = "gallery"
	CategoryAudio     Category = "audio"
	CategoryDocuments Category = "documents"
)

// categoryDirs maps each category to its storage directory name under the
// data dir. The names are kept from the original deployment layout so an
// existing vault keeps working, and they double as the public URL prefixes.
var categoryDirs = map[Category]string{
	CategoryVideo:     "Video",
	CategoryGallery:   "Galleria",
	CategoryAudio:     "Audio",
	CategoryDocuments: "Documents",
}

// categoryExtensions is the single source of truth for which file types each
// category accepts. Both upload validation and directory listing consult this
// table, so the two can never drift apart.
//
// The overlaps are deliberate and load-bearing: "ogg" is a container format
// valid as video, gallery media, and audio; the gallery accepts short video
// clips alongside images; and the documents set includes the common image
// formats so scanned pages and figures can live next to PDFs.
var categoryExtensions = map[Category]map[string]bool{
	CategoryVideo: {
		"mp4": true, "webm": true, "ogg": true, "mov": true, "avi": true, "mkv": true,
	},
	CategoryGallery: {
		"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true, "webp": true,
		"mp4": true, "webm": true, "ogg": true,
	},
	CategoryAudio: {
		"mp3": true, "wav": true, "ogg": true, "flac": true, "aac": true, "m4a": true,
	},
	CategoryDocuments: {
		"pdf": true, "doc": true, "docx": true, "txt": true,
		"svg": true, "png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true, "webp": true,
		"md": true, "org": true, "html": true,
	},
}

// Categories returns the four categories in a stable display order.
func Categories() []Category {
	return []Category{CategoryVideo, CategoryGallery, CategoryAudio, CategoryDocuments}
}

// ParseCategory validates a raw category name (e.g. a URL path segment).
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(s))
	_, ok := categoryDirs[c]
	return c, ok
}

// Policy answers which files belong in which category and where each
// category lives on disk. It is pure lookup logic; the only filesystem side
// effect is the idempotent root creation in EnsureRoot.
type Policy struct {
	dataDir string
}

// NewPolicy creates a policy rooted at dataDir. The category directories are
// not created here; callers run EnsureRoot before any write.
func NewPolicy(dataDir string) *Policy {
	return &Policy{dataDir: dataDir}
}

// IsAllowed reports whether filename's extension is accepted by category.
// The extension is the substring after the final dot, compared
// case-insensitively. A filename without a dot is always rejected, as is an
// unknown category.
func (p *Policy) IsAllowed(category Category, filename string) bool {
	exts, ok := categoryExtensions[category]
	if !ok {
		return false
	}
	ext := extensionOf(filename)
	if ext == "" {
		return false
	}
	return exts[ext]
}

// RootDir returns the storage root for category. The result is meaningless
// for unknown categories; callers validate with ParseCategory first.
func (p *Policy) RootDir(category Category) string {
	return filepath.Join(p.dataDir, categoryDirs[category])
}

// EnsureRoot creates the category's storage root if it does not exist yet
// and returns its path.
func (p *Policy) EnsureRoot(category Category) (string, error) {
	if _, ok := categoryDirs[category]; !ok {
		return "", ErrInvalidCategory
	}
	root := p.RootDir(category)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create category root %s: %w: %w", root, ErrStorage, err)
	}
	return root, nil
}

// URLPrefix returns the public URL prefix under which category files are
// served, e.g. "/Galleria".
func (p *Policy) URLPrefix(category Category) string {
	return "/" + categoryDirs[category]
}

// ListableExtensions returns a sorted copy of the category's accepted
// extension set. Listing handlers filter directory scans with this so the
// listing filter and the upload filter always agree.
func (p *Policy) ListableExtensions(category Category) []string {
	exts := categoryExtensions[category]
	out := make([]string, 0, len(exts))
	for e := range exts {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// TypeLabel returns the short uppercase type tag shown in document listings
// (e.g. "PDF", "DOCX"). Empty for filenames without an extension.
func TypeLabel(filename string) string {
	return strings.ToUpper(extensionOf(filename))
}

// extensionOf extracts the lowercased extension after the final dot, without
// the dot itself. Returns "" when there is no dot or nothing follows it.
func extensionOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}
