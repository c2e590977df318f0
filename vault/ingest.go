package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StoredFile describes a successfully ingested upload.
type StoredFile struct {
	OriginalName string   `json:"original_name"`
	StoredName   string   `json:"stored_name"`
	Category     Category `json:"category"`
	SizeBytes    int64    `json:"size_bytes"`
}

// Ingestor validates, sanitizes, and persists uploaded files. The byte
// stream goes to a dot-prefixed temp file first and is renamed into place
// only once fully drained and synced, so a partially received upload is
// never visible under its final name — listings skip dotfiles.
type Ingestor struct {
	policy *Policy
	stats  *Stats // may be nil

	// one lock per category directory: collision probing is check-then-act
	locks map[Category]*sync.Mutex
}

// NewIngestor creates an ingestor over policy. stats may be nil when no
// counters are kept (tests).
func NewIngestor(policy *Policy, stats *Stats) *Ingestor {
	locks := make(map[Category]*sync.Mutex, len(categoryDirs))
	for c := range categoryDirs {
		locks[c] = &sync.Mutex{}
	}
	return &Ingestor{policy: policy, stats: stats, locks: locks}
}

// Ingest persists content as a new file in the named category.
//
// Validation is fail-fast, first match wins: unknown category, empty
// filename, extension not allowed. The stored name is the sanitized original
// name, suffixed _1, _2, … when it collides with an existing file.
func (ing *Ingestor) Ingest(category, originalName string, content io.Reader) (StoredFile, error) {
	cat, ok := ParseCategory(category)
	if !ok {
		return StoredFile{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if originalName == "" {
		return StoredFile{}, ErrEmptyFilename
	}
	if !ing.policy.IsAllowed(cat, originalName) {
		return StoredFile{}, fmt.Errorf("%w: %q not accepted by %s", ErrUnsupportedType, originalName, cat)
	}

	root, err := ing.policy.EnsureRoot(cat)
	if err != nil {
		return StoredFile{}, err
	}

	// Stream to the temp file without holding the category lock: only the
	// probe-and-rename at the end needs to be serialized.
	tmpPath := filepath.Join(root, ".upload-"+uuid.NewString()+".tmp")
	size, err := writeTemp(tmpPath, content)
	if err != nil {
		os.Remove(tmpPath)
		return StoredFile{}, fmt.Errorf("ingest %s/%s: %w: %w", cat, originalName, ErrStorage, err)
	}

	name := sanitizeFilename(originalName)

	mu := ing.locks[cat]
	mu.Lock()
	storedName := resolveCollision(root, name)
	renameErr := os.Rename(tmpPath, filepath.Join(root, storedName))
	mu.Unlock()

	if renameErr != nil {
		os.Remove(tmpPath)
		return StoredFile{}, fmt.Errorf("ingest %s/%s: %w: %w", cat, originalName, ErrStorage, renameErr)
	}

	if ing.stats != nil {
		ing.stats.RecordUpload(size)
	}

	return StoredFile{
		OriginalName: originalName,
		StoredName:   storedName,
		Category:     cat,
		SizeBytes:    size,
	}, nil
}

// writeTemp drains content into path and returns the byte count. The file is
// synced before close so a reported success is actually on disk.
func writeTemp(path string, content io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	size, err := io.Copy(f, content)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close: %w", err)
	}
	return size, nil
}

// sanitizeFilename reduces a client-supplied name to a bare filename that is
// safe to create inside a category root. Directory components (either
// separator convention), null bytes, and control characters are stripped;
// leading dots and spaces are trimmed so the result can neither hide itself
// nor re-anchor as a relative path. The extension is preserved exactly as
// supplied, keeping extension-based validation consistent after the rename.
func sanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	name = b.String()

	name = strings.TrimLeft(name, ". ")
	name = strings.TrimRight(name, " ")

	if name == "" {
		return "unnamed"
	}
	return name
}

// resolveCollision returns the first of name, base_1.ext, base_2.ext, … that
// does not exist under root. Callers hold the category lock, so the chosen
// name stays free until the rename that follows.
func resolveCollision(root, name string) string {
	if !fileExists(filepath.Join(root, name)) {
		return name
	}

	base, ext := splitBaseExt(name)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !fileExists(filepath.Join(root, candidate)) {
			return candidate
		}
	}
}

// splitBaseExt splits "photo.tar.gz" into ("photo.tar", ".gz"). A name with
// no dot has an empty extension.
func splitBaseExt(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
