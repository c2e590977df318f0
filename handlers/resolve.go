package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolveWithin translates a slash-separated relative URL name into an
// absolute filesystem path under root, rejecting anything that would escape
// it. Dot-prefixed names are refused too: in-flight upload temp files and
// the vault's own bookkeeping files live behind dots.
func resolveWithin(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty name")
	}
	if strings.HasPrefix(filepath.Base(name), ".") {
		return "", fmt.Errorf("hidden file")
	}

	fsPath := filepath.Join(root, filepath.FromSlash(name))

	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(fsPath)
	if cleanPath == cleanRoot || !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return cleanPath, nil
}
