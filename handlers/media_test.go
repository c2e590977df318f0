package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mediavault/vault"
)

func TestMediaServesFile(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	root, _ := policy.EnsureRoot(vault.CategoryVideo)
	if err := os.WriteFile(filepath.Join(root, "clip.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler := Media(policy, vault.CategoryVideo, nil)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/Video/clip.mp4", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("content type %q", got)
	}
	if w.Body.String() != "0123456789" {
		t.Errorf("body %q", w.Body.String())
	}
}

func TestMediaRangeRequest(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	root, _ := policy.EnsureRoot(vault.CategoryVideo)
	if err := os.WriteFile(filepath.Join(root, "clip.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/Video/clip.mp4", nil)
	r.Header.Set("Range", "bytes=2-5")
	w := httptest.NewRecorder()
	Media(policy, vault.CategoryVideo, nil)(w, r)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", w.Code)
	}
	if w.Body.String() != "2345" {
		t.Errorf("range body %q", w.Body.String())
	}
}

func TestMediaNotFound(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	if _, err := policy.EnsureRoot(vault.CategoryVideo); err != nil {
		t.Fatal(err)
	}
	handler := Media(policy, vault.CategoryVideo, nil)

	for _, path := range []string{
		"/Video/missing.mp4",
		"/Video/../secret.txt",
		"/Video/.upload-x.tmp",
	} {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", path, nil))
		if w.Code != 404 {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestDownloadSetsDisposition(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	root, _ := policy.EnsureRoot(vault.CategoryDocuments)
	if err := os.WriteFile(filepath.Join(root, "paper.pdf"), []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	Download(policy, vault.CategoryDocuments, nil)(w, httptest.NewRequest("GET", "/Documents/paper.pdf", nil))

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="paper.pdf"` {
		t.Errorf("disposition %q", cd)
	}
}

func TestMimeForName(t *testing.T) {
	cases := map[string]string{
		"clip.mp4":   "video/mp4",
		"clip.OGG":   "audio/ogg",
		"track.flac": "audio/flac",
		"photo.webp": "image/webp",
		"paper.pdf":  "application/pdf",
		"notes.md":   "text/markdown",
		"journal.org": "text/x-org",
		"mystery.zzz": "application/octet-stream",
	}
	for name, want := range cases {
		if got := mimeForName(name); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestMimeClassifiers(t *testing.T) {
	if !isImage("image/png") || isImage("video/mp4") {
		t.Error("isImage")
	}
	if !isMedia("audio/ogg") || !isMedia("video/webm") || isMedia("text/plain") {
		t.Error("isMedia")
	}
	if !isText("text/markdown; charset=utf-8") || isText("application/pdf") {
		t.Error("isText")
	}
	if baseMIME("text/html; charset=utf-8") != "text/html" {
		t.Error("baseMIME")
	}
}
