package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediavault/models"
	"mediavault/vault"
)

func seedCategory(t *testing.T, policy *vault.Policy, c vault.Category, names map[string]string) {
	t.Helper()
	root, err := policy.EnsureRoot(c)
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	for name, content := range names {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestListingURLArrayShape(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	seedCategory(t, policy, vault.CategoryVideo, map[string]string{
		"b.mp4":        "bb",
		"a.webm":       "a",
		".partial.mp4": "hidden",  // in-flight temp upload
		"notes.txt":    "skipped", // not a video type
	})
	listings := NewListings(policy)

	w := httptest.NewRecorder()
	ListCategory(listings, vault.CategoryVideo)(w, httptest.NewRequest("GET", "/api/videos", nil))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	var urls []string
	if err := json.Unmarshal(w.Body.Bytes(), &urls); err != nil {
		t.Fatalf("not a URL array: %v (body %q)", err, w.Body.String())
	}
	want := []string{"/Video/a.webm", "/Video/b.mp4"}
	if len(urls) != len(want) {
		t.Fatalf("expected %v, got %v", want, urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], urls[i])
		}
	}
}

func TestListingDocumentsObjectShape(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	seedCategory(t, policy, vault.CategoryDocuments, map[string]string{
		"paper.pdf": "12345",
		"notes.txt": "abc",
	})
	listings := NewListings(policy)

	w := httptest.NewRecorder()
	ListCategory(listings, vault.CategoryDocuments)(w, httptest.NewRequest("GET", "/api/documents", nil))

	var docs []models.DocumentEntry
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatalf("not a document array: %v (body %q)", err, w.Body.String())
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	first := docs[0] // sorted by name
	if first.Name != "notes.txt" || first.Type != "TXT" ||
		first.URL != "/Documents/notes.txt" || first.Size != 3 {
		t.Errorf("unexpected entry: %+v", first)
	}
	second := docs[1]
	if second.Name != "paper.pdf" || second.Type != "PDF" || second.Size != 5 {
		t.Errorf("unexpected entry: %+v", second)
	}
}

func TestListingEmptyAndMissingRoot(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	listings := NewListings(policy)

	// The root was never created; the listing reads as empty, not an error.
	w := httptest.NewRecorder()
	ListCategory(listings, vault.CategoryAudio)(w, httptest.NewRequest("GET", "/api/audio", nil))
	if w.Body.String() != "[]" {
		t.Errorf("expected [], got %q", w.Body.String())
	}
}

func TestListingInvalidation(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	seedCategory(t, policy, vault.CategoryGallery, map[string]string{"one.png": "1"})
	listings := NewListings(policy)

	if got := string(listings.JSON(vault.CategoryGallery)); got != `["/Galleria/one.png"]` {
		t.Fatalf("initial listing: %s", got)
	}

	// New file plus invalidation: the stale value may be served while the
	// rescan runs in the background, but the fresh one must arrive.
	seedCategory(t, policy, vault.CategoryGallery, map[string]string{"two.png": "2"})
	listings.Invalidate(vault.CategoryGallery)

	deadline := time.Now().Add(2 * time.Second)
	for {
		var urls []string
		if err := json.Unmarshal(listings.JSON(vault.CategoryGallery), &urls); err == nil && len(urls) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("listing never refreshed: %s", listings.JSON(vault.CategoryGallery))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListingSummary(t *testing.T) {
	policy := vault.NewPolicy(t.TempDir())
	seedCategory(t, policy, vault.CategoryAudio, map[string]string{
		"a.mp3": "12345",
		"b.ogg": "123",
	})
	listings := NewListings(policy)

	count, size := listings.Summary(vault.CategoryAudio)
	if count != 2 || size != 8 {
		t.Errorf("expected 2 files / 8 bytes, got %d / %d", count, size)
	}
}
