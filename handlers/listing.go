package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mediavault/models"
	"mediavault/vault"
)

// scanResult carries a freshly built listing plus its summary counters.
type scanResult struct {
	json       []byte
	fileCount  int
	totalBytes int64
}

// scan reads a category root and serialises its listing.
//
// Video, gallery, and audio listings are plain URL arrays; the documents
// listing carries name/type/url/size objects. Both shapes are part of the
// frontend API contract. Files are filtered through the same policy table
// the upload path validates against, so a file that could not be uploaded
// never appears in a listing either. Dotfiles (including in-flight upload
// temp files) are skipped.
func (l *Listings) scan(category vault.Category) scanResult {
	root := l.policy.RootDir(category)
	prefix := l.policy.URLPrefix(category)

	rawEntries, err := os.ReadDir(root)
	if err != nil {
		// Missing or unreadable root reads as an empty category.
		return scanResult{json: []byte("[]")}
	}

	names := make([]string, 0, len(rawEntries))
	sizes := make(map[string]int64, len(rawEntries))
	var total int64
	for _, e := range rawEntries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !l.policy.IsAllowed(category, name) {
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		names = append(names, name)
		sizes[name] = size
		total += size
	}
	sort.Strings(names)

	var payload any
	if category == vault.CategoryDocuments {
		docs := make([]models.DocumentEntry, 0, len(names))
		for _, name := range names {
			docs = append(docs, models.DocumentEntry{
				Name: name,
				Type: vault.TypeLabel(name),
				URL:  prefix + "/" + name,
				Size: sizes[name],
			})
		}
		payload = docs
	} else {
		urls := make([]string, 0, len(names))
		for _, name := range names {
			urls = append(urls, prefix+"/"+name)
		}
		payload = urls
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("[]")
	}
	return scanResult{json: data, fileCount: len(names), totalBytes: total}
}

// ListCategory serves one category's listing JSON from the cache.
func ListCategory(listings *Listings, category vault.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := listings.JSON(category)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}

// StatsHandler serves the persistent transfer counters.
func StatsHandler(stats *vault.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats.Snapshot())
	}
}

// categoryLabels are the display names used on the home page.
var categoryLabels = map[vault.Category]string{
	vault.CategoryVideo:     "Video",
	vault.CategoryGallery:   "Gallery",
	vault.CategoryAudio:     "Audio",
	vault.CategoryDocuments: "Documents",
}

// HomePages renders the home page template.
type HomePages interface {
	ExecuteHome(w http.ResponseWriter, data *models.HomeData) error
}

// Home serves the category index page.
func Home(policy *vault.Policy, listings *Listings, sessions *SessionManager, siteName string, tmpl HomePages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "" {
			http.NotFound(w, r)
			return
		}

		cards := make([]models.CategoryCard, 0, 4)
		for _, c := range vault.Categories() {
			count, size := listings.Summary(c)
			cards = append(cards, models.CategoryCard{
				Name:      string(c),
				Label:     categoryLabels[c],
				URLPrefix: policy.URLPrefix(c),
				APIPath:   "/api/" + apiSegment(c),
				FileCount: count,
				TotalSize: size,
			})
		}

		data := &models.HomeData{
			Title:      siteName,
			SiteName:   siteName,
			Username:   sessions.Current(r).Username,
			Categories: cards,
		}
		if err := tmpl.ExecuteHome(w, data); err != nil {
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
	}
}

// apiSegment maps a category to its listing endpoint segment. The video
// endpoint is pluralised ("/api/videos") for compatibility with the original
// frontend; the others match the category name.
func apiSegment(c vault.Category) string {
	if c == vault.CategoryVideo {
		return "videos"
	}
	return string(c)
}

// MediaURL builds the public URL for a stored file.
func MediaURL(policy *vault.Policy, category vault.Category, name string) string {
	return policy.URLPrefix(category) + "/" + name
}

// categoryRootBase returns the final path element of a category root; used
// by ZIP naming.
func categoryRootBase(policy *vault.Policy, category vault.Category) string {
	return filepath.Base(policy.RootDir(category))
}
