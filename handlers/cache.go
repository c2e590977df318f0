package handlers

import (
	"log"
	"sync"
	"time"

	"mediavault/vault"
)

// safetyTTL is a long backstop expiry applied to every cached listing.
// Under normal operation the filesystem watcher (and the upload path itself)
// invalidate entries long before this fires; it exists only as a safety net
// in case a kernel watch event is ever missed.
const safetyTTL = 20 * time.Minute

// listingEntry is one cached, pre-serialised category listing.
type listingEntry struct {
	json       []byte // serialised listing; nil until first build
	fileCount  int
	totalBytes int64
	expires    time.Time // safety-net deadline; reset by invalidation
	stale      bool      // invalidated; json holds the last known value
	refreshing bool      // a rebuild goroutine is in flight
}

// Listings caches the per-category listing JSON so repeated API requests
// never trigger a synchronous directory scan.
//
//   - Fresh hit  → returned immediately, no I/O.
//   - Stale hit  → the last known bytes are returned immediately while one
//     background goroutine rescans; callers never block on a scan.
//   - First miss → one synchronous scan (effectively never after Warm).
type Listings struct {
	policy *vault.Policy

	mu      sync.Mutex
	entries map[vault.Category]*listingEntry
}

// NewListings creates the cache over policy. Call Warm once the category
// roots exist so the first page load is served from cache.
func NewListings(policy *vault.Policy) *Listings {
	entries := make(map[vault.Category]*listingEntry, 4)
	for _, c := range vault.Categories() {
		entries[c] = &listingEntry{}
	}
	return &Listings{policy: policy, entries: entries}
}

// JSON returns the serialised listing for category, rebuilding as needed.
func (l *Listings) JSON(category vault.Category) []byte {
	l.mu.Lock()
	e, ok := l.entries[category]
	if !ok {
		l.mu.Unlock()
		return []byte("[]")
	}

	if e.json != nil && !e.stale && time.Now().Before(e.expires) {
		data := e.json
		l.mu.Unlock()
		return data
	}

	// Stale hit: serve the old bytes and rescan in the background.
	if e.json != nil {
		data := e.json
		if !e.refreshing {
			e.refreshing = true
			go l.rebuild(category, e)
		}
		l.mu.Unlock()
		return data
	}

	// First build: scan synchronously so we never return nil.
	l.mu.Unlock()
	scan := l.scan(category)
	l.mu.Lock()
	e.json = scan.json
	e.fileCount = scan.fileCount
	e.totalBytes = scan.totalBytes
	e.expires = time.Now().Add(safetyTTL)
	e.stale = false
	data := e.json
	l.mu.Unlock()
	return data
}

// Summary returns the cached file count and total byte size for category,
// scanning first if the category has never been listed.
func (l *Listings) Summary(category vault.Category) (fileCount int, totalBytes int64) {
	l.JSON(category) // ensure the entry is populated
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[category]
	return e.fileCount, e.totalBytes
}

// Invalidate marks one category's listing stale. The last known bytes stay
// readable; the next JSON call triggers a background rescan.
func (l *Listings) Invalidate(category vault.Category) {
	l.mu.Lock()
	if e, ok := l.entries[category]; ok {
		e.stale = true
	}
	l.mu.Unlock()
}

// Warm builds every category listing in the background so the first real
// request is never a cold miss. Returns immediately.
func (l *Listings) Warm() {
	go func() {
		log.Println("cache: warming started")
		for _, c := range vault.Categories() {
			l.JSON(c)
		}
		log.Println("cache: warming complete")
	}()
}

// rebuild rescans one category off the request path.
func (l *Listings) rebuild(category vault.Category, e *listingEntry) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cache: listing rebuild panic: %v", r)
		}
	}()

	scan := l.scan(category)

	l.mu.Lock()
	e.json = scan.json
	e.fileCount = scan.fileCount
	e.totalBytes = scan.totalBytes
	e.expires = time.Now().Add(safetyTTL)
	e.stale = false
	e.refreshing = false
	l.mu.Unlock()
}
