package vault

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// StatsSnapshot is a point-in-time view of the transfer counters.
type StatsSnapshot struct {
	TotalUploads   int64 `json:"total_uploads"`
	UploadBytes    int64 `json:"upload_bytes"`
	TotalDownloads int64 `json:"total_downloads"`
	DownloadBytes  int64 `json:"download_bytes"`
}

// Stats keeps persistent upload/download counters for the vault. Updates are
// written to disk asynchronously with the same temp-then-rename discipline as
// the credential store, so the counter file is never half-written.
type Stats struct {
	mu   sync.Mutex
	data StatsSnapshot
	path string
}

// OpenStats loads existing counters from filePath, creating the file with
// zero counters when absent so that permission problems surface at startup
// rather than on the first transfer.
func OpenStats(filePath string) *Stats {
	s := &Stats{path: filePath}

	f, err := os.Open(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("stats: could not open %s: %v", filePath, err)
			return s
		}
		if err := persistStats(filePath, StatsSnapshot{}); err != nil {
			log.Printf("stats: could not create %s: %v", filePath, err)
		}
		return s
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&s.data); err != nil {
		log.Printf("stats: could not parse %s: %v, starting from zero", filePath, err)
		s.data = StatsSnapshot{}
	}
	return s
}

// RecordUpload adds one upload of size bytes and persists the totals.
func (s *Stats) RecordUpload(size int64) {
	s.mu.Lock()
	s.data.TotalUploads++
	s.data.UploadBytes += size
	snap, path := s.data, s.path
	s.mu.Unlock()

	// Async write: the upload response is never delayed by counter I/O.
	go func() {
		if err := persistStats(path, snap); err != nil {
			log.Printf("stats: %v", err)
		}
	}()
}

// RecordDownload adds one download of size bytes and persists the totals.
func (s *Stats) RecordDownload(size int64) {
	s.mu.Lock()
	s.data.TotalDownloads++
	s.data.DownloadBytes += size
	snap, path := s.data, s.path
	s.mu.Unlock()

	go func() {
		if err := persistStats(path, snap); err != nil {
			log.Printf("stats: %v", err)
		}
	}()
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// persistStats performs the atomic write.
func persistStats(filePath string, data StatsSnapshot) error {
	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".vault-stats-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := json.NewEncoder(tmp).Encode(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not rename %s to %s: %w", tmpName, filePath, err)
	}
	return nil
}
