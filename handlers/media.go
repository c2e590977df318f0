package handlers

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediavault/vault"
)

// Media serves stored files from one category root, e.g. GET
// /Galleria/sunset.jpg. http.ServeContent supplies Content-Length and full
// range-request support, so video seeking and download progress work.
// Completed requests are recorded in the transfer statistics.
func Media(policy *vault.Policy, category vault.Category, stats *vault.Stats) http.HandlerFunc {
	prefix := policy.URLPrefix(category) + "/"

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)

		fsPath, err := resolveWithin(policy.RootDir(category), name)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		info, err := os.Stat(fsPath)
		if err != nil || info.IsDir() {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		f, err := os.Open(fsPath)
		if err != nil {
			http.Error(w, "Could not open file", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		ip := clientIP(r)
		start := time.Now()

		w.Header().Set("Content-Type", mimeForName(fsPath))
		http.ServeContent(w, r, filepath.Base(fsPath), info.ModTime(), f)

		if stats != nil {
			stats.RecordDownload(info.Size())
		}
		log.Printf("serve complete   ip=%-15s  size=%-10s  duration=%s  file=%s",
			ip, formatSize(info.Size()), time.Since(start).Round(time.Millisecond), r.URL.Path)
	}
}

// Download serves a stored file with a Content-Disposition: attachment
// header, used by the explicit download links on preview pages.
func Download(policy *vault.Policy, category vault.Category, stats *vault.Stats) http.HandlerFunc {
	inner := Media(policy, category, stats)
	prefix := policy.URLPrefix(category) + "/"

	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(strings.TrimPrefix(r.URL.Path, prefix))
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
		inner(w, r)
	}
}

// formatSize formats a byte count as a human-readable string.
func formatSize(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// clientIP extracts the remote IP from the request, stripping the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
