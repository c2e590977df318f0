package handlers

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"mediavault/vault"
)

// ZipCategory streams every stored file of one category as a single ZIP
// archive, e.g. GET /zip/video -> Video.zip. The archive uses Store
// compression: media files are already compressed, and a verbatim copy lets
// the exact Content-Length be computed with a cheap dry-run pass.
func ZipCategory(policy *vault.Policy, stats *vault.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category, ok := vault.ParseCategory(mux.Vars(r)["category"])
		if !ok {
			http.Error(w, "Unknown category", http.StatusNotFound)
			return
		}

		ip := clientIP(r)
		log.Printf("zip  start      ip=%-15s  category=%s", ip, category)
		start := time.Now()

		entries, err := collectEntries(policy, category)
		if err != nil {
			http.Error(w, "Failed to read category", http.StatusInternalServerError)
			return
		}

		name := categoryRootBase(policy, category)
		n, err := streamZip(w, entries, name)
		if err != nil {
			log.Printf("zip  error      ip=%-15s  category=%s  err=%v", ip, category, err)
			return
		}
		if stats != nil {
			stats.RecordDownload(n)
		}
		log.Printf("zip  complete   ip=%-15s  size=%-10s  duration=%s  category=%s",
			ip, formatSize(n), time.Since(start).Round(time.Millisecond), category)
	}
}

// zipEntry describes a single file to be added to a ZIP archive.
type zipEntry struct {
	fsPath  string // absolute path on disk
	zipName string // path inside the archive
	size    int64  // uncompressed file size
}

// collectEntries lists a category root and returns its archive entries.
// The same policy filter as the listings applies, so the archive contains
// exactly the files the listing endpoints expose.
func collectEntries(policy *vault.Policy, category vault.Category) ([]zipEntry, error) {
	root := policy.RootDir(category)
	base := filepath.Base(root)

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var entries []zipEntry
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !policy.IsAllowed(category, name) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		entries = append(entries, zipEntry{
			fsPath:  filepath.Join(root, name),
			zipName: base + "/" + name,
			size:    fi.Size(),
		})
	}
	return entries, nil
}

// countingWriter counts the number of bytes written to it, discarding the
// data. Used for the dry-run pass to determine the exact ZIP size before
// committing to an http.ResponseWriter.
type countingWriter struct{ n int64 }

func (cw *countingWriter) Write(p []byte) (int, error) {
	cw.n += int64(len(p))
	return len(p), nil
}

// buildZip writes all entries into w as a ZIP archive using Store
// compression. It is called twice by streamZip: once with a countingWriter
// (dry run) and once with the real http.ResponseWriter. Because Store is a
// verbatim copy, the byte count from the dry run is guaranteed to match the
// real write.
func buildZip(w io.Writer, entries []zipEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   e.zipName,
			Method: zip.Store,
		})
		if err != nil {
			return err
		}
		f, err := os.Open(e.fsPath)
		if err != nil {
			continue // skip unreadable files
		}
		_, copyErr := io.Copy(fw, f)
		f.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return zw.Close()
}

// streamZip measures the exact ZIP size via a dry-run pass over a counting
// writer, sets Content-Length, then streams the real archive directly to
// the client. No temp files or memory buffers are needed.
func streamZip(w http.ResponseWriter, entries []zipEntry, name string) (int64, error) {
	cw := &countingWriter{}
	if err := buildZip(cw, entries); err != nil {
		http.Error(w, "Could not build archive", http.StatusInternalServerError)
		return 0, err
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", cw.n))

	return cw.n, buildZip(w, entries)
}
