package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mediavault/models"
	"mediavault/vault"
)

// Upload handles POST /api/upload/{category}: a multipart form with a "file"
// field, streamed straight into the ingestor. maxBytes caps the request body
// when positive.
//
// Error mapping: invalid category, empty filename, and unsupported type are
// 400; a body over the cap is 413; anything that went wrong on disk is 500.
// The body is always {success, filename?, error?}.
func Upload(ingestor *vault.Ingestor, listings *Listings, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}

		category := mux.Vars(r)["category"]
		ip := clientIP(r)

		mr, err := r.MultipartReader()
		if err != nil {
			writeUploadError(w, http.StatusBadRequest, "expected multipart form data")
			return
		}

		// Scan for the "file" part; other fields are ignored.
		var filePart io.Reader
		var originalName string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				if maxBytesExceeded(err) {
					writeUploadError(w, http.StatusRequestEntityTooLarge, "file too large")
					return
				}
				writeUploadError(w, http.StatusBadRequest, "bad multipart body")
				return
			}
			if part.FormName() != "file" {
				part.Close()
				continue
			}
			filePart = part
			originalName = part.FileName()
			defer part.Close()
			break
		}

		if filePart == nil {
			writeUploadError(w, http.StatusBadRequest, "missing file field")
			return
		}

		start := time.Now()
		stored, err := ingestor.Ingest(category, originalName, filePart)
		if err != nil {
			status, msg := uploadErrorStatus(err)
			if status == http.StatusInternalServerError {
				log.Printf("upload failed    ip=%-15s  category=%s  file=%s  err=%v", ip, category, originalName, err)
			}
			writeUploadError(w, status, msg)
			return
		}

		if listings != nil {
			listings.Invalidate(stored.Category)
		}

		log.Printf("upload complete  ip=%-15s  size=%-10s  duration=%s  file=%s/%s",
			ip, formatSize(stored.SizeBytes), time.Since(start).Round(time.Millisecond),
			stored.Category, stored.StoredName)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.UploadResponse{
			Success:  true,
			Filename: stored.StoredName,
		})
	}
}

// uploadErrorStatus maps a vault error to an HTTP status and a user-facing
// message. The original OS error detail stays in the server log only.
func uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, vault.ErrInvalidCategory):
		return http.StatusBadRequest, "unknown category"
	case errors.Is(err, vault.ErrEmptyFilename):
		return http.StatusBadRequest, "no filename provided"
	case errors.Is(err, vault.ErrUnsupportedType):
		return http.StatusBadRequest, "file type not allowed in this category"
	case maxBytesExceeded(err):
		return http.StatusRequestEntityTooLarge, "file too large"
	default:
		return http.StatusInternalServerError, "could not store file"
	}
}

func maxBytesExceeded(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeUploadError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.UploadResponse{Success: false, Error: msg})
}
