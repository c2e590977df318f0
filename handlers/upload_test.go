package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"mediavault/models"
	"mediavault/vault"
)

func uploadRouter(t *testing.T, maxBytes int64) (*mux.Router, *vault.Policy) {
	t.Helper()
	policy := vault.NewPolicy(t.TempDir())
	ingestor := vault.NewIngestor(policy, nil)
	listings := NewListings(policy)

	r := mux.NewRouter()
	r.HandleFunc("/api/upload/{category}", Upload(ingestor, listings, maxBytes)).Methods("POST")
	return r, policy
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(router *mux.Router, category string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/api/upload/"+category, body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decodeUpload(t *testing.T, w *httptest.ResponseRecorder) models.UploadResponse {
	t.Helper()
	var resp models.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v (body %q)", err, w.Body.String())
	}
	return resp
}

func TestUploadSuccess(t *testing.T) {
	router, policy := uploadRouter(t, 0)

	body, ct := multipartBody(t, "file", "sunset.jpg", "jpegbytes")
	w := postUpload(router, "gallery", body, ct)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeUpload(t, w)
	if !resp.Success || resp.Filename != "sunset.jpg" {
		t.Errorf("unexpected response: %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(policy.RootDir(vault.CategoryGallery), "sunset.jpg"))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("stored content %q", data)
	}
}

func TestUploadCollisionGetsSuffix(t *testing.T) {
	router, _ := uploadRouter(t, 0)

	for i, want := range []string{"a.txt", "a_1.txt"} {
		body, ct := multipartBody(t, "file", "a.txt", "x")
		w := postUpload(router, "documents", body, ct)
		if w.Code != 200 {
			t.Fatalf("upload %d: expected 200, got %d", i, w.Code)
		}
		if resp := decodeUpload(t, w); resp.Filename != want {
			t.Errorf("upload %d: expected %q, got %q", i, want, resp.Filename)
		}
	}
}

func TestUploadRejections(t *testing.T) {
	router, policy := uploadRouter(t, 0)

	cases := []struct {
		name     string
		category string
		filename string
		want     int
	}{
		{"unknown category", "attic", "photo.png", 400},
		{"wrong type for category", "gallery", "malware.exe", 400},
		{"audio file in video", "video", "track.mp3", 400},
	}
	for _, tc := range cases {
		body, ct := multipartBody(t, "file", tc.filename, "content")
		w := postUpload(router, tc.category, body, ct)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
		if resp := decodeUpload(t, w); resp.Success || resp.Error == "" {
			t.Errorf("%s: expected failure body, got %+v", tc.name, resp)
		}
	}

	// Nothing was written anywhere.
	for _, c := range vault.Categories() {
		if entries, err := os.ReadDir(policy.RootDir(c)); err == nil && len(entries) > 0 {
			t.Errorf("category %s not empty after rejected uploads", c)
		}
	}
}

func TestUploadMissingFileField(t *testing.T) {
	router, _ := uploadRouter(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "no file here"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	w := postUpload(router, "gallery", &buf, mw.FormDataContentType())
	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUploadNotMultipart(t *testing.T) {
	router, _ := uploadRouter(t, 0)

	r := httptest.NewRequest("POST", "/api/upload/gallery", strings.NewReader("raw bytes"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	router, _ := uploadRouter(t, 512)

	body, ct := multipartBody(t, "file", "big.jpg", strings.Repeat("x", 4096))
	w := postUpload(router, "gallery", body, ct)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}
