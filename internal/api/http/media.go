package http

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/QuangPhat16/its-main-app/internal/storage"
)

// mediaKey extracts the blob key from the /media/* wildcard. The wildcard can
// arrive percent-encoded; decode it so the store validates the real path.
func mediaKey(r *http.Request) string {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if dec, err := url.PathUnescape(key); err == nil {
		key = dec
	}
	return key
}

// MountMediaUpload accepts a multipart upload (field "file") and stores it
// under lessons/media/ with a uuid-prefixed key so repeated uploads of the
// same filename never collide.
func MountMediaUpload(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		key := "lessons/media/" + uuid.NewString() + "-" + sanitizeName(hdr.Filename)
		if _, err := bs.Put(key, f); err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		url, _ := bs.SignedURL(key)
		writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": url})
	}
}

// MediaGetHandler returns the blob at whatever follows /media/.
func MediaGetHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := bs.Get(mediaKey(r))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}

func MediaDeleteHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := bs.Delete(mediaKey(r)); err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "upload.bin"
	}
	return name
}
