package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/ucportal/internal/ingest"
	"github.com/kalambet/ucportal/internal/storage"
)

const maxUploadSize = 32 << 20 // 32MB

func mountUploads(r chi.Router, deps Deps) {
	r.Route("/uploads", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := deps.Store.ListUploads(parseIntParam(r, "limit", 100, 1000))
			respond(w, r, list, err)
		})
		r.Post("/", handleCreateUpload(deps))
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			u, err := deps.Store.GetUpload(chi.URLParam(r, "id"))
			respond(w, r, u, err)
		})
		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Description string `json:"description"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			id := chi.URLParam(r, "id")
			if err := deps.Store.UpdateUploadDescription(id, req.Description); err != nil {
				fail(w, r, err)
				return
			}
			u, err := deps.Store.GetUpload(id)
			respond(w, r, u, err)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			u, err := deps.Store.DeleteUpload(chi.URLParam(r, "id"))
			if err != nil {
				fail(w, r, err)
				return
			}
			if err := os.Remove(u.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("removing upload file", "id", u.ID, "path", u.StoredPath, "error", err)
			}
			writeOK(w, nil)
		})
		r.Get("/{id}/content", handleUploadContent(deps))
	})
}

// handleCreateUpload stores the multipart "file" field under UploadDir and
// queues a preview job for it.
func handleCreateUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.UploadDir == "" {
			fail(w, r, errors.New("upload directory is not set"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "no file uploaded: %v", err)
			return
		}
		defer file.Close()

		if err := os.MkdirAll(deps.UploadDir, 0o700); err != nil {
			fail(w, r, err)
			return
		}
		id := uuid.NewString()
		ext := filepath.Ext(header.Filename)
		path := filepath.Join(deps.UploadDir, id+ext)
		size, err := saveFile(path, file)
		if err != nil {
			os.Remove(path)
			fail(w, r, err)
			return
		}

		ct := header.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			if byExt := mime.TypeByExtension(ext); byExt != "" {
				ct = byExt
			}
		}
		u, err := deps.Store.CreateUpload(storage.Upload{
			ID:          id,
			Filename:    filepath.Base(header.Filename),
			ContentType: ct,
			Size:        size,
			StoredPath:  path,
			Description: r.FormValue("description"),
		})
		if err != nil {
			os.Remove(path)
			fail(w, r, err)
			return
		}

		payload, _ := json.Marshal(ingest.PreviewPayload{UploadID: u.ID})
		if _, err := deps.Store.EnqueueJob(storage.Job{Type: ingest.JobUploadPreview, PayloadJSON: string(payload)}); err != nil {
			slog.Warn("queueing upload preview", "id", u.ID, "error", err)
		}
		writeCreated(w, u)
	}
}

func saveFile(path string, src io.Reader) (int64, error) {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func handleUploadContent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := deps.Store.GetUpload(chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		f, err := os.Open(u.StoredPath)
		if errors.Is(err, os.ErrNotExist) {
			fail(w, r, storage.ErrNotFound)
			return
		}
		if err != nil {
			fail(w, r, err)
			return
		}
		defer f.Close()

		if u.ContentType != "" {
			w.Header().Set("Content-Type", u.ContentType)
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": u.Filename}))
		http.ServeContent(w, r, u.Filename, u.CreatedAt, f)
	}
}
