package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hyperengineering/pitchside/internal/media"
	"github.com/hyperengineering/pitchside/internal/types"
)

// mediaKind describes one media column: where its objects live and which
// files it accepts.
type mediaKind struct {
	name        string
	column      string
	bucket      func(h *Handler) string
	contentType func(key string) string
	accepts     func(key string) bool
}

var (
	photoKind = mediaKind{
		name:        "photo",
		column:      "photo_path",
		bucket:      func(h *Handler) string { return h.mediaCfg.PhotoBucket },
		contentType: media.PhotoContentType,
		accepts:     media.IsPhoto,
	}
	videoKind = mediaKind{
		name:        "video",
		column:      "video_path",
		bucket:      func(h *Handler) string { return h.mediaCfg.VideoBucket },
		contentType: media.VideoContentType,
		accepts:     media.IsVideo,
	}
)

// multipartMemory bounds the in-memory part of a parsed upload; larger
// files spill to temporary files.
const multipartMemory = 8 << 20

// mediaKey loads the row and returns its stored object key for kind.
func (h *Handler) mediaKey(w http.ResponseWriter, r *http.Request, table string, kind mediaKind) (string, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return "", false
	}
	rec, err := h.records.FetchOne(r.Context(), table, id)
	if err != nil {
		MapStoreError(w, r, err)
		return "", false
	}
	key := rec.Text(kind.column)
	if key == "" {
		WriteProblem(w, r, http.StatusNotFound, fmt.Sprintf("%s %d has no %s", table, id, kind.name))
		return "", false
	}
	return key, true
}

// getMedia handles GET /api/v1/{resource}/{id}/photo and /video, streaming
// the stored bytes with the MIME type implied by the key's extension.
func (h *Handler) getMedia(table string, kind mediaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := h.mediaKey(w, r, table, kind)
		if !ok {
			return
		}
		data, err := h.media.Get(r.Context(), kind.bucket(h), key)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", kind.contentType(key))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			slog.Warn("media write failed",
				"component", "api",
				"key", key,
				"error", err,
			)
		}
	}
}

// getMediaURL handles GET /api/v1/{resource}/{id}/photo-url and /video-url.
func (h *Handler) getMediaURL(table string, kind mediaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := h.mediaKey(w, r, table, kind)
		if !ok {
			return
		}
		u, expires, err := h.media.PresignedURL(r.Context(), kind.bucket(h), key)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.MediaURL{URL: u, ExpiresAt: expires})
	}
}

// putMedia handles PUT /api/v1/{resource}/{id}/photo and /video. The
// multipart "file" part is stored under a fresh key, the row is pointed at
// it, and the previous object is removed on a best-effort basis.
func (h *Handler) putMedia(table string, kind mediaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if !h.media.Enabled() {
			MapStoreError(w, r, media.ErrNotConfigured)
			return
		}
		actor := ActorFromContext(r.Context())
		if actor == "" {
			WriteProblem(w, r, http.StatusBadRequest, "Actor is required ("+ActorHeader+" header)")
			return
		}

		rec, err := h.records.FetchOne(r.Context(), table, id)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		previous := rec.Text(kind.column)

		r.Body = http.MaxBytesReader(w, r.Body, h.mediaCfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteProblem(w, r, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Upload exceeds %d bytes", h.mediaCfg.MaxUploadBytes))
				return
			}
			WriteProblem(w, r, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, `Multipart field "file" is required`)
			return
		}
		defer file.Close()

		key := media.NewKey(header.Filename)
		if !kind.accepts(key) {
			WriteProblem(w, r, http.StatusUnsupportedMediaType,
				fmt.Sprintf("Unsupported %s file type: %q", kind.name, header.Filename))
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			MapStoreError(w, r, fmt.Errorf("read upload: %w", err))
			return
		}

		bucket := kind.bucket(h)
		if err := h.media.Put(r.Context(), bucket, key, data, kind.contentType(key)); err != nil {
			MapStoreError(w, r, err)
			return
		}

		updated, err := h.records.Update(r.Context(), table, id, map[string]any{kind.column: key}, actor)
		if err != nil {
			h.removeObject(r, bucket, key)
			MapStoreError(w, r, err)
			return
		}
		if previous != "" && previous != key {
			h.removeObject(r, bucket, previous)
		}

		slog.Info("media uploaded",
			"component", "api",
			"action", "upload_"+kind.name,
			"table", table,
			"id", id,
			"key", key,
			"bytes", len(data),
			"actor", actor,
		)
		writeJSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) removeObject(r *http.Request, bucket, key string) {
	if err := h.media.Delete(r.Context(), bucket, key); err != nil {
		slog.Warn("media cleanup failed",
			"component", "api",
			"bucket", bucket,
			"key", key,
			"error", err,
		)
	}
}
