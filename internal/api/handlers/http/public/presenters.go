package public

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"roadwatch/pkg/e"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const photoField = "photo"

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	l := h.log(r)

	var status int
	switch {
	case errors.Is(err, e.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, e.ErrDuplicateReporter):
		status = http.StatusConflict
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrInvalidCoordinates),
		errors.Is(err, e.ErrInvalidUserID):
		status = http.StatusBadRequest
	case errors.Is(err, e.ErrStoreUnavailable),
		errors.Is(err, e.ErrObjectStoreUnavailable),
		errors.Is(err, e.ErrLockBusy):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, e.ErrDeadline):
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		l.Error("handler error", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
		h.writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	l.Info("request rejected", slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("error", err))
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("json encode failed", slog.Any("error", err))
	}
}

// decodeJSON accepts exactly one JSON object without unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

type photoPart struct {
	multipart.File
	filename    string
	contentType string
	size        int64
}

// readPhoto pulls the "photo" part out of a size-limited multipart body.
func (h *Handler) readPhoto(w http.ResponseWriter, r *http.Request) (*photoPart, bool) {
	l := h.log(r)

	if r.ContentLength > h.maxUploadBytes {
		h.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "photo too large"})
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "photo too large"})
			return nil, false
		}
		l.Warn("invalid multipart form", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return nil, false
	}

	file, header, err := r.FormFile(photoField)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing photo"})
		return nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			_ = file.Close()
			h.handleError(w, r, err)
			return nil, false
		}
	}

	return &photoPart{File: file, filename: header.Filename, contentType: contentType, size: header.Size}, true
}
