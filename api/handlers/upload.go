package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/BaSui01/finagent/api"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes applies when the handler is built with a zero limit.
const DefaultMaxUploadBytes = 20 << 20

// UploadHandler serves POST /upload. Files are stored flat under dir and a
// later upload with the same name replaces the earlier one.
type UploadHandler struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

func NewUploadHandler(dir string, maxBytes int64, logger *zap.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{dir: dir, maxBytes: maxBytes, logger: logger.With(zap.String("handler", "upload"))}
}

// HandleUpload stores the multipart field "file".
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxBytes))
			return
		}
		WriteDetail(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean("/" + filepath.ToSlash(header.Filename)))
	dst, ok := ResolveUpload(h.dir, name)
	if !ok {
		WriteDetail(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if header.Size > h.maxBytes {
		WriteDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxBytes))
		return
	}

	n, err := h.store(dst, file)
	if err != nil {
		h.logger.Error("store upload failed", zap.String("file", name), zap.Error(err))
		WriteDetail(w, http.StatusInternalServerError, "Internal error: could not store file")
		return
	}

	h.logger.Info("file uploaded",
		zap.String("file", name),
		zap.Int64("size", n),
		zap.String("request_id", requestID(r)))
	WriteJSON(w, http.StatusOK, api.UploadResponse{Filename: name, Size: n})
}

// store writes to a temp file first so a failed upload never leaves a
// truncated file under the final name.
func (h *UploadHandler) store(dst string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(h.dir, 0o750); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(h.dir, ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(src, h.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if n > h.maxBytes {
		return 0, fmt.Errorf("file exceeds %d bytes", h.maxBytes)
	}
	return n, os.Rename(tmp.Name(), dst)
}
