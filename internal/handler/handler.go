// Package handler exposes the compressor over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"

	"github.com/harliandi/go-pngquant/internal/compressor"
	"github.com/harliandi/go-pngquant/internal/middleware"
	"github.com/harliandi/go-pngquant/pkg/quant"
)

const (
	maxMemory = 32 << 20 // 32MB max in-memory for multipart parsing

	// statusClientClosedRequest is the nginx convention for a request the
	// client abandoned.
	statusClientClosedRequest = 499

	// outputSuffix follows the pngquant naming convention.
	outputSuffix = "-fs8.png"
)

// Submitter runs a compression job, trying again up to retries more times
// while it is busy. *compressor.WorkerPool implements it.
type Submitter interface {
	SubmitWithRetry(ctx context.Context, data []byte, opts compressor.Options, retries int) (*compressor.Output, error)
}

// Handler handles HTTP requests for PNG compression
type Handler struct {
	pool      Submitter
	defaults  compressor.Options
	maxUpload int64
	retries   int
}

// New creates a new Handler. defaults are used for options the request
// does not set; busyRetries is how often a full worker queue is retried
// before the request fails with 503.
func New(pool Submitter, defaults compressor.Options, maxUploadBytes, busyRetries int) *Handler {
	return &Handler{
		pool:      pool,
		defaults:  defaults,
		maxUpload: int64(maxUploadBytes),
		retries:   max(busyRetries, 0),
	}
}

// Compress handles the /compress endpoint. The PNG is either the "file"
// field of a multipart form or the raw request body. Options come from the
// query string; format=json returns a data URI instead of the image.
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	opts, err := compressor.ParseOptions(h.defaults, query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := query.Get("format")
	if format != "" && format != "json" && format != "binary" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	data, filename, status, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	out, err := h.pool.SubmitWithRetry(r.Context(), data, opts, h.retries)
	if err != nil {
		h.writeCompressError(w, r, err)
		return
	}

	slog.Debug("compress request",
		"id", middleware.RequestID(r.Context()),
		"input", humanize.IBytes(uint64(len(data))),
		"output", humanize.IBytes(uint64(len(out.Data))),
		"colors", out.Colors,
		"quality", out.Quality,
		"cached", out.Cached,
	)

	setResultHeaders(w, out, len(data))
	if format == "json" {
		h.sendJSONResponse(w, out)
		return
	}
	h.sendBinaryPNGResponse(w, out.Data, filename)
}

// readUpload returns the PNG bytes and the client file name, if any. On
// failure it also returns the status to answer with.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, int, error) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		src      io.Reader
		filename string
	)
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, "", uploadStatus(err), fmt.Errorf("invalid multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", http.StatusBadRequest, errors.New("no file provided")
		}
		defer file.Close()
		src, filename = file, header.Filename
	case "image/png", "application/octet-stream", "":
		src = r.Body
	default:
		return nil, "", http.StatusUnsupportedMediaType,
			fmt.Errorf("unsupported Content-Type %q, send image/png or multipart/form-data", mediaType)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return nil, "", uploadStatus(err), fmt.Errorf("failed to read upload: %w", err)
	}
	if buf.Len() == 0 {
		return nil, "", http.StatusBadRequest, errors.New("no file provided")
	}
	return buf.Bytes(), filename, 0, nil
}

func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// statusFor maps a compression error to an HTTP status
func statusFor(err error) int {
	var decodeErr *compressor.DecodeError
	switch {
	case errors.Is(err, quant.ErrInvalidParameter),
		errors.Is(err, compressor.ErrInvalidImageDimensions):
		return http.StatusBadRequest
	case errors.Is(err, compressor.ErrFileTooLarge),
		errors.Is(err, compressor.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &decodeErr):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, quant.ErrQualityNotMet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, quant.ErrCancelled), errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, compressor.ErrPoolBusy), errors.Is(err, compressor.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeCompressError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	id := middleware.RequestID(r.Context())
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.Error("compression failed", "id", id, tint.Err(err))
		writeError(w, status, "Compression failed")
		return
	}
	slog.Info("compression rejected", "id", id, "status", status, tint.Err(err))

	var qe *quant.QualityError
	if errors.As(err, &qe) {
		writeJSON(w, status, map[string]any{
			"error":       err.Error(),
			"quality":     qe.Quality,
			"min_quality": qe.MinQuality,
			"colors":      qe.Colors,
		})
		return
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, err.Error())
}

func setResultHeaders(w http.ResponseWriter, out *compressor.Output, inputSize int) {
	hdr := w.Header()
	if out.Quality >= 0 {
		hdr.Set("X-Quality", strconv.Itoa(out.Quality))
	}
	hdr.Set("X-Palette-Size", strconv.Itoa(out.Colors))
	hdr.Set("X-Original-Size", strconv.Itoa(inputSize))
	if out.Cached {
		hdr.Set("X-Cache", "HIT")
	} else {
		hdr.Set("X-Cache", "MISS")
	}
}

func (h *Handler) sendBinaryPNGResponse(w http.ResponseWriter, data []byte, filename string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline",
			map[string]string{"filename": outputName(filename)}))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) sendJSONResponse(w http.ResponseWriter, out *compressor.Output) {
	writeJSON(w, http.StatusOK, struct {
		Data    string `json:"data"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		Colors  int    `json:"colors"`
		Quality *int   `json:"quality,omitempty"`
		Size    int    `json:"size"`
	}{
		Data:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(out.Data),
		Width:   out.Width,
		Height:  out.Height,
		Colors:  out.Colors,
		Quality: qualityPtr(out.Quality),
		Size:    len(out.Data),
	})
}

func qualityPtr(q int) *int {
	if q < 0 {
		return nil
	}
	return &q
}

// outputName turns "photo.png" into "photo-fs8.png"
func outputName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = "image"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + outputSuffix
}

// Health handles the /health endpoint for readiness/liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", tint.Err(err))
	}
}
