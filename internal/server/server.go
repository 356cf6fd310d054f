package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/local/pdftoolkit/internal/limiter"
	"github.com/local/pdftoolkit/internal/metrics"
	"github.com/local/pdftoolkit/internal/pdfops"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// Dependencies wires the HTTP layer to the toolkit. A nil Limiter admits
// every request.
type Dependencies struct {
	Toolkit        *pdfops.Toolkit
	MaxUploadBytes int64
	Limiter        *limiter.Limiter
	AdmitTimeout   time.Duration
}

// Server exposes the toolkit operations under /api/pdf/.
type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 100 << 20
	}
	if deps.AdmitTimeout <= 0 {
		deps.AdmitTimeout = 30 * time.Second
	}
	if deps.Limiter != nil {
		metrics.SetCapacity(deps.Limiter.Capacity())
	}
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/pdf/merge", s.operation("merge", s.handleMerge))
	mux.HandleFunc("/api/pdf/split", s.operation("split", s.handleSplit))
	mux.HandleFunc("/api/pdf/rotate", s.operation("rotate", s.handleRotate))
	mux.HandleFunc("/api/pdf/compress", s.operation("compress", s.handleCompress))
	mux.HandleFunc("/api/pdf/images-to-pdf", s.operation("images-to-pdf", s.handleImagesToPDF))
	mux.HandleFunc("/api/pdf/extract-images", s.operation("extract-images", s.handleExtractImages))
}

// opHandler runs one operation. Returning a nil artifact with a nil error
// means the handler already wrote its response.
type opHandler func(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error)

// operation parses the multipart upload, runs h and writes the artifact or
// the mapped error.
func (s *Server) operation(name string, h opHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		logger := zerolog.Ctx(r.Context())
		start := time.Now()

		release, err := s.admit(r.Context())
		if err != nil {
			metrics.ObserveOperation(name, "busy", time.Since(start))
			if r.Context().Err() != nil {
				return
			}
			logger.Warn().Str("op", name).Msg("no free operation slot")
			writeError(w, http.StatusServiceUnavailable, "Server busy, retry later")
			return
		}
		defer release()

		r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()
		if r.ContentLength > 0 {
			metrics.ObserveUpload(name, r.ContentLength)
		}

		art, err := h(w, r)
		metrics.ObserveOperation(name, resultLabel(err), time.Since(start))
		if err != nil {
			s.fail(w, r, name, err)
			return
		}
		if art == nil {
			return
		}
		metrics.AddPages(name, art.Pages)
		logger.Info().
			Str("op", name).
			Str("file", art.Filename).
			Int("pages", art.Pages).
			Int("bytes", len(art.Data)).
			Dur("took", time.Since(start)).
			Msg("operation completed")
		writeArtifact(w, art)
	}
}

// admit waits up to AdmitTimeout for an operation slot.
func (s *Server) admit(ctx context.Context) (func(), error) {
	if s.deps.Limiter == nil {
		return func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.deps.AdmitTimeout)
	defer cancel()
	release, err := s.deps.Limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetInFlight(s.deps.Limiter.InFlight())
	return func() {
		release()
		metrics.SetInFlight(s.deps.Limiter.InFlight())
	}, nil
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error) {
	files, err := formFiles(r, "files")
	if err != nil {
		return nil, err
	}
	return s.deps.Toolkit.Merge(r.Context(), files)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error) {
	f, err := formFile(r, "file")
	if err != nil {
		return nil, err
	}
	return s.deps.Toolkit.Split(r.Context(), f, r.FormValue("pages"))
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error) {
	angle := 90
	if v := strings.TrimSpace(r.FormValue("angle")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, badRequest("angle must be an integer")
		}
		angle = n
	}
	f, err := formFile(r, "file")
	if err != nil {
		return nil, err
	}
	return s.deps.Toolkit.Rotate(r.Context(), f, angle, r.FormValue("pages"))
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error) {
	f, err := formFile(r, "file")
	if err != nil {
		return nil, err
	}
	return s.deps.Toolkit.Compress(r.Context(), f)
}

func (s *Server) handleImagesToPDF(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error) {
	images, err := formFiles(r, "images")
	if err != nil {
		return nil, err
	}
	pageSize := r.FormValue("page_size")
	if pageSize == "" {
		pageSize = "auto"
	}
	return s.deps.Toolkit.ImagesToPDF(r.Context(), images, pageSize)
}

func (s *Server) handleExtractImages(w http.ResponseWriter, r *http.Request) (*pdfops.Artifact, error) {
	f, err := formFile(r, "file")
	if err != nil {
		return nil, err
	}
	arc, err := s.deps.Toolkit.ExtractImages(r.Context(), f)
	if err != nil {
		return nil, err
	}
	metrics.AddExtractionPageFailures(len(arc.SkippedPages))
	for format, n := range arc.CountByFormat() {
		metrics.AddImagesExtracted(format, n)
	}
	if arc.Empty() {
		writeJSON(w, http.StatusOK, map[string]any{"message": "No extractable images found"})
		return nil, nil
	}
	return arc.Artifact()
}

// fail logs err and writes the status it maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := zerolog.Ctx(r.Context())
	if errors.Is(err, context.Canceled) {
		logger.Warn().Str("op", op).Msg("client went away; operation aborted")
		return
	}
	status := statusFor(err)
	ev := logger.Warn()
	if status >= 500 {
		ev = logger.Error()
	}
	ev.Err(err).Str("op", op).Int("status", status).Msg("operation failed")
	writeError(w, status, pdfops.Detail(err))
}

func statusFor(err error) int {
	var br *requestError
	switch {
	case errors.As(err, &br),
		errors.Is(err, pdfops.ErrInvalidInput),
		errors.Is(err, pdfops.ErrInvalidSelection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case statusFor(err) < 500:
		return "rejected"
	default:
		return "error"
	}
}

// requestError is a malformed request caught before the toolkit runs.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func formFile(r *http.Request, field string) (pdfops.File, error) {
	files, err := formFiles(r, field)
	if err != nil {
		return pdfops.File{}, err
	}
	if len(files) == 0 {
		return pdfops.File{}, badRequest("missing " + field)
	}
	return files[0], nil
}

// formFiles reads every part uploaded under field, in submission order.
func formFiles(r *http.Request, field string) ([]pdfops.File, error) {
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File[field]
	}
	files := make([]pdfops.File, 0, len(headers))
	for _, hdr := range headers {
		data, err := readPart(hdr)
		if err != nil {
			return nil, badRequest(fmt.Sprintf("cannot read %s", hdr.Filename))
		}
		files = append(files, pdfops.File{Name: hdr.Filename, Data: data})
	}
	return files, nil
}

func readPart(hdr *multipart.FileHeader) ([]byte, error) {
	f, err := hdr.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeArtifact(w http.ResponseWriter, art *pdfops.Artifact) {
	w.Header().Set("Content-Type", art.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
