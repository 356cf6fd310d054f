package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/local/pdftoolkit/internal/limiter"
	"github.com/local/pdftoolkit/internal/metrics"
	"github.com/local/pdftoolkit/internal/pdfops"
)

// onePagePDF builds a minimal single page document without images.
func onePagePDF(t *testing.T) []byte {
	t.Helper()
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 200] /Resources << >> >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

type part struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(p.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newHandler(maxUpload int64) http.Handler {
	mux := http.NewServeMux()
	New(Dependencies{
		Toolkit:        pdfops.New(pdfops.Options{SniffContent: true}),
		MaxUploadBytes: maxUpload,
	}).RegisterRoutes(mux)
	return RequestContext(CORS([]string{"https://app.example.com"})(mux))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return got
}

func TestMergeEndpoint(t *testing.T) {
	doc := onePagePDF(t)
	req := multipartRequest(t, "/api/pdf/merge", nil,
		part{"files", "a.pdf", doc},
		part{"files", "b.pdf", doc},
	)
	rec := httptest.NewRecorder()
	newHandler(0).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got, want := rec.Header().Get("Content-Disposition"), "attachment; filename=merged.pdf"; got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Content-Type"); got != pdfops.MediaPDF {
		t.Errorf("Content-Type = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Errorf("body is not a PDF")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}
}

func TestEndpointErrors(t *testing.T) {
	doc := onePagePDF(t)
	tests := []struct {
		name   string
		req    *http.Request
		status int
		detail string
	}{
		{
			name:   "merge single file",
			req:    multipartRequest(t, "/api/pdf/merge", nil, part{"files", "a.pdf", doc}),
			status: http.StatusBadRequest,
			detail: "Upload at least two PDF files to merge",
		},
		{
			name:   "split selection out of range",
			req:    multipartRequest(t, "/api/pdf/split", map[string]string{"pages": "5-9"}, part{"file", "a.pdf", doc}),
			status: http.StatusBadRequest,
			detail: "no valid pages selected",
		},
		{
			name:   "rotate bad angle",
			req:    multipartRequest(t, "/api/pdf/rotate", map[string]string{"angle": "45"}, part{"file", "a.pdf", doc}),
			status: http.StatusBadRequest,
			detail: "Angle must be 90, 180, or 270",
		},
		{
			name:   "rotate non numeric angle",
			req:    multipartRequest(t, "/api/pdf/rotate", map[string]string{"angle": "half"}, part{"file", "a.pdf", doc}),
			status: http.StatusBadRequest,
			detail: "angle must be an integer",
		},
		{
			name:   "compress wrong extension",
			req:    multipartRequest(t, "/api/pdf/compress", nil, part{"file", "notes.txt", doc}),
			status: http.StatusBadRequest,
			detail: "notes.txt is not a PDF",
		},
		{
			name:   "split missing file",
			req:    multipartRequest(t, "/api/pdf/split", map[string]string{"pages": "1"}),
			status: http.StatusBadRequest,
			detail: "missing file",
		},
		{
			name:   "compress corrupt pdf",
			req:    multipartRequest(t, "/api/pdf/compress", nil, part{"file", "broken.pdf", []byte("%PDF-1.4\nnot really")}),
			status: http.StatusInternalServerError,
		},
	}
	h := newHandler(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			got := decodeBody(t, rec)
			if got["detail"] == "" {
				t.Fatalf("missing detail in %v", got)
			}
			if tt.detail != "" && got["detail"] != tt.detail {
				t.Errorf("detail = %q, want %q", got["detail"], tt.detail)
			}
		})
	}
}

func TestSplitAndRotateEndpoints(t *testing.T) {
	doc := onePagePDF(t)
	h := newHandler(0)
	for path, fields := range map[string]map[string]string{
		"/api/pdf/split":  {"pages": "1"},
		"/api/pdf/rotate": {"angle": "180"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartRequest(t, path, fields, part{"file", "a.pdf", doc}))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, body %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestExtractImagesWithoutImages(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(0).ServeHTTP(rec, multipartRequest(t, "/api/pdf/extract-images", nil, part{"file", "a.pdf", onePagePDF(t)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if diff := cmp.Diff(map[string]string{"message": "No extractable images found"}, decodeBody(t, rec)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pdf/merge", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	req := multipartRequest(t, "/api/pdf/compress", nil, part{"file", "a.pdf", bytes.Repeat([]byte("x"), 4096)})
	rec := httptest.NewRecorder()
	newHandler(1024).ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestCapacityExported(t *testing.T) {
	metrics.Init()
	New(Dependencies{Toolkit: pdfops.New(pdfops.Options{}), Limiter: limiter.New(3)})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pdftoolkit_operations_capacity 3") {
		t.Errorf("/metrics does not report a capacity of 3")
	}
}

func TestBusyWhenNoSlotFrees(t *testing.T) {
	lim := limiter.New(1)
	hold, ok := lim.Allow()
	if !ok {
		t.Fatal("could not take the only slot")
	}
	mux := http.NewServeMux()
	New(Dependencies{
		Toolkit:      pdfops.New(pdfops.Options{}),
		Limiter:      lim,
		AdmitTimeout: 10 * time.Millisecond,
	}).RegisterRoutes(mux)

	req := multipartRequest(t, "/api/pdf/compress", nil, part{"file", "a.pdf", onePagePDF(t)})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	hold()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/api/pdf/compress", nil, part{"file", "a.pdf", onePagePDF(t)}))
	if rec.Code != http.StatusOK {
		t.Errorf("after release: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if lim.InFlight() != 0 {
		t.Errorf("slot leaked: InFlight = %d", lim.InFlight())
	}
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/pdf/split", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	newHandler(0).ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := newHandler(0)

	pre := httptest.NewRequest(http.MethodOptions, "/api/pdf/merge", nil)
	pre.Header.Set("Origin", "https://app.example.com")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	pre.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("Allow-Headers = %q", got)
	}

	other := httptest.NewRequest(http.MethodOptions, "/api/pdf/merge", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	other.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestCORSWildcard(t *testing.T) {
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
		t.Errorf("Content-Disposition not exposed")
	}
}

func TestRecoversPanics(t *testing.T) {
	h := RequestContext(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRouteLabel(t *testing.T) {
	for path, want := range map[string]string{
		"/health":          "/health",
		"/api/pdf/merge":   "/api/pdf/merge",
		"/wp-login.php":    "other",
		"/api/hello":       "/api/hello",
		"/metrics":         "/metrics",
		"/api/other/thing": "other",
	} {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
