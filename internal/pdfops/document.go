package pdfops

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/local/pdftoolkit/internal/filetype"
)

const (
	MediaPDF = "application/pdf"
	MediaZip = "application/zip"
)

// pdfcpu must not create or read a per-user config directory in a server process.
func init() {
	api.DisableConfigDir()
}

// File is one uploaded part.
type File struct {
	Name string
	Data []byte
}

// Artifact is the output of an operation, streamed back to the caller once.
type Artifact struct {
	Filename  string
	MediaType string
	Data      []byte
	Pages     int
}

// Options configures a Toolkit.
type Options struct {
	// SniffContent rejects .pdf uploads whose bytes are not a PDF document.
	SniffContent bool
	// MaxImagePixels caps width*height of an uploaded image. Zero means
	// DefaultMaxImagePixels.
	MaxImagePixels int
}

// DefaultMaxImagePixels bounds the memory a single decoded upload may take.
const DefaultMaxImagePixels = 178956970

// Toolkit runs the document transformations. It keeps no per-request state
// and is safe for concurrent use.
type Toolkit struct {
	opts       Options
	detect     *filetype.Detector
	openSource SourceOpener
	decode     func(File) (*RasterImage, error)
}

// New creates a Toolkit.
func New(opts Options) *Toolkit {
	if opts.MaxImagePixels <= 0 {
		opts.MaxImagePixels = DefaultMaxImagePixels
	}
	t := &Toolkit{
		opts:       opts,
		detect:     filetype.New(),
		openSource: openPDFSource,
	}
	t.decode = t.decodeRaster
	return t
}

// newConfiguration returns a relaxed pdfcpu configuration for cmd. The
// command matters: pdfcpu skips the optimize pass when reading for VALIDATE.
func newConfiguration(cmd model.CommandMode) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.Cmd = cmd
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// checkPDF applies the filename rule and, when enabled, a magic-byte check.
func (t *Toolkit) checkPDF(op string, f File) error {
	if !filetype.HasPDFName(f.Name) {
		return invalidInput(op, fmt.Sprintf("%s is not a PDF", displayName(f.Name)))
	}
	if t.opts.SniffContent && !t.detect.IsPDF(f.Data) {
		return invalidInput(op, fmt.Sprintf("%s does not contain PDF data", displayName(f.Name)))
	}
	return nil
}

// readDocument decodes, validates and optimizes a PDF.
func readDocument(op string, f File, conf *model.Configuration) (pdf *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			pdf, err = nil, processing(op, "cannot read "+displayName(f.Name), fmt.Errorf("panic: %v", r))
		}
	}()
	pdf, err = api.ReadValidateAndOptimize(bytes.NewReader(f.Data), conf)
	if err != nil {
		return nil, processing(op, "cannot read "+displayName(f.Name), err)
	}
	if pdf.PageCount <= 0 {
		return nil, processing(op, "cannot read "+displayName(f.Name), fmt.Errorf("document has no pages"))
	}
	return pdf, nil
}

func writeDocument(op string, pdf *model.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(pdf, &buf); err != nil {
		return nil, processing(op, "cannot write output", err)
	}
	return buf.Bytes(), nil
}

func writeArtifact(ctx context.Context, op, filename string, pdf *model.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := writeDocument(op, pdf)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("op", op).Int("pages", pdf.PageCount).Int("bytes", len(data)).Msg("document written")
	return &Artifact{Filename: filename, MediaType: MediaPDF, Data: data, Pages: pdf.PageCount}, nil
}

func readers(files []File) []io.ReadSeeker {
	rsc := make([]io.ReadSeeker, len(files))
	for i, f := range files {
		rsc[i] = bytes.NewReader(f.Data)
	}
	return rsc
}

func displayName(name string) string {
	if name == "" {
		return "file"
	}
	return name
}
