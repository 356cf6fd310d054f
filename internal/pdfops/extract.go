package pdfops

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
)

// ImageSource enumerates the embedded images of a document page by page.
type ImageSource interface {
	PageCount() int
	PageImages(pageNr int) ([]RasterImage, error)
}

// SourceOpener opens an ImageSource over raw PDF bytes.
type SourceOpener func(f File) (ImageSource, error)

// openPDFSource is the pdfcpu backed opener. Reading with EXTRACTIMAGES makes
// pdfcpu run its optimize pass, which indexes image objects per page.
func openPDFSource(f File) (ImageSource, error) {
	pdf, err := readDocument("extract-images", f, newConfiguration(model.EXTRACTIMAGES))
	if err != nil {
		return nil, err
	}
	return pdfcpuSource{pdf: pdf}, nil
}

type pdfcpuSource struct{ pdf *model.Context }

func (s pdfcpuSource) PageCount() int { return s.pdf.PageCount }

// PageImages returns the page's images ordered by object number.
func (s pdfcpuSource) PageImages(pageNr int) ([]RasterImage, error) {
	m, err := pdfcpu.ExtractPageImages(s.pdf, pageNr, false)
	if err != nil {
		return nil, err
	}
	objNrs := make([]int, 0, len(m))
	for nr := range m {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	out := make([]RasterImage, 0, len(objNrs))
	for _, nr := range objNrs {
		img := m[nr]
		if img.Reader == nil {
			return nil, fmt.Errorf("image object %d has no data", nr)
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("read image object %d: %w", nr, err)
		}
		out = append(out, RasterImage{Name: img.Name, Format: strings.ToLower(img.FileType), Data: data})
	}
	return out, nil
}

// ExtractImages collects the embedded images of every page into an archive.
// A page whose images cannot be enumerated or read is skipped and the
// remaining pages are still processed. An archive without entries is the
// "no images found" result, not an error.
func (t *Toolkit) ExtractImages(ctx context.Context, f File) (*ImageArchive, error) {
	const op = "extract-images"
	if err := t.checkPDF(op, f); err != nil {
		return nil, err
	}
	src, err := t.openSource(f)
	if err != nil {
		return nil, err
	}
	return t.collectImages(ctx, src)
}

func (t *Toolkit) collectImages(ctx context.Context, src ImageSource) (*ImageArchive, error) {
	logger := zerolog.Ctx(ctx)
	arc := &ImageArchive{}
	count := 0
	for pageNr := 1; pageNr <= src.PageCount(); pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		imgs, err := pageImages(src, pageNr)
		if err != nil {
			logger.Warn().Err(err).Int("page", pageNr).Msg("skipping page: image extraction failed")
			arc.SkippedPages = append(arc.SkippedPages, pageNr)
			continue
		}
		for _, img := range imgs {
			count++
			ext := t.extension(img)
			arc.Entries = append(arc.Entries, ImageEntry{
				Name:   fmt.Sprintf("page%d_img%d.%s", pageNr, count, ext),
				Page:   pageNr,
				Format: ext,
				Data:   img.Data,
			})
		}
	}
	logger.Debug().Int("images", len(arc.Entries)).Ints("skipped_pages", arc.SkippedPages).Msg("images extracted")
	return arc, nil
}

// pageImages isolates one page: a panic inside the PDF library is turned into
// an error for that page only.
func pageImages(src ImageSource, pageNr int) (imgs []RasterImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			imgs, err = nil, fmt.Errorf("page %d: panic: %v", pageNr, r)
		}
	}()
	return src.PageImages(pageNr)
}

// extension picks the entry suffix: the library's format tag, then a content
// sniff, then "bin".
func (t *Toolkit) extension(img RasterImage) string {
	if img.Format != "" {
		return img.Format
	}
	if f := t.detect.ImageFormat(img.Data); f != "" {
		return f
	}
	return "bin"
}
