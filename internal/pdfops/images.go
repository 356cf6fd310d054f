package pdfops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	// Decoders for the accepted upload formats.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errImageTooLarge = errors.New("image exceeds the pixel limit")

// RasterImage is an encoded image plus its format tag. Images decoded from
// uploads also hold their pixels until Release is called.
type RasterImage struct {
	Name   string
	Format string
	Data   []byte

	pixels image.Image
}

// Release drops the decoded pixels and the encoded bytes.
func (r *RasterImage) Release() {
	r.pixels = nil
	r.Data = nil
}

func releaseAll(imgs []*RasterImage) {
	for _, im := range imgs {
		im.Release()
	}
}

// ImagesToPDF converts images into one document, one image per page in
// submission order. pageSize is accepted for compatibility; pages always take
// the dimensions of their image.
func (t *Toolkit) ImagesToPDF(ctx context.Context, files []File, pageSize string) (*Artifact, error) {
	const op = "images-to-pdf"
	if len(files) == 0 {
		return nil, invalidInput(op, "Upload at least one image")
	}

	imgs, err := t.decodeImages(ctx, op, files)
	if err != nil {
		return nil, err
	}
	defer releaseAll(imgs)

	pages := make([]io.Reader, 0, len(imgs))
	for _, im := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		enc, err := normalize(im.pixels)
		if err != nil {
			return nil, processing(op, "cannot encode "+displayName(im.Name), err)
		}
		pages = append(pages, bytes.NewReader(enc))
	}

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, pages, pdfcpu.DefaultImportConfig(), newConfiguration(model.IMPORTIMAGES)); err != nil {
		return nil, processing(op, "cannot assemble document", err)
	}
	zerolog.Ctx(ctx).Debug().Int("images", len(imgs)).Str("page_size", pageSize).Msg("images converted")
	return &Artifact{Filename: "images.pdf", MediaType: MediaPDF, Data: buf.Bytes(), Pages: len(imgs)}, nil
}

// decodeImages decodes every upload. On failure the images decoded so far are
// released before the error is returned.
func (t *Toolkit) decodeImages(ctx context.Context, op string, files []File) (imgs []*RasterImage, err error) {
	defer func() {
		if err != nil {
			releaseAll(imgs)
			imgs = nil
		}
	}()
	for _, f := range files {
		if err = ctx.Err(); err != nil {
			return imgs, err
		}
		var im *RasterImage
		if im, err = t.decode(f); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", f.Name).Msg("image decode failed")
			msg := "One or more files are not valid images"
			if errors.Is(err, errImageTooLarge) {
				msg = fmt.Sprintf("%s is too large to convert", displayName(f.Name))
			}
			return imgs, &OpError{Op: op, Kind: ErrInvalidInput, Msg: msg, Err: err}
		}
		imgs = append(imgs, im)
	}
	return imgs, nil
}

func (t *Toolkit) decodeRaster(f File) (*RasterImage, error) {
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%s is empty", displayName(f.Name))
	}
	info := t.detect.Detect(f.Data)
	if !info.IsImage {
		return nil, fmt.Errorf("%s is %s, not an image", displayName(f.Name), info.MIMEType)
	}
	// The header alone gives the dimensions; check them before allocating pixels.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", displayName(f.Name), err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(t.opts.MaxImagePixels) {
		return nil, fmt.Errorf("%s is %dx%d: %w", displayName(f.Name), cfg.Width, cfg.Height, errImageTooLarge)
	}
	pixels, format, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", displayName(f.Name), err)
	}
	return &RasterImage{Name: f.Name, Format: strings.ToLower(format), Data: f.Data, pixels: pixels}, nil
}

// normalize flattens src onto an opaque white RGB canvas and encodes it as
// PNG. Opaque images are written by image/png without an alpha channel.
func normalize(src image.Image) ([]byte, error) {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
