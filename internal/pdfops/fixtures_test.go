package pdfops

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// blankPDF assembles a minimal document with one empty page per width.
// Every page is 200pt high; distinct widths let tests follow page order.
func blankPDF(t *testing.T, widths ...int) []byte {
	t.Helper()
	kids := make([]string, len(widths))
	for i := range widths {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(widths)),
	}
	for _, w := range widths {
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 200] /Resources << >> >>", w))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// pngImage encodes a solid w x h image.
func pngImage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type pageInfo struct {
	Width  float64
	Rotate int
}

// inspect reads back width and effective rotation of every page.
func inspect(t *testing.T, data []byte) []pageInfo {
	t.Helper()
	pdf, err := readDocument("inspect", File{Name: "out.pdf", Data: data}, newConfiguration(model.VALIDATE))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	pages := make([]pageInfo, 0, pdf.PageCount)
	for nr := 1; nr <= pdf.PageCount; nr++ {
		_, _, inh, err := pdf.PageDict(nr, false)
		if err != nil {
			t.Fatalf("page %d: %v", nr, err)
		}
		pages = append(pages, pageInfo{Width: inh.MediaBox.Width(), Rotate: NormalizeRotation(inh.Rotate)})
	}
	return pages
}

func widths(pages []pageInfo) []float64 {
	out := make([]float64, len(pages))
	for i, p := range pages {
		out[i] = p.Width
	}
	return out
}

func rotations(pages []pageInfo) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p.Rotate
	}
	return out
}

func pdfFile(name string, data []byte) File { return File{Name: name, Data: data} }

// pngHeader returns a PNG holding only the signature, an IHDR chunk for a
// w x h grayscale image and IEND. Enough for image.DecodeConfig.
func pngHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type 0, deflate, no filter, no interlace follow as zeros
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}
