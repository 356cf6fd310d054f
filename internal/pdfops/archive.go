package pdfops

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// ImageEntry is one extracted image.
type ImageEntry struct {
	Name   string
	Page   int
	Format string
	Data   []byte
}

// ImageArchive holds the images extracted from a document and the pages
// that had to be skipped.
type ImageArchive struct {
	Entries      []ImageEntry
	SkippedPages []int
}

// Empty reports whether no image was recovered.
func (a *ImageArchive) Empty() bool { return len(a.Entries) == 0 }

// CountByFormat tallies the entries by file format.
func (a *ImageArchive) CountByFormat() map[string]int {
	counts := make(map[string]int)
	for _, e := range a.Entries {
		counts[e.Format]++
	}
	return counts
}

// WriteZip writes the entries, deflated, in extraction order.
func (a *ImageArchive) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, e := range a.Entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("zip entry %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}

// Artifact packages the archive as images.zip.
func (a *ImageArchive) Artifact() (*Artifact, error) {
	var buf bytes.Buffer
	if err := a.WriteZip(&buf); err != nil {
		return nil, processing("extract-images", "cannot write archive", err)
	}
	return &Artifact{Filename: "images.zip", MediaType: MediaZip, Data: buf.Bytes()}, nil
}
