package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const MIMEPDF = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsPDF       bool
	IsImage     bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect sniffs the content of data, ignoring any filename.
func (d *Detector) Detect(data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	// mimetype reports parameters for some types (text/plain; charset=utf-8)
	if i := strings.IndexByte(info.MIMEType, ';'); i >= 0 {
		info.MIMEType = strings.TrimSpace(info.MIMEType[:i])
	}
	d.classify(info)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Msg("detected file type")
	return info
}

// classify fills in the document/image flags for a detected MIME type
func (d *Detector) classify(info *FileTypeInfo) {
	switch {
	case info.MIMEType == MIMEPDF:
		info.IsPDF = true
		info.Description = "PDF document"
	case strings.HasPrefix(info.MIMEType, "image/"):
		info.IsImage = true
		info.Description = "Image file"
	default:
		info.Description = "Unsupported file type: " + info.MIMEType
	}
}

// IsPDF reports whether data looks like a PDF document.
func (d *Detector) IsPDF(data []byte) bool {
	return d.Detect(data).IsPDF
}

// ImageFormat returns the lower-cased format tag of an encoded image
// ("png", "jpg", ...) or "" when data is not a recognised image.
func (d *Detector) ImageFormat(data []byte) string {
	info := d.Detect(data)
	if !info.IsImage {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(info.Extension, "."))
}

// HasPDFName reports whether a filename carries the .pdf suffix (any case).
func HasPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
