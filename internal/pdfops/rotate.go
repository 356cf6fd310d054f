package pdfops

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/local/pdftoolkit/internal/pagerange"
)

// ValidAngle reports whether angle is an accepted rotation.
func ValidAngle(angle int) bool {
	return angle == 90 || angle == 180 || angle == 270
}

// Rotate turns the selected pages clockwise by angle relative to their
// current orientation. An empty selection rotates every page. Page count and
// order are preserved and unselected pages are left untouched.
func (t *Toolkit) Rotate(ctx context.Context, f File, angle int, pages string) (*Artifact, error) {
	const op = "rotate"
	if !ValidAngle(angle) {
		return nil, invalidInput(op, "Angle must be 90, 180, or 270")
	}
	if err := t.checkPDF(op, f); err != nil {
		return nil, err
	}
	pdf, err := readDocument(op, f, newConfiguration(model.ROTATE))
	if err != nil {
		return nil, err
	}
	indices, err := pagerange.Parse(pages, pdf.PageCount)
	if err != nil {
		return nil, invalidSelection(op, err)
	}

	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rotatePage(pdf, i+1, angle); err != nil {
			return nil, processing(op, fmt.Sprintf("cannot rotate page %d", i+1), err)
		}
	}
	return writeArtifact(ctx, op, "rotated.pdf", pdf)
}

// rotatePage rewrites the page's /Rotate entry. Rotation is inheritable, so
// the effective value comes from the inherited attributes.
func rotatePage(pdf *model.Context, pageNr, angle int) error {
	d, _, inh, err := pdf.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("page %d not found", pageNr)
	}
	current := 0
	if inh != nil {
		current = inh.Rotate
	}
	d.Update("Rotate", types.Integer(NormalizeRotation(current+angle)))
	return nil
}

// NormalizeRotation maps any multiple of 90 into [0, 360).
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
