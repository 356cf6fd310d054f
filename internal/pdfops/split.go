package pdfops

import (
	"context"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/local/pdftoolkit/internal/pagerange"
)

// Split builds a document from the pages selected by pages. The output keeps
// ascending page order whatever the order of tokens in the expression;
// reordering is not supported.
func (t *Toolkit) Split(ctx context.Context, f File, pages string) (*Artifact, error) {
	const op = "split"
	if err := t.checkPDF(op, f); err != nil {
		return nil, err
	}
	pdf, err := readDocument(op, f, newConfiguration(model.EXTRACTPAGES))
	if err != nil {
		return nil, err
	}
	indices, err := pagerange.Parse(pages, pdf.PageCount)
	if err != nil {
		return nil, invalidSelection(op, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := pdfcpu.ExtractPages(pdf, pagerange.PageNumbers(indices), false)
	if err != nil {
		return nil, processing(op, "cannot extract pages", err)
	}
	art, err := writeArtifact(ctx, op, "split.pdf", out)
	if err != nil {
		return nil, err
	}
	// ExtractPages leaves the page count of the new context unset.
	art.Pages = len(indices)
	return art, nil
}
