package pdfops

import (
	"bytes"
	"context"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
)

// Merge concatenates the pages of files in submission order. Every input is
// decoded before anything is assembled, so a bad input never yields partial
// output.
func (t *Toolkit) Merge(ctx context.Context, files []File) (*Artifact, error) {
	const op = "merge"
	if len(files) < 2 {
		return nil, invalidInput(op, "Upload at least two PDF files to merge")
	}
	for _, f := range files {
		if err := t.checkPDF(op, f); err != nil {
			return nil, err
		}
	}

	total := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf, err := readDocument(op, f, newConfiguration(model.VALIDATE))
		if err != nil {
			return nil, err
		}
		total += pdf.PageCount
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers(files), &buf, false, newConfiguration(model.MERGECREATE)); err != nil {
		return nil, processing(op, "cannot merge documents", err)
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(files)).Int("pages", total).Msg("documents merged")
	return &Artifact{Filename: "merged.pdf", MediaType: MediaPDF, Data: buf.Bytes(), Pages: total}, nil
}
