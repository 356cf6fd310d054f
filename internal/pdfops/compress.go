package pdfops

import (
	"context"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
)

// Compress rebuilds the document with shared resources deduplicated and
// objects packed into object streams. It is lossless and best effort: the
// output can be the same size or larger than the input.
func (t *Toolkit) Compress(ctx context.Context, f File) (*Artifact, error) {
	const op = "compress"
	if err := t.checkPDF(op, f); err != nil {
		return nil, err
	}
	conf := newConfiguration(model.OPTIMIZE)
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true

	pdf, err := readDocument(op, f, conf)
	if err != nil {
		return nil, err
	}
	art, err := writeArtifact(ctx, op, "compressed.pdf", pdf)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Int("input_bytes", len(f.Data)).
		Int("output_bytes", len(art.Data)).
		Msg("document compressed")
	return art, nil
}
