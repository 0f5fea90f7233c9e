package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ats-scorer-go/parser")

// FormatExtractor turns the bytes of one document format into text.
type FormatExtractor interface {
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// PlainTextExtractor returns the document bytes as text.
type PlainTextExtractor struct{}

func (PlainTextExtractor) ExtractText(_ context.Context, data []byte, _ string) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorLogger sets the logger used for fallback warnings.
func WithExtractorLogger(logger zerolog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithFormat registers fe for format, replacing the built-in extractor.
func WithFormat(format ats.DocumentFormat, fe FormatExtractor) ExtractorOption {
	return func(e *Extractor) {
		e.formats[format] = fe
	}
}

// WithPDFFallback sets the extractor tried when the primary PDF extractor
// fails. A nil value disables the fallback.
func WithPDFFallback(fe FormatExtractor) ExtractorOption {
	return func(e *Extractor) {
		e.pdfFallback = fe
	}
}

// Extractor dispatches a résumé document to the extractor for its format.
type Extractor struct {
	formats     map[ats.DocumentFormat]FormatExtractor
	pdfFallback FormatExtractor
	logger      zerolog.Logger
}

// NewExtractor builds an extractor without any PDF support wired in. Use
// NewDefaultExtractor for the full set.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		formats: map[ats.DocumentFormat]FormatExtractor{
			ats.FormatDOCX: DocxTextExtractor{},
			ats.FormatTXT:  PlainTextExtractor{},
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefaultExtractor wires the eino PDF parser as primary PDF extractor and
// ledongthuc/pdf as fallback when cfg enables it.
func NewDefaultExtractor(ctx context.Context, cfg config.ExtractionConfig, logger zerolog.Logger, opts ...ExtractorOption) (*Extractor, error) {
	pdfExtractor, err := NewEinoPDFTextExtractor(ctx,
		WithEinoLogger(logger),
		WithEinoTimeout(config.GetDuration(cfg.PDFTimeout, 30*time.Second)),
	)
	if err != nil {
		return nil, err
	}
	base := []ExtractorOption{
		WithExtractorLogger(logger),
		WithFormat(ats.FormatPDF, pdfExtractor),
	}
	if cfg.PDFFallback {
		base = append(base, WithPDFFallback(PlainPDFTextExtractor{}))
	}
	return NewExtractor(append(base, opts...)...), nil
}

// Extract returns the text of doc. Unknown formats, and formats without a
// registered extractor, fail with ats.ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, doc ats.RawDocument) (string, error) {
	ctx, span := tracer.Start(ctx, "parser.Extract")
	defer span.End()

	format := doc.Format
	if format == ats.FormatUnknown {
		format = ats.DetectFormat(doc.Name, "")
	}
	span.SetAttributes(
		attribute.String("document.name", doc.Name),
		attribute.String("document.format", string(format)),
		attribute.Int("document.size", len(doc.Data)),
	)

	fe, ok := e.formats[format]
	if !ok {
		err := ats.NewFormatError(doc.Name, string(format))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	text, err := fe.ExtractText(ctx, doc.Data, doc.Name)
	if err != nil && format == ats.FormatPDF && e.pdfFallback != nil && ctx.Err() == nil {
		e.logger.Warn().Err(err).Str("document", doc.Name).Msg("primary pdf extraction failed, trying fallback")
		var fbErr error
		text, fbErr = e.pdfFallback.ExtractText(ctx, doc.Data, doc.Name)
		if fbErr != nil {
			err = errors.Join(err, fbErr)
		} else {
			err = nil
		}
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return "", fmt.Errorf("extract %s: %w", doc.Name, err)
	}
	span.SetAttributes(attribute.Int("document.chars", len(text)))
	return text, nil
}

// Supports reports whether format has a registered extractor.
func (e *Extractor) Supports(format ats.DocumentFormat) bool {
	_, ok := e.formats[format]
	return ok
}
