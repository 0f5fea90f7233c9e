package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"
)

const defaultEinoTimeout = 30 * time.Second

// EinoPDFTextExtractor extracts PDF text with the eino PDF parser.
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	logger  zerolog.Logger
}

type EinoPDFOption func(*EinoPDFTextExtractor)

func WithEinoLogger(logger zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = logger
	}
}

func WithEinoTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEinoPDFTextExtractor builds an extractor that returns the whole
// document as one text rather than per page.
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("create eino pdf parser: %w", err)
	}
	e := &EinoPDFTextExtractor{
		parser:  p,
		timeout: defaultEinoTimeout,
		logger:  zerolog.Nop(),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractText parses data as a PDF named uri.
func (e *EinoPDFTextExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{
			"source":          uri,
			"extraction_time": start.Format(time.RFC3339),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("eino pdf parser failed for %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino pdf parser returned no documents for %s", uri)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	text := strings.Join(parts, "\n")

	e.logger.Debug().
		Str("uri", uri).
		Int("documents", len(docs)).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("pdf text extracted")
	return text, nil
}
