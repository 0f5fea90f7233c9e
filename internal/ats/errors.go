package ats

import (
	"errors"
	"fmt"
)

var (
	// ErrLexiconUnavailable means the keyword corpus could not be read.
	// Analysis aborts rather than scoring with a degraded lexicon.
	ErrLexiconUnavailable = errors.New("lexicon unavailable")
	// ErrMalformedLexiconRow marks a corpus row whose keyword list could not
	// be parsed. Such rows are skipped.
	ErrMalformedLexiconRow = errors.New("malformed lexicon row")
	// ErrUnsupportedFormat is returned for résumé formats other than pdf,
	// docx and txt.
	ErrUnsupportedFormat = errors.New("unsupported resume format")
	// ErrEmptyInput flags blank résumé or JD text. Analyze never fails with
	// it; callers may use it to reject requests up front.
	ErrEmptyInput = errors.New("empty input")
)

// AnalysisError carries the operation and source that failed.
type AnalysisError struct {
	Op      string
	Source  string
	BaseErr error
	Detail  string
}

func (e *AnalysisError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (op:%s, source:%s): %s", e.BaseErr, e.Op, e.Source, e.Detail)
	}
	return fmt.Sprintf("%s (op:%s, source:%s)", e.BaseErr, e.Op, e.Source)
}

func (e *AnalysisError) Unwrap() error {
	return e.BaseErr
}

// Is supports errors.Is against the base sentinel.
func (e *AnalysisError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewLexiconError reports a lexicon source that could not be opened or read.
func NewLexiconError(source string, cause error) error {
	return &AnalysisError{
		Op:      "load_lexicon",
		Source:  source,
		BaseErr: ErrLexiconUnavailable,
		Detail:  errDetail(cause),
	}
}

// NewRowError reports a corpus row that was skipped.
func NewRowError(source string, row int, cause error) error {
	return &AnalysisError{
		Op:      "parse_row",
		Source:  fmt.Sprintf("%s#%d", source, row),
		BaseErr: ErrMalformedLexiconRow,
		Detail:  errDetail(cause),
	}
}

// NewFormatError reports a document whose format cannot be extracted.
func NewFormatError(name, format string) error {
	return &AnalysisError{
		Op:      "extract",
		Source:  name,
		BaseErr: ErrUnsupportedFormat,
		Detail:  fmt.Sprintf("format %q", format),
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
