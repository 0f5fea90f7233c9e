package processor

import (
	"errors"
	"fmt"
)

var (
	ErrExtractFailed  = errors.New("extract resume text failed")
	ErrStoreFailed    = errors.New("store object failed")
	ErrDatabaseFailed = errors.New("database operation failed")
	ErrInvalidInput   = errors.New("invalid analysis input")

	ErrStorageNotInit    = errors.New("object storage is not initialized")
	ErrRepositoryNotInit = errors.New("analysis repository is not initialized")
	ErrJDStoreNotInit    = errors.New("job description store is not initialized")
	ErrSimilarityNotInit = errors.New("similarity is not configured")
)

// ProcessingError carries the analysis and step that failed.
type ProcessingError struct {
	AnalysisID string
	Op         string
	BaseErr    error
	Detail     string
}

func (e *ProcessingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (op:%s, analysis:%s): %s", e.BaseErr, e.Op, e.AnalysisID, e.Detail)
	}
	return fmt.Sprintf("%s (op:%s, analysis:%s)", e.BaseErr, e.Op, e.AnalysisID)
}

func (e *ProcessingError) Unwrap() error {
	return e.BaseErr
}

func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func NewStoreError(analysisID, detail string) error {
	return &ProcessingError{AnalysisID: analysisID, Op: "store", BaseErr: ErrStoreFailed, Detail: detail}
}

func NewDatabaseError(analysisID, detail string) error {
	return &ProcessingError{AnalysisID: analysisID, Op: "database", BaseErr: ErrDatabaseFailed, Detail: detail}
}

func NewInputError(detail string) error {
	return &ProcessingError{Op: "validate", BaseErr: ErrInvalidInput, Detail: detail}
}
