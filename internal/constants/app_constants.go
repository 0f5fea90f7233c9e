package constants

import "time"

const (
	// ScorerVersion is stamped on stored results.
	ScorerVersion = "1.0"

	DefaultLexiconFile = "job_keywords.csv"

	// JDVectorCacheDuration applies when the config leaves it unset.
	JDVectorCacheDuration = 24 * time.Hour
	AnalysisLockDuration  = 2 * time.Minute
	// SubmissionDedupDuration bounds how long an identical submission maps
	// to its first analysis.
	SubmissionDedupDuration = 24 * time.Hour
)

// Analysis lifecycle states stored in the analyses table.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Outbox message states.
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// EventAnalysisRequested is the outbox event type for queued analyses.
const EventAnalysisRequested = "analysis.requested"
