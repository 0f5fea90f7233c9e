package storage

import "time"

// AnalysisRequestedMessage announces a queued analysis. The worker reads
// the résumé text and JD from storage by ID.
type AnalysisRequestedMessage struct {
	AnalysisID    string    `json:"analysis_id"`
	MessageID     string    `json:"message_id"`
	TextObjectKey string    `json:"text_object_key"`
	JDSource      string    `json:"jd_source"`
	RequestedAt   time.Time `json:"requested_at"`
}
