package models

import (
	"time"

	"gorm.io/datatypes"
)

// Analysis is one scoring request and, once processed, its result.
type Analysis struct {
	AnalysisID       string         `gorm:"type:char(36);primaryKey" json:"analysis_id"`
	Status           string         `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_analyses_status" json:"status"`
	OriginalFilename string         `gorm:"type:varchar(255)" json:"original_filename"`
	ResumeObjectKey  string         `gorm:"type:varchar(1024)" json:"resume_object_key"`
	TextObjectKey    string         `gorm:"type:varchar(1024)" json:"text_object_key"`
	ContentHash      string         `gorm:"type:char(64);index:idx_analyses_content_hash" json:"-"`
	JDSource         string         `gorm:"type:varchar(255)" json:"jd_source"`
	JDText           string         `gorm:"type:mediumtext" json:"-"`
	FresherOverride  *bool          `json:"fresher_override,omitempty"`
	Label            string         `gorm:"type:varchar(20)" json:"label,omitempty"`
	TotalScore       *float64       `gorm:"type:double;index:idx_analyses_total_score" json:"total_score,omitempty"`
	Similarity       *float64       `gorm:"type:double" json:"similarity,omitempty"`
	ResultJSON       datatypes.JSON `gorm:"type:json" json:"result,omitempty"`
	ScorerVersion    string         `gorm:"type:varchar(20)" json:"scorer_version"`
	Attempts         int            `gorm:"default:0" json:"attempts"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
	CompletedAt      *time.Time     `gorm:"type:datetime(6)" json:"completed_at,omitempty"`
}

func (Analysis) TableName() string {
	return "analyses"
}
