package models

import (
	"time"

	"gorm.io/datatypes"
)

// TranscriptStatus is the processing lifecycle of one transcription job.
// Transitions are monotonic forward: PENDING → PROCESSING → DONE|FAILED.
// DONE and FAILED are terminal.
type TranscriptStatus string

const (
	StatusPending    TranscriptStatus = "PENDING"
	StatusProcessing TranscriptStatus = "PROCESSING"
	StatusDone       TranscriptStatus = "DONE"
	StatusFailed     TranscriptStatus = "FAILED"
)

// Terminal reports whether a status may not transition further.
func (s TranscriptStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Transcript is one transcription job tied to exactly one audio artifact.
// Only the worker mutates status, language, text, segments and error.
type Transcript struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"user_id"`

	// AudioURL is the artifact location; deleted best-effort after DONE.
	AudioURL string `gorm:"size:500;not null" json:"audio_url"`

	Status TranscriptStatus `gorm:"size:20;index;not null;default:PENDING" json:"status"`

	Language string         `gorm:"size:10" json:"language,omitempty"`
	FullText string         `gorm:"type:text" json:"full_text,omitempty"`
	Segments datatypes.JSON `gorm:"column:segments_json" json:"segments,omitempty"`
	QAReport datatypes.JSON `gorm:"column:qa_json" json:"qa_report,omitempty"`
	Summary  string         `gorm:"type:text" json:"summary,omitempty"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Transcript) TableName() string { return "transcripts" }
