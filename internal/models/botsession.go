package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bot session states, written by the runner process as the state machine
// advances and read by the API for status polling.
const (
	BotStateInitializing = "initializing"
	BotStateNavigating   = "navigating_to_meeting"
	BotStateJoiningForm  = "joining_form"
	BotStateWaitingRoom  = "waiting_room"
	BotStateAdmitted     = "admitted"
	BotStateRecording    = "recording"
	BotStateRetrying     = "retrying"
	BotStateEnding       = "ending"
	BotStateEnded        = "ended"
)

// BotSession is the durable record of one bot's attempt to join, record and
// leave a single meeting. The runner owns state transitions; the API owns
// creation and the final transcript link.
type BotSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    uint               `bson:"user_id" json:"user_id"`

	MeetingID   string `bson:"meeting_id" json:"meeting_id"`
	MeetingLink string `bson:"meeting_link,omitempty" json:"meeting_link,omitempty"`
	BotName     string `bson:"bot_name" json:"bot_name"`
	Language    string `bson:"language,omitempty" json:"language,omitempty"`

	State     string `bson:"state" json:"state"`
	EndReason string `bson:"end_reason,omitempty" json:"end_reason,omitempty"`
	Error     string `bson:"error,omitempty" json:"error,omitempty"`

	ArtifactPath string `bson:"artifact_path,omitempty" json:"artifact_path,omitempty"`
	TranscriptID uint   `bson:"transcript_id,omitempty" json:"transcript_id,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
}
