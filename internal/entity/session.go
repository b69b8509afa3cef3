package entity

import "time"

type EngagementMode string

const (
	ModeAITakeover EngagementMode = "ai_takeover"
	ModeAICoached  EngagementMode = "ai_coached"
)

func (m EngagementMode) Valid() bool {
	return m == ModeAITakeover || m == ModeAICoached
}

type SessionStatus string

const (
	StatusWaiting SessionStatus = "waiting"
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
)

type Speaker string

const (
	SpeakerScammer  Speaker = "scammer"
	SpeakerOperator Speaker = "operator"
	SpeakerAgent    Speaker = "agent"
	SpeakerSystem   Speaker = "system"
)

// Utterance is one transcript entry. Immutable once appended.
type Utterance struct {
	Speaker    Speaker   `json:"speaker" db:"speaker"`
	Text       string    `json:"text" db:"text"`
	Language   string    `json:"language" db:"language"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Timestamp  time.Time `json:"timestamp" db:"created_at"`
	Source     string    `json:"source,omitempty" db:"source"`
}

// EngagementSession is the unit of engagement with a suspected scam actor.
type EngagementSession struct {
	SessionID        string
	Mode             EngagementMode
	Status           SessionStatus
	TurnCount        int
	Transcript       []Utterance
	Entities         []IntelligenceEntity
	ThreatLevel      float64
	Tactics          []string
	URLScans         []URLScanResult
	DetectedLanguage string
	VoiceCloneID     string
	StartedAt        time.Time
	EndedAt          *time.Time
}
