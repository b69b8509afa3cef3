package engagement

import (
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
)

// REST request/response shapes.

type StartSessionRequest struct {
	SessionID    string `json:"session_id"`
	Mode         string `json:"mode" validate:"required,oneof=ai_takeover ai_coached"`
	VoiceCloneID string `json:"voice_clone_id"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
}

type SwitchModeRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Mode      string `json:"mode" validate:"required,oneof=ai_takeover ai_coached"`
}

type SwitchModeResponse struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Switched  bool   `json:"switched"`
}

type SessionStatusResponse struct {
	SessionID        string  `json:"session_id"`
	Mode             string  `json:"mode"`
	Status           string  `json:"status"`
	TurnCount        int     `json:"turn_count"`
	ThreatLevel      float64 `json:"threat_level"`
	TranscriptLength int     `json:"transcript_length"`
	EntityCount      int     `json:"entity_count"`
	DetectedLanguage string  `json:"detected_language"`
	ConnectedRoles   []string `json:"connected_roles"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

type SessionReportResponse struct {
	SessionID        string                      `json:"session_id"`
	Mode             string                      `json:"mode"`
	Status           string                      `json:"status"`
	TurnCount        int                         `json:"turn_count"`
	ThreatLevel      float64                     `json:"threat_level"`
	Tactics          []string                    `json:"tactics"`
	Entities         []entity.IntelligenceEntity `json:"entities"`
	URLScans         []entity.URLScanResult      `json:"url_scans"`
	Transcript       []entity.Utterance          `json:"transcript"`
	DetectedLanguage string                      `json:"detected_language"`
	StartedAt        time.Time                   `json:"started_at"`
	EndedAt          *time.Time                  `json:"ended_at"`
	ReportURL        string                      `json:"report_url,omitempty"`
}

type EndSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Wire protocol, client to server. Kind discriminates the payload.

const (
	KindAudioChunk      = "audio_chunk"
	KindModeSwitch      = "mode_switch"
	KindTextInput       = "text_input"
	KindPing            = "ping"
	KindRequestCoaching = "request_coaching"
)

type InboundMessage struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	Format string `json:"format,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Wire protocol, server to client.

type ConnectedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Mode      string `json:"mode"`
}

type TranscriptionMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

type AIResponseMessage struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	Audio       *string `json:"audio"`
	Strategy    string  `json:"strategy"`
	ThreatLevel float64 `json:"threat_level"`
	Timestamp   string  `json:"timestamp"`
}

type CoachingScriptsMessage struct {
	Type        string   `json:"type"`
	Scripts     []string `json:"scripts"`
	Strategy    string   `json:"strategy"`
	Intent      string   `json:"intent"`
	Emotion     string   `json:"emotion"`
	ThreatLevel float64  `json:"threat_level"`
}

type IntelligenceUpdateMessage struct {
	Type        string                      `json:"type"`
	Entities    []entity.IntelligenceEntity `json:"entities"`
	ThreatLevel float64                     `json:"threat_level"`
	Tactics     []string                    `json:"tactics"`
}

type ThreatUpdateMessage struct {
	Type    string   `json:"type"`
	Level   float64  `json:"level"`
	Tactics []string `json:"tactics"`
}

type URLScanResultMessage struct {
	Type string               `json:"type"`
	Data entity.URLScanResult `json:"data"`
}

type ModeSwitchedMessage struct {
	Type    string `json:"type"`
	NewMode string `json:"new_mode"`
}

type AudioStreamMessage struct {
	Type    string `json:"type"`
	Data    string `json:"data"`
	Speaker string `json:"speaker"`
}

type ParticipantMessage struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type SessionEndedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type PongMessage struct {
	Type string `json:"type"`
}
