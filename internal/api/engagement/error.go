package engagement

import "github.com/demonstrikkk/HoneyCatcher/pkg/response"

var (
	ErrSessionNotFound      = response.NewError(404, "SESSION_NOT_FOUND", "session not found")
	ErrSessionAlreadyExists = response.NewError(409, "SESSION_ALREADY_EXISTS", "session already exists")
	ErrSessionClosed        = response.NewError(409, "SESSION_ENDED", "session has ended")
	ErrSessionNotActive     = response.NewError(409, "SESSION_NOT_ACTIVE", "session is not active")
	ErrInvalidMode          = response.NewError(400, "INVALID_MODE", "invalid engagement mode")
	ErrInvalidRole          = response.NewError(400, "INVALID_ROLE", "invalid participant role")
	ErrInvalidAudioPayload  = response.NewError(400, "INVALID_AUDIO", "invalid audio payload")
	ErrAudioTooLarge        = response.NewError(413, "AUDIO_TOO_LARGE", "audio payload exceeds size limit")
	ErrTranscriptionFailed  = response.NewError(502, "TRANSCRIPTION_FAILED", "transcription service unavailable")
	ErrSynthesisFailed      = response.NewError(502, "SYNTHESIS_FAILED", "voice synthesis unavailable")
	ErrReasoningFailed      = response.NewError(502, "REASONING_FAILED", "response generation unavailable")
)
