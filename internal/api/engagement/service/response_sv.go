package engagementService

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/gemini"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/sirupsen/logrus"
)

const (
	historyWindow = 10
	audioCacheTTL = 15 * time.Minute
)

// respondToScammer drives the mode-dependent reply path for one scammer
// utterance: autonomous voice reply in takeover, coaching scripts in
// coached mode.
func (s *engagementService) respondToScammer(rt *sessionRuntime, scammerText string) {
	rt.mu.Lock()
	if rt.state.Status != entity.StatusActive {
		rt.mu.Unlock()
		return
	}
	sessionID := rt.state.SessionID
	mode := rt.state.Mode
	req := gemini.EngagementRequest{
		ScammerText: scammerText,
		History:     buildHistory(rt.state.Transcript),
		Mode:        string(mode),
		Language:    rt.state.DetectedLanguage,
		TurnCount:   rt.state.TurnCount,
	}
	voiceCloneID := rt.state.VoiceCloneID
	rt.mu.Unlock()

	reasonCtx, cancel := context.WithTimeout(rt.ctx, 30*time.Second)
	defer cancel()

	result, err := s.reasoner.GenerateEngagement(reasonCtx, req)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"mode":       mode,
			"error":      err.Error(),
		}).Warn("Reply generation failed")
		return
	}

	rt.mu.Lock()
	threatLevel := rt.state.ThreatLevel
	language := rt.state.DetectedLanguage
	rt.mu.Unlock()

	if mode == entity.ModeAICoached {
		_ = s.registry.Send(sessionID, websocketPkg.RoleOperator, engagement.CoachingScriptsMessage{
			Type:        "coaching_scripts",
			Scripts:     result.Scripts,
			Strategy:    result.Strategy,
			Intent:      result.Intent,
			Emotion:     result.Emotion,
			ThreatLevel: threatLevel,
		})
		return
	}

	utterance := entity.Utterance{
		Speaker:    entity.SpeakerAgent,
		Text:       result.Response,
		Language:   language,
		Confidence: 1.0,
		Timestamp:  time.Now(),
		Source:     "ai-generated",
	}

	ceilingHit, err := s.appendUtterance(rt, utterance)
	if err != nil {
		return
	}

	audioB64 := s.synthesize(rt.ctx, sessionID, result.Response, voiceCloneID)

	s.registry.Broadcast(sessionID, engagement.AIResponseMessage{
		Type:        "ai_response",
		Text:        result.Response,
		Audio:       audioB64,
		Strategy:    result.Strategy,
		ThreatLevel: threatLevel,
		Timestamp:   utterance.Timestamp.Format(time.RFC3339),
	})

	if ceilingHit {
		endCtx, endCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer endCancel()
		_ = s.EndSession(endCtx, sessionID, "turn_limit_reached")
	}
}

// narrateOperatorReply voices operator text out to the counterparty and
// records it as a human-narrated agent turn.
func (s *engagementService) narrateOperatorReply(rt *sessionRuntime, utterance entity.Utterance) {
	rt.mu.Lock()
	sessionID := rt.state.SessionID
	voiceCloneID := rt.state.VoiceCloneID
	threatLevel := rt.state.ThreatLevel
	rt.mu.Unlock()

	spoken := entity.Utterance{
		Speaker:    entity.SpeakerAgent,
		Text:       utterance.Text,
		Language:   utterance.Language,
		Confidence: 1.0,
		Timestamp:  time.Now(),
		Source:     "human-narrated",
	}

	ceilingHit, err := s.appendUtterance(rt, spoken)
	if err != nil {
		return
	}

	s.registry.Broadcast(sessionID, engagement.TranscriptionMessage{
		Type:       "transcription",
		Text:       spoken.Text,
		Speaker:    string(spoken.Speaker),
		Language:   spoken.Language,
		Confidence: spoken.Confidence,
		Timestamp:  spoken.Timestamp.Format(time.RFC3339),
	})

	audioB64 := s.synthesize(rt.ctx, sessionID, spoken.Text, voiceCloneID)

	_ = s.registry.Send(sessionID, websocketPkg.RoleScammer, engagement.AIResponseMessage{
		Type:        "ai_response",
		Text:        spoken.Text,
		Audio:       audioB64,
		Strategy:    "operator",
		ThreatLevel: threatLevel,
		Timestamp:   spoken.Timestamp.Format(time.RFC3339),
	})

	if ceilingHit {
		endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.EndSession(endCtx, sessionID, "turn_limit_reached")
	}
}

// HandleCoachingRequest regenerates coaching scripts on demand, based on
// the most recent counterparty utterance.
func (s *engagementService) HandleCoachingRequest(sessionID string, role string) error {
	if role != websocketPkg.RoleOperator {
		return engagement.ErrInvalidRole
	}

	rt := s.runtime(sessionID)
	if rt == nil {
		return engagement.ErrSessionNotFound
	}

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return engagement.ErrSessionClosed
	}

	var lastScammerText string
	for i := len(rt.state.Transcript) - 1; i >= 0; i-- {
		if rt.state.Transcript[i].Speaker == entity.SpeakerScammer {
			lastScammerText = rt.state.Transcript[i].Text
			break
		}
	}
	req := gemini.EngagementRequest{
		ScammerText: lastScammerText,
		History:     buildHistory(rt.state.Transcript),
		Mode:        string(entity.ModeAICoached),
		Language:    rt.state.DetectedLanguage,
		TurnCount:   rt.state.TurnCount,
	}
	threatLevel := rt.state.ThreatLevel
	rt.mu.Unlock()

	s.spawn(rt, func() {
		reasonCtx, cancel := context.WithTimeout(rt.ctx, 30*time.Second)
		defer cancel()

		result, err := s.reasoner.GenerateEngagement(reasonCtx, req)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Coaching generation failed")
			return
		}

		_ = s.registry.Send(sessionID, websocketPkg.RoleOperator, engagement.CoachingScriptsMessage{
			Type:        "coaching_scripts",
			Scripts:     result.Scripts,
			Strategy:    result.Strategy,
			Intent:      result.Intent,
			Emotion:     result.Emotion,
			ThreatLevel: threatLevel,
		})
	})

	return nil
}

// synthesize runs the ordered voice fallback chain and returns base64 audio
// or nil for text-only delivery. Providers are tried strictly one at a
// time; identical (text, voice) pairs are served from the cache.
func (s *engagementService) synthesize(ctx context.Context, sessionID string, text string, voiceCloneID string) *string {
	if text == "" {
		return nil
	}

	cacheVoice := voiceCloneID
	if cacheVoice == "" {
		cacheVoice = "default"
	}

	if s.audioCache != nil {
		if cached, err := s.audioCache.GetAudio(ctx, text, cacheVoice); err == nil && len(cached) > 0 {
			encoded := base64.StdEncoding.EncodeToString(cached)
			return &encoded
		}
	}

	synthCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var audioBytes []byte

	if voiceCloneID != "" {
		cloned, err := s.synthesizer.SynthesizeClone(synthCtx, text, voiceCloneID)
		if err != nil || len(cloned) == 0 {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"voice_id":   voiceCloneID,
			}).Warn("Clone voice synthesis failed, falling back to default voice")
		} else {
			audioBytes = cloned
		}
	}

	if audioBytes == nil {
		fallback, err := s.synthesizer.SynthesizeDefault(synthCtx, text)
		if err != nil || len(fallback) == 0 {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
			}).Warn("Default voice synthesis failed, delivering text only")
			return nil
		}
		audioBytes = fallback
	}

	if s.audioCache != nil {
		if err := s.audioCache.SetAudio(ctx, text, cacheVoice, audioBytes, audioCacheTTL); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
			}).Debug("Failed to cache synthesized audio")
		}
	}

	if s.s3Client != nil {
		if _, err := s.s3Client.UploadAudio(sessionID, "reply", audioBytes); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
			}).Debug("Failed to archive synthesized reply")
		}
	}

	encoded := base64.StdEncoding.EncodeToString(audioBytes)
	return &encoded
}

func buildHistory(transcript []entity.Utterance) []gemini.HistoryTurn {
	start := 0
	if len(transcript) > historyWindow {
		start = len(transcript) - historyWindow
	}

	history := make([]gemini.HistoryTurn, 0, len(transcript)-start)
	for _, utterance := range transcript[start:] {
		history = append(history, gemini.HistoryTurn{
			Role:    string(utterance.Speaker),
			Content: utterance.Text,
		})
	}
	return history
}
