package engagementService

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/audio"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/sirupsen/logrus"
)

// HandleAudioChunk ingests one audio fragment. Relay and buffering happen
// inline; everything downstream of a full buffer window runs as a background
// task so the caller's read loop is never blocked.
func (s *engagementService) HandleAudioChunk(sessionID string, role string, payload []byte, format string) error {
	rt := s.runtime(sessionID)
	if rt == nil {
		return engagement.ErrSessionNotFound
	}

	speaker, err := speakerForRole(role)
	if err != nil {
		return err
	}

	pcm, err := s.normalizer.Normalize(payload, format)
	if err != nil {
		if errors.Is(err, audio.ErrPayloadTooLarge) {
			return engagement.ErrAudioTooLarge
		}
		return engagement.ErrInvalidAudioPayload
	}
	if pcm == nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"format":     format,
			"bytes":      len(payload),
		}).Debug("Undecodable audio fragment dropped")
		return nil
	}

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return engagement.ErrSessionClosed
	}
	buffer, ok := rt.buffers[speaker]
	if !ok {
		buffer = audio.NewStreamBuffer(audio.DefaultBufferThreshold)
		rt.buffers[speaker] = buffer
	}
	rt.mu.Unlock()

	// Audible relay first, straight to the opposite party. It bypasses the
	// transcript entirely and never waits on transcription.
	s.relayAudio(sessionID, role, speaker, pcm)

	if ready := buffer.Add(pcm); !ready {
		return nil
	}

	window := buffer.Take()
	if len(window) == 0 {
		return nil
	}

	s.spawn(rt, func() {
		s.processWindow(rt, window, speaker)
	})

	return nil
}

func (s *engagementService) relayAudio(sessionID string, role string, speaker entity.Speaker, pcm []byte) {
	target := websocketPkg.RoleOperator
	if role == websocketPkg.RoleOperator {
		target = websocketPkg.RoleScammer
	}

	_ = s.registry.Send(sessionID, target, engagement.AudioStreamMessage{
		Type:    "audio_stream",
		Data:    base64.StdEncoding.EncodeToString(pcm),
		Speaker: string(speaker),
	})
}

// processWindow transcribes one flushed buffer window and fans the text out
// to the transcript, the intelligence pipeline, and the reply path.
func (s *engagementService) processWindow(rt *sessionRuntime, window []byte, speaker entity.Speaker) {
	rt.mu.Lock()
	sessionID := rt.state.SessionID
	rt.mu.Unlock()

	if s.s3Client != nil {
		if _, err := s.s3Client.UploadAudio(sessionID, string(speaker), audio.WrapWAV(window)); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err.Error(),
			}).Debug("Failed to archive audio window")
		}
	}

	transcribeCtx, cancel := context.WithTimeout(rt.ctx, 30*time.Second)
	defer cancel()

	transcription, err := s.transcriber.Transcribe(transcribeCtx, window)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"speaker":    speaker,
			"error":      err.Error(),
		}).Warn("Transcription failed, audio window lost")
		return
	}
	if transcription == nil {
		return
	}

	utterance := entity.Utterance{
		Speaker:    speaker,
		Text:       transcription.Text,
		Language:   transcription.Language,
		Confidence: transcription.Confidence,
		Timestamp:  time.Now(),
		Source:     "voice",
	}

	if transcription.Language != "" {
		rt.mu.Lock()
		rt.state.DetectedLanguage = transcription.Language
		rt.mu.Unlock()
	}

	s.handleUtterance(rt, utterance)
}

// HandleTextInput records a typed message. Operator text in coached mode is
// the human-narrated reply and is voiced out to the counterparty.
func (s *engagementService) HandleTextInput(sessionID string, role string, text string) error {
	rt := s.runtime(sessionID)
	if rt == nil {
		return engagement.ErrSessionNotFound
	}

	speaker, err := speakerForRole(role)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return engagement.ErrSessionClosed
	}
	language := rt.state.DetectedLanguage
	rt.mu.Unlock()

	utterance := entity.Utterance{
		Speaker:    speaker,
		Text:       text,
		Language:   language,
		Confidence: 1.0,
		Timestamp:  time.Now(),
		Source:     "text",
	}

	if speaker == entity.SpeakerOperator {
		s.spawn(rt, func() {
			s.narrateOperatorReply(rt, utterance)
		})
		return nil
	}

	s.spawn(rt, func() {
		s.handleUtterance(rt, utterance)
	})

	return nil
}

// handleUtterance is the shared fan-out for transcribed and typed input:
// append, push the transcription, run intelligence, then reply if the
// speaker was the counterparty.
func (s *engagementService) handleUtterance(rt *sessionRuntime, utterance entity.Utterance) {
	rt.mu.Lock()
	sessionID := rt.state.SessionID
	rt.mu.Unlock()

	ceilingHit, err := s.appendUtterance(rt, utterance)
	if err != nil {
		return
	}

	s.registry.Broadcast(sessionID, engagement.TranscriptionMessage{
		Type:       "transcription",
		Text:       utterance.Text,
		Speaker:    string(utterance.Speaker),
		Language:   utterance.Language,
		Confidence: utterance.Confidence,
		Timestamp:  utterance.Timestamp.Format(time.RFC3339),
	})

	if utterance.Speaker == entity.SpeakerScammer {
		result, err := s.processIntelligence(rt, utterance.Text, utterance.Speaker)
		if err == nil && result != nil {
			if len(result.NewEntities) > 0 {
				s.registry.Broadcast(sessionID, engagement.IntelligenceUpdateMessage{
					Type:        "intelligence_update",
					Entities:    result.NewEntities,
					ThreatLevel: result.ThreatLevel,
					Tactics:     result.Tactics,
				})
			}

			s.registry.Broadcast(sessionID, engagement.ThreatUpdateMessage{
				Type:    "threat_update",
				Level:   result.ThreatLevel,
				Tactics: result.Tactics,
			})

			if len(result.URLsToScan) > 0 {
				urls := result.URLsToScan
				s.spawn(rt, func() {
					s.scanURLs(rt, urls)
				})
			}
		}

		s.respondToScammer(rt, utterance.Text)
	}

	s.persistState(rt)

	if ceilingHit {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.EndSession(ctx, sessionID, "turn_limit_reached"); err != nil &&
			!errors.Is(err, engagement.ErrSessionClosed) {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to end session at turn ceiling")
		}
	}
}

// spawn runs fn as a session-owned background task. Nothing is spawned for
// an already-cancelled session, so no work outlives its owner.
func (s *engagementService) spawn(rt *sessionRuntime, fn func()) {
	select {
	case <-rt.ctx.Done():
		return
	default:
	}

	rt.tasks.Add(1)
	go func() {
		defer rt.tasks.Done()
		fn()
	}()
}

func speakerForRole(role string) (entity.Speaker, error) {
	switch role {
	case websocketPkg.RoleScammer:
		return entity.SpeakerScammer, nil
	case websocketPkg.RoleOperator:
		return entity.SpeakerOperator, nil
	default:
		return "", engagement.ErrInvalidRole
	}
}
