package engagementService

import (
	"context"
	"encoding/json"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/audio"
	"github.com/demonstrikkk/HoneyCatcher/pkg/callback"
	contextPkg "github.com/demonstrikkk/HoneyCatcher/pkg/context"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/sirupsen/logrus"
)

func (s *engagementService) CreateSession(ctx context.Context, sessionID string, mode entity.EngagementMode, voiceCloneID string) (*entity.EngagementSession, error) {
	if !mode.Valid() {
		return nil, engagement.ErrInvalidMode
	}

	s.mu.Lock()
	if _, exists := s.sessions[sessionID]; exists {
		s.mu.Unlock()
		return nil, engagement.ErrSessionAlreadyExists
	}
	rt := s.newRuntime(sessionID, mode, voiceCloneID)
	s.sessions[sessionID] = rt
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"mode":       mode,
	}).Info("Engagement session created")

	s.persistCreate(rt.state)

	state := rt.state
	return &state, nil
}

func (s *engagementService) newRuntime(sessionID string, mode entity.EngagementMode, voiceCloneID string) *sessionRuntime {
	runtimeCtx, cancel := context.WithCancel(context.Background())

	return &sessionRuntime{
		state: entity.EngagementSession{
			SessionID:        sessionID,
			Mode:             mode,
			Status:           entity.StatusWaiting,
			DetectedLanguage: "en",
			VoiceCloneID:     voiceCloneID,
			StartedAt:        time.Now(),
		},
		buffers: make(map[entity.Speaker]*audio.StreamBuffer),
		seen:    make(map[string]bool),
		scanned: make(map[string]bool),
		ctx:     runtimeCtx,
		cancel:  cancel,
	}
}

// BindConnection attaches a transport to a (session, role). The session is
// created on demand so a caller can join before any explicit start request.
// The first scammer connection moves a waiting session to active.
func (s *engagementService) BindConnection(sessionID string, role string, conn websocketPkg.Conn) (*entity.EngagementSession, error) {
	if role != websocketPkg.RoleScammer && role != websocketPkg.RoleOperator {
		return nil, engagement.ErrInvalidRole
	}

	s.mu.Lock()
	rt, exists := s.sessions[sessionID]
	if !exists {
		rt = s.newRuntime(sessionID, entity.ModeAITakeover, "")
		s.sessions[sessionID] = rt
		s.mu.Unlock()
		s.persistCreate(rt.state)
	} else {
		s.mu.Unlock()
	}

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return nil, engagement.ErrSessionClosed
	}

	if role == websocketPkg.RoleScammer && rt.state.Status == entity.StatusWaiting {
		rt.state.Status = entity.StatusActive
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
		}).Info("Session activated")
	}
	state := rt.state
	rt.mu.Unlock()

	s.registry.Bind(sessionID, role, conn)
	s.registry.Broadcast(sessionID, engagement.ParticipantMessage{
		Type: "participant_joined",
		Role: role,
	})
	s.persistState(rt)

	return &state, nil
}

// UnbindConnection detaches a transport. A stale disconnect, where the
// role has already reconnected on a newer transport, announces nothing.
func (s *engagementService) UnbindConnection(sessionID string, role string, conn websocketPkg.Conn) {
	if !s.registry.Unbind(sessionID, role, conn) {
		return
	}
	s.registry.Broadcast(sessionID, engagement.ParticipantMessage{
		Type: "participant_left",
		Role: role,
	})
}

// SwitchMode swaps the engagement mode on an active session. Switching to
// the current mode is a no-op and leaves the transcript untouched.
func (s *engagementService) SwitchMode(ctx context.Context, sessionID string, mode entity.EngagementMode) (bool, error) {
	if !mode.Valid() {
		return false, engagement.ErrInvalidMode
	}

	rt := s.runtime(sessionID)
	if rt == nil {
		return false, engagement.ErrSessionNotFound
	}

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return false, engagement.ErrSessionClosed
	}
	if rt.state.Status != entity.StatusActive {
		rt.mu.Unlock()
		return false, engagement.ErrSessionNotActive
	}
	if rt.state.Mode == mode {
		rt.mu.Unlock()
		return false, nil
	}

	previous := rt.state.Mode
	rt.state.Mode = mode
	utterance := entity.Utterance{
		Speaker:   entity.SpeakerSystem,
		Text:      "Engagement mode switched from " + string(previous) + " to " + string(mode),
		Language:  rt.state.DetectedLanguage,
		Timestamp: time.Now(),
		Source:    "system",
	}
	rt.state.Transcript = append(rt.state.Transcript, utterance)
	rt.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"from":       previous,
		"to":         mode,
	}).Info("Engagement mode switched")

	s.persistUtterance(sessionID, utterance)
	s.persistState(rt)

	s.registry.Broadcast(sessionID, engagement.ModeSwitchedMessage{
		Type:    "mode_switched",
		NewMode: string(mode),
	})

	return true, nil
}

// EndSession is terminal. In-flight background tasks are cancelled, the
// registry stops routing for this id, and the final report goes out.
func (s *engagementService) EndSession(ctx context.Context, sessionID string, reason string) error {
	rt := s.runtime(sessionID)
	if rt == nil {
		return engagement.ErrSessionNotFound
	}

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return engagement.ErrSessionClosed
	}
	endedAt := time.Now()
	rt.state.Status = entity.StatusEnded
	rt.state.EndedAt = &endedAt
	state := rt.state
	rt.mu.Unlock()

	rt.cancel()

	s.log.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"reason":       reason,
		"turn_count":   state.TurnCount,
		"threat_level": state.ThreatLevel,
	}).Info("Engagement session ended")

	s.registry.Broadcast(sessionID, engagement.SessionEndedMessage{
		Type:   "session_ended",
		Reason: reason,
	})
	s.registry.CloseSession(sessionID)

	client, err := s.repo.NewClient(false)
	if err == nil {
		if err := client.Sessions.MarkSessionEnded(ctx, sessionID, state); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to persist session end")
		}
	}

	go s.deliverFinalReport(state)

	return nil
}

func (s *engagementService) deliverFinalReport(state entity.EngagementSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entities := make(map[string][]string)
	for _, item := range state.Entities {
		entities[string(item.Kind)] = append(entities[string(item.Kind)], item.Value)
	}

	report := callback.Report{
		SessionID:        state.SessionID,
		Status:           string(state.Status),
		Mode:             string(state.Mode),
		TurnCount:        state.TurnCount,
		ThreatLevel:      state.ThreatLevel,
		Tactics:          state.Tactics,
		Entities:         entities,
		DetectedLanguage: state.DetectedLanguage,
		TranscriptLength: len(state.Transcript),
		StartedAt:        state.StartedAt,
	}
	if state.EndedAt != nil {
		report.EndedAt = *state.EndedAt
	}

	if s.s3Client != nil {
		reportJSON, err := json.Marshal(report)
		if err == nil {
			key, err := s.s3Client.UploadReport(state.SessionID, reportJSON)
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"session_id": state.SessionID,
					"error":      err.Error(),
				}).Warn("Failed to archive final report")
			} else if url, err := s.s3Client.PresignUrl(key); err != nil {
				s.log.WithFields(logrus.Fields{
					"session_id": state.SessionID,
					"error":      err.Error(),
				}).Warn("Failed to presign archived report")
			} else {
				report.ReportURL = url
			}
		}
	}

	if err := s.notifier.SendReport(ctx, report); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"error":      err.Error(),
		}).Warn("Failed to deliver final report")
	}
}

func (s *engagementService) SessionStatus(sessionID string) (*engagement.SessionStatusResponse, error) {
	rt := s.runtime(sessionID)
	if rt == nil {
		return nil, engagement.ErrSessionNotFound
	}

	rt.mu.Lock()
	state := rt.state
	transcriptLen := len(rt.state.Transcript)
	entityCount := len(rt.state.Entities)
	rt.mu.Unlock()

	duration := time.Since(state.StartedAt).Seconds()
	if state.EndedAt != nil {
		duration = state.EndedAt.Sub(state.StartedAt).Seconds()
	}

	return &engagement.SessionStatusResponse{
		SessionID:        state.SessionID,
		Mode:             string(state.Mode),
		Status:           string(state.Status),
		TurnCount:        state.TurnCount,
		ThreatLevel:      state.ThreatLevel,
		TranscriptLength: transcriptLen,
		EntityCount:      entityCount,
		DetectedLanguage: state.DetectedLanguage,
		ConnectedRoles:   s.registry.Roles(sessionID),
		DurationSeconds:  duration,
	}, nil
}

func (s *engagementService) SessionReport(ctx context.Context, sessionID string) (*engagement.SessionReportResponse, error) {
	rt := s.runtime(sessionID)
	if rt != nil {
		rt.mu.Lock()
		state := rt.state
		transcript := make([]entity.Utterance, len(rt.state.Transcript))
		copy(transcript, rt.state.Transcript)
		entities := make([]entity.IntelligenceEntity, len(rt.state.Entities))
		copy(entities, rt.state.Entities)
		scans := make([]entity.URLScanResult, len(rt.state.URLScans))
		copy(scans, rt.state.URLScans)
		rt.mu.Unlock()

		return &engagement.SessionReportResponse{
			SessionID:        state.SessionID,
			Mode:             string(state.Mode),
			Status:           string(state.Status),
			TurnCount:        state.TurnCount,
			ThreatLevel:      state.ThreatLevel,
			Tactics:          state.Tactics,
			Entities:         entities,
			URLScans:         scans,
			Transcript:       transcript,
			DetectedLanguage: state.DetectedLanguage,
			StartedAt:        state.StartedAt,
			EndedAt:          state.EndedAt,
		}, nil
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}

	state, err := client.Sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	transcript, err := client.Transcript.GetUtterances(ctx, sessionID)
	if err != nil {
		transcript = nil
	}
	entities, err := client.Transcript.GetEntities(ctx, sessionID)
	if err != nil {
		entities = nil
	}

	return &engagement.SessionReportResponse{
		SessionID:        state.SessionID,
		Mode:             string(state.Mode),
		Status:           string(state.Status),
		TurnCount:        state.TurnCount,
		ThreatLevel:      state.ThreatLevel,
		Tactics:          state.Tactics,
		Entities:         entities,
		Transcript:       transcript,
		DetectedLanguage: state.DetectedLanguage,
		StartedAt:        state.StartedAt,
		EndedAt:          state.EndedAt,
	}, nil
}

// appendUtterance records one transcript entry under the runtime lock and
// advances the turn count for conversational speakers. The returned flag
// reports whether the turn ceiling was hit.
func (s *engagementService) appendUtterance(rt *sessionRuntime, utterance entity.Utterance) (bool, error) {
	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return false, engagement.ErrSessionClosed
	}

	rt.state.Transcript = append(rt.state.Transcript, utterance)
	if utterance.Speaker == entity.SpeakerScammer || utterance.Speaker == entity.SpeakerAgent {
		rt.state.TurnCount++
	}
	ceilingHit := rt.state.TurnCount >= s.maxTurns
	sessionID := rt.state.SessionID
	rt.mu.Unlock()

	s.persistUtterance(sessionID, utterance)

	return ceilingHit, nil
}

// Storage is best-effort: every persistence failure is logged and the live
// session keeps going on in-memory state.

func (s *engagementService) persistCreate(state entity.EngagementSession) {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(contextPkg.ForSession(state.SessionID), 10*time.Second)
	defer cancel()

	if err := client.Sessions.CreateSession(ctx, state); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"error":      err.Error(),
		}).Warn("Failed to persist new session")
	}
}

func (s *engagementService) persistState(rt *sessionRuntime) {
	rt.mu.Lock()
	state := rt.state
	rt.mu.Unlock()

	client, err := s.repo.NewClient(false)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(contextPkg.ForSession(state.SessionID), 10*time.Second)
	defer cancel()

	if err := client.Sessions.UpdateSessionState(ctx, state); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"error":      err.Error(),
		}).Warn("Failed to persist session state")
	}
}

func (s *engagementService) persistUtterance(sessionID string, utterance entity.Utterance) {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(contextPkg.ForSession(sessionID), 10*time.Second)
	defer cancel()

	if err := client.Transcript.AppendUtterance(ctx, sessionID, utterance); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Failed to persist utterance")
	}
}
