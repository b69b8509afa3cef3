package engagementService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
)

func TestCreateSessionTwiceFails(t *testing.T) {
	h := newHarness()

	if _, err := h.svc.CreateSession(context.Background(), "dup", entity.ModeAITakeover, ""); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := h.svc.CreateSession(context.Background(), "dup", entity.ModeAITakeover, "")
	if !errors.Is(err, engagement.ErrSessionAlreadyExists) {
		t.Fatalf("expected ErrSessionAlreadyExists, got %v", err)
	}
}

func TestSwitchModeSameModeIsNoop(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-noop", entity.ModeAITakeover)

	rt.mu.Lock()
	transcriptBefore := len(rt.state.Transcript)
	turnsBefore := rt.state.TurnCount
	rt.mu.Unlock()

	switched, err := h.svc.SwitchMode(context.Background(), "s-noop", entity.ModeAITakeover)
	if err != nil {
		t.Fatalf("same-mode switch errored: %v", err)
	}
	if switched {
		t.Fatalf("same-mode switch reported a change")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.state.Transcript) != transcriptBefore {
		t.Fatalf("same-mode switch touched the transcript")
	}
	if rt.state.TurnCount != turnsBefore {
		t.Fatalf("same-mode switch advanced turn count")
	}
}

func TestSwitchModeAppendsOneSystemUtterance(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-switch", entity.ModeAITakeover)

	rt.mu.Lock()
	rt.state.ThreatLevel = 0.4
	turnsBefore := rt.state.TurnCount
	rt.mu.Unlock()

	switched, err := h.svc.SwitchMode(context.Background(), "s-switch", entity.ModeAICoached)
	if err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if !switched {
		t.Fatalf("switch to a different mode reported no change")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state.Mode != entity.ModeAICoached {
		t.Fatalf("mode not swapped: %s", rt.state.Mode)
	}
	if len(rt.state.Transcript) != 1 {
		t.Fatalf("expected exactly one system utterance, got %d entries", len(rt.state.Transcript))
	}
	if rt.state.Transcript[0].Speaker != entity.SpeakerSystem {
		t.Fatalf("switch utterance has wrong speaker: %s", rt.state.Transcript[0].Speaker)
	}
	if rt.state.ThreatLevel != 0.4 {
		t.Fatalf("mode switch changed threat level: %f", rt.state.ThreatLevel)
	}
	if rt.state.TurnCount != turnsBefore {
		t.Fatalf("system utterance advanced turn count")
	}
}

func TestSwitchModeOnEndedSessionFails(t *testing.T) {
	h := newHarness()
	h.activeSession("s-ended", entity.ModeAITakeover)

	if err := h.svc.EndSession(context.Background(), "s-ended", "test"); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	_, err := h.svc.SwitchMode(context.Background(), "s-ended", entity.ModeAICoached)
	if !errors.Is(err, engagement.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestEndSessionIsTerminal(t *testing.T) {
	h := newHarness()
	h.activeSession("s-final", entity.ModeAITakeover)

	if err := h.svc.EndSession(context.Background(), "s-final", "test"); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	if err := h.svc.EndSession(context.Background(), "s-final", "again"); !errors.Is(err, engagement.ErrSessionClosed) {
		t.Fatalf("second end should fail with ErrSessionClosed, got %v", err)
	}
	if err := h.svc.HandleTextInput("s-final", "scammer", "hello"); !errors.Is(err, engagement.ErrSessionClosed) {
		t.Fatalf("text input after end should fail with ErrSessionClosed, got %v", err)
	}
	if err := h.svc.HandleCoachingRequest("s-final", "operator"); !errors.Is(err, engagement.ErrSessionClosed) {
		t.Fatalf("coaching after end should fail with ErrSessionClosed, got %v", err)
	}

	closed := h.registry.closedSessions()
	if len(closed) != 1 || closed[0] != "s-final" {
		t.Fatalf("registry session not closed: %v", closed)
	}
}

func TestEndSessionDeliversFinalReport(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-report", entity.ModeAITakeover)

	rt.mu.Lock()
	rt.state.TurnCount = 7
	rt.state.ThreatLevel = 0.8
	rt.mu.Unlock()

	if err := h.svc.EndSession(context.Background(), "s-report", "test"); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.notifier.delivered()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	reports := h.notifier.delivered()
	if len(reports) != 1 {
		t.Fatalf("expected one final report, got %d", len(reports))
	}
	report := reports[0]
	if report.SessionID != "s-report" || report.TurnCount != 7 || report.ThreatLevel != 0.8 {
		t.Fatalf("report content wrong: %+v", report)
	}
}

func TestFinalReportCarriesPresignedArchiveLink(t *testing.T) {
	h := newHarness()
	archive := &fakeS3{}
	h.svc.s3Client = archive
	h.activeSession("s-archive", entity.ModeAITakeover)

	if err := h.svc.EndSession(context.Background(), "s-archive", "test"); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.notifier.delivered()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	reports := h.notifier.delivered()
	if len(reports) != 1 {
		t.Fatalf("expected one final report, got %d", len(reports))
	}
	wantKey := "sessions/s-archive/report.json"
	if keys := archive.presignedKeys(); len(keys) != 1 || keys[0] != wantKey {
		t.Fatalf("archived report was not presigned: %v", keys)
	}
	if reports[0].ReportURL != "https://archive.invalid/"+wantKey+"?expires=900" {
		t.Fatalf("report does not link the presigned archive copy: %q", reports[0].ReportURL)
	}
}

func TestTranscriptIsAppendOnly(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-append", entity.ModeAITakeover)

	first := entity.Utterance{Speaker: entity.SpeakerScammer, Text: "one", Timestamp: time.Now()}
	second := entity.Utterance{Speaker: entity.SpeakerScammer, Text: "two", Timestamp: time.Now()}

	h.svc.appendUtterance(rt, first)
	h.svc.appendUtterance(rt, second)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.state.Transcript) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(rt.state.Transcript))
	}
	if rt.state.Transcript[0].Text != "one" || rt.state.Transcript[1].Text != "two" {
		t.Fatalf("transcript order changed: %+v", rt.state.Transcript)
	}
	if rt.state.TurnCount != 2 {
		t.Fatalf("expected 2 turns, got %d", rt.state.TurnCount)
	}
}

func TestTurnCeilingEndsSession(t *testing.T) {
	h := newHarness()
	h.svc.maxTurns = 2
	rt := h.activeSession("s-ceiling", entity.ModeAITakeover)

	u := entity.Utterance{Speaker: entity.SpeakerScammer, Text: "hi", Timestamp: time.Now()}

	if hit, _ := h.svc.appendUtterance(rt, u); hit {
		t.Fatalf("ceiling reported after one turn")
	}
	hit, err := h.svc.appendUtterance(rt, u)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if !hit {
		t.Fatalf("ceiling not reported at the configured turn limit")
	}
}

func TestBindActivatesWaitingSession(t *testing.T) {
	h := newHarness()

	if _, err := h.svc.CreateSession(context.Background(), "s-bind", entity.ModeAICoached, ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	session, err := h.svc.BindConnection("s-bind", "scammer", nil)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if session.Status != entity.StatusActive {
		t.Fatalf("scammer bind did not activate session: %s", session.Status)
	}
}

func TestBindCreatesSessionOnDemand(t *testing.T) {
	h := newHarness()

	session, err := h.svc.BindConnection("s-fresh", "operator", nil)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if session.Status != entity.StatusWaiting {
		t.Fatalf("operator bind should leave session waiting: %s", session.Status)
	}
	if h.svc.runtime("s-fresh") == nil {
		t.Fatalf("session was not created on demand")
	}
}

func TestUnbindDoesNotEndSession(t *testing.T) {
	h := newHarness()
	h.activeSession("s-unbind", entity.ModeAITakeover)

	conn := &stubConn{}
	if _, err := h.svc.BindConnection("s-unbind", "scammer", conn); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	h.svc.UnbindConnection("s-unbind", "scammer", conn)

	rt := h.svc.runtime("s-unbind")
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state.Status == entity.StatusEnded {
		t.Fatalf("unbinding a role ended the session")
	}
}

func TestStaleUnbindDoesNotAnnounceLeave(t *testing.T) {
	h := newHarness()
	h.activeSession("s-stale", entity.ModeAITakeover)

	old := &stubConn{}
	replacement := &stubConn{}
	if _, err := h.svc.BindConnection("s-stale", "scammer", old); err != nil {
		t.Fatalf("first bind failed: %v", err)
	}
	if _, err := h.svc.BindConnection("s-stale", "scammer", replacement); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}

	h.svc.UnbindConnection("s-stale", "scammer", old)
	for _, msg := range h.registry.broadcastMessages() {
		if m, ok := msg.(engagement.ParticipantMessage); ok && m.Type == "participant_left" {
			t.Fatalf("stale disconnect announced participant_left while the role is still connected")
		}
	}

	h.svc.UnbindConnection("s-stale", "scammer", replacement)
	var left int
	for _, msg := range h.registry.broadcastMessages() {
		if m, ok := msg.(engagement.ParticipantMessage); ok && m.Type == "participant_left" {
			left++
		}
	}
	if left != 1 {
		t.Fatalf("expected one participant_left after the live connection unbinds, got %d", left)
	}
}
