package engagementService

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/gemini"
)

func TestCloneFailureFallsBackToDefault(t *testing.T) {
	h := newHarness()
	h.activeSession("s-fallback", entity.ModeAITakeover)
	h.synthesizer.cloneErr = context.DeadlineExceeded
	h.synthesizer.defaultAudio = []byte("default-voice")

	audio := h.svc.synthesize(context.Background(), "s-fallback", "hello there", "clone-1")
	if audio == nil {
		t.Fatalf("expected default-voice audio, got text-only")
	}
	decoded, err := base64.StdEncoding.DecodeString(*audio)
	if err != nil {
		t.Fatalf("audio is not valid base64: %v", err)
	}
	if string(decoded) != "default-voice" {
		t.Fatalf("expected the default-voice bytes, got %q", decoded)
	}
	if h.synthesizer.cloneCalls != 1 || h.synthesizer.defaultCalls != 1 {
		t.Fatalf("expected one clone then one default attempt, got %d/%d",
			h.synthesizer.cloneCalls, h.synthesizer.defaultCalls)
	}
}

func TestCloneSuccessSkipsDefaultVoice(t *testing.T) {
	h := newHarness()
	h.activeSession("s-clone", entity.ModeAITakeover)
	h.synthesizer.cloneAudio = []byte("cloned-voice")
	h.synthesizer.defaultAudio = []byte("default-voice")

	audio := h.svc.synthesize(context.Background(), "s-clone", "hello there", "clone-1")
	if audio == nil {
		t.Fatalf("expected cloned audio, got nil")
	}
	decoded, _ := base64.StdEncoding.DecodeString(*audio)
	if string(decoded) != "cloned-voice" {
		t.Fatalf("expected the cloned bytes, got %q", decoded)
	}
	if h.synthesizer.defaultCalls != 0 {
		t.Fatalf("default voice should not be tried after a clone success")
	}
}

func TestNoCloneIDSkipsCloneProvider(t *testing.T) {
	h := newHarness()
	h.activeSession("s-nocid", entity.ModeAITakeover)
	h.synthesizer.defaultAudio = []byte("default-voice")

	audio := h.svc.synthesize(context.Background(), "s-nocid", "hello there", "")
	if audio == nil {
		t.Fatalf("expected default audio, got nil")
	}
	if h.synthesizer.cloneCalls != 0 {
		t.Fatalf("clone provider tried without a clone id")
	}
}

func TestTotalSynthesisFailureIsTextOnly(t *testing.T) {
	h := newHarness()
	h.activeSession("s-silent", entity.ModeAITakeover)
	h.synthesizer.cloneErr = context.DeadlineExceeded
	h.synthesizer.defaultErr = context.DeadlineExceeded

	if audio := h.svc.synthesize(context.Background(), "s-silent", "hello there", "clone-1"); audio != nil {
		t.Fatalf("expected text-only delivery, got audio")
	}
	if h.synthesizer.cloneCalls != 1 || h.synthesizer.defaultCalls != 1 {
		t.Fatalf("both providers should be tried exactly once, got %d/%d",
			h.synthesizer.cloneCalls, h.synthesizer.defaultCalls)
	}
}

func TestRepeatedSynthesisServedFromCache(t *testing.T) {
	h := newHarness()
	h.activeSession("s-cache", entity.ModeAITakeover)
	h.synthesizer.defaultAudio = []byte("default-voice")

	first := h.svc.synthesize(context.Background(), "s-cache", "same phrase", "")
	if first == nil {
		t.Fatalf("priming call returned no audio")
	}

	second := h.svc.synthesize(context.Background(), "s-cache", "same phrase", "")
	if second == nil || *second != *first {
		t.Fatalf("cached call returned different audio")
	}
	if h.synthesizer.defaultCalls != 1 {
		t.Fatalf("synthesizer called %d times for the same (text, voice) pair", h.synthesizer.defaultCalls)
	}
}

func TestCoachedModeSendsScriptsNotVoice(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-coached", entity.ModeAICoached)
	h.reasoner.result = &gemini.EngagementResult{
		Scripts:  []string{"ask which branch they are calling from", "say the line is breaking up"},
		Strategy: "stall",
		Intent:   "verification",
		Emotion:  "confused",
	}

	h.svc.respondToScammer(rt, "your account will be blocked")

	var scripts *engagement.CoachingScriptsMessage
	for _, msg := range h.registry.sentMessages() {
		if m, ok := msg.(engagement.CoachingScriptsMessage); ok {
			scripts = &m
			break
		}
	}
	if scripts == nil {
		t.Fatalf("no coaching scripts delivered to the operator")
	}
	if len(scripts.Scripts) != 2 || scripts.Strategy != "stall" {
		t.Fatalf("unexpected coaching payload: %+v", scripts)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.state.Transcript) != 0 {
		t.Fatalf("coached mode must not speak for the operator, transcript: %+v", rt.state.Transcript)
	}
	if h.synthesizer.cloneCalls != 0 || h.synthesizer.defaultCalls != 0 {
		t.Fatalf("coached mode synthesized audio")
	}
}

func TestTakeoverModeSpeaksWithAudio(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-takeover", entity.ModeAITakeover)
	h.reasoner.result = &gemini.EngagementResult{
		Response: "Which account is that exactly?",
		Strategy: "probe",
	}
	h.synthesizer.defaultAudio = []byte("spoken")

	h.svc.respondToScammer(rt, "we detected fraud on your account")

	rt.mu.Lock()
	if len(rt.state.Transcript) != 1 {
		rt.mu.Unlock()
		t.Fatalf("expected one agent utterance, got %d", len(rt.state.Transcript))
	}
	spoken := rt.state.Transcript[0]
	rt.mu.Unlock()

	if spoken.Speaker != entity.SpeakerAgent || spoken.Source != "ai-generated" {
		t.Fatalf("unexpected agent utterance: %+v", spoken)
	}

	var reply *engagement.AIResponseMessage
	for _, msg := range h.registry.broadcastMessages() {
		if m, ok := msg.(engagement.AIResponseMessage); ok {
			reply = &m
			break
		}
	}

	if reply == nil {
		t.Fatalf("no reply broadcast to the session")
	}
	if reply.Audio == nil {
		t.Fatalf("reply missing synthesized audio")
	}
	if reply.Text != "Which account is that exactly?" {
		t.Fatalf("reply carries wrong text: %q", reply.Text)
	}
}

func TestReasonerFailureProducesNoReply(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-mute", entity.ModeAITakeover)
	h.reasoner.fail = true

	h.svc.respondToScammer(rt, "send the gift card codes now")

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.state.Transcript) != 0 {
		t.Fatalf("failed generation still produced an utterance")
	}
}

func TestNarrateOperatorReplyReachesScammer(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-narrate", entity.ModeAICoached)
	h.synthesizer.defaultAudio = []byte("narrated")

	h.svc.narrateOperatorReply(rt, entity.Utterance{
		Speaker:  entity.SpeakerOperator,
		Text:     "I need to check with my bank first",
		Language: "en",
	})

	rt.mu.Lock()
	if len(rt.state.Transcript) != 1 || rt.state.Transcript[0].Source != "human-narrated" {
		rt.mu.Unlock()
		t.Fatalf("narrated turn not recorded: %+v", rt.state.Transcript)
	}
	rt.mu.Unlock()

	var reply *engagement.AIResponseMessage
	for _, msg := range h.registry.sentMessages() {
		if m, ok := msg.(engagement.AIResponseMessage); ok {
			reply = &m
			break
		}
	}
	if reply == nil {
		t.Fatalf("narrated reply never sent to the counterparty")
	}
	if reply.Strategy != "operator" {
		t.Fatalf("narrated reply tagged wrong: %q", reply.Strategy)
	}
}
