package engagementService

import (
	"testing"

	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
)

func TestThreatLevelNeverDecreases(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-threat", entity.ModeAITakeover)

	texts := []string{
		"you must pay immediately or the police will arrest you",
		"hello, how is the weather today",
		"share your otp and cvv right now",
		"nothing suspicious here",
	}

	previous := 0.0
	for _, text := range texts {
		result, err := h.svc.processIntelligence(rt, text, entity.SpeakerScammer)
		if err != nil {
			t.Fatalf("processIntelligence failed: %v", err)
		}
		if result.ThreatLevel < previous {
			t.Fatalf("threat level decreased: %f -> %f after %q", previous, result.ThreatLevel, text)
		}
		if result.ThreatLevel > 1.0 {
			t.Fatalf("threat level exceeded 1.0: %f", result.ThreatLevel)
		}
		previous = result.ThreatLevel
	}

	if previous == 0 {
		t.Fatalf("threatening text produced zero threat level")
	}
}

func TestRepeatedEntityNotReturnedTwice(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-dedupe", entity.ModeAITakeover)

	first, err := h.svc.processIntelligence(rt, "send the money to scammer@upi today", entity.SpeakerScammer)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	found := false
	for _, item := range first.NewEntities {
		if item.Kind == entity.EntityUPIID && item.Value == "scammer@upi" {
			found = true
		}
	}
	if !found {
		t.Fatalf("UPI id not extracted on first sighting: %+v", first.NewEntities)
	}

	second, err := h.svc.processIntelligence(rt, "remember, pay scammer@upi", entity.SpeakerScammer)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	for _, item := range second.NewEntities {
		if item.Kind == entity.EntityUPIID && item.Value == "scammer@upi" {
			t.Fatalf("already-seen UPI id returned again as new")
		}
	}
}

func TestEntitySetHasNoDuplicates(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-unique", entity.ModeAITakeover)

	h.svc.processIntelligence(rt, "call me at 98765 43210", entity.SpeakerScammer)
	h.svc.processIntelligence(rt, "my number is 9876543210", entity.SpeakerScammer)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	seen := make(map[string]bool)
	for _, item := range rt.state.Entities {
		key := dedupeKey(item.Kind, item.Value)
		if seen[key] {
			t.Fatalf("duplicate entity in session set: %s %q", item.Kind, item.Value)
		}
		seen[key] = true
	}
}

func TestURLScannedOnlyOnce(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-urls", entity.ModeAITakeover)

	first, _ := h.svc.processIntelligence(rt, "click https://evil.example/pay now", entity.SpeakerScammer)
	if len(first.URLsToScan) != 1 {
		t.Fatalf("expected one URL to scan, got %v", first.URLsToScan)
	}

	second, _ := h.svc.processIntelligence(rt, "did you open https://evil.example/pay yet", entity.SpeakerScammer)
	if len(second.URLsToScan) != 0 {
		t.Fatalf("already-scanned URL queued again: %v", second.URLsToScan)
	}
}

func TestExtractionFailureDegradesToPatterns(t *testing.T) {
	h := newHarness()
	h.reasoner.extracted = nil
	rt := h.activeSession("s-degraded", entity.ModeAITakeover)

	result, err := h.svc.processIntelligence(rt, "pay to victim@okbank please", entity.SpeakerScammer)
	if err != nil {
		t.Fatalf("pipeline aborted on collaborator failure: %v", err)
	}
	if len(result.NewEntities) == 0 {
		t.Fatalf("pattern extraction produced nothing when collaborator failed")
	}
}

func TestStructuredExtractionMerged(t *testing.T) {
	h := newHarness()
	h.reasoner.extracted = map[string][]string{
		"bank_accounts":      {"123456789012"},
		"scam_keywords":      {"refund fee"},
		"behavioral_tactics": {"refund_scam"},
	}
	rt := h.activeSession("s-merge", entity.ModeAITakeover)

	result, err := h.svc.processIntelligence(rt, "transfer the refund fee", entity.SpeakerScammer)
	if err != nil {
		t.Fatalf("processIntelligence failed: %v", err)
	}

	var gotAccount, gotKeyword, gotTactic bool
	for _, item := range result.NewEntities {
		if item.Kind == entity.EntityBankAccount && item.Value == "123456789012" {
			gotAccount = true
		}
		if item.Kind == entity.EntityKeyword && item.Value == "refund fee" {
			gotKeyword = true
		}
		if item.Kind == entity.EntityTactic && item.Value == "refund_scam" {
			gotTactic = true
		}
	}
	if !gotAccount || !gotKeyword || !gotTactic {
		t.Fatalf("structured extraction results not merged: %+v", result.NewEntities)
	}
}

func TestRepeatedUrgencyCompounds(t *testing.T) {
	h := newHarness()
	rt := h.activeSession("s-urgency", entity.ModeAITakeover)

	first, _ := h.svc.processIntelligence(rt, "act now, this is urgent", entity.SpeakerScammer)
	second, _ := h.svc.processIntelligence(rt, "hurry, do it immediately", entity.SpeakerScammer)

	if second.ThreatLevel <= first.ThreatLevel {
		t.Fatalf("repeated urgency did not escalate: %f then %f", first.ThreatLevel, second.ThreatLevel)
	}
}
