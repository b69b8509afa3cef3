package engagementService

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	contextPkg "github.com/demonstrikkk/HoneyCatcher/pkg/context"
	"github.com/sirupsen/logrus"
)

// PipelineResult is what one intelligence pass over an utterance produced.
// NewEntities holds only items not previously seen in the session.
type PipelineResult struct {
	NewEntities []entity.IntelligenceEntity
	ThreatLevel float64
	Tactics     []string
	URLsToScan  []string
}

var (
	phonePattern   = regexp.MustCompile(`\+?\d[\d\s\-]{8,13}\d`)
	accountPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	upiPattern     = regexp.MustCompile(`\b[a-zA-Z0-9._\-]{2,}@[a-zA-Z]{2,}\b`)
	urlPattern     = regexp.MustCompile(`(?:https?://|www\.)[^\s<>"']+`)
)

// threatSignals maps a tactic tag to its trigger keywords and weight.
type threatSignal struct {
	tactic   string
	weight   float64
	keywords []string
}

var threatSignals = []threatSignal{
	{
		tactic:   "urgency",
		weight:   0.15,
		keywords: []string{"urgent", "immediately", "right now", "act now", "hurry", "last chance", "expires today"},
	},
	{
		tactic:   "authority_impersonation",
		weight:   0.25,
		keywords: []string{"police", "arrest", "officer", "government", "income tax", "irs", "customs", "court", "legal action"},
	},
	{
		tactic:   "payment_pressure",
		weight:   0.25,
		keywords: []string{"gift card", "wire transfer", "western union", "bitcoin", "crypto", "send money", "transfer now", "processing fee"},
	},
	{
		tactic:   "credential_harvesting",
		weight:   0.3,
		keywords: []string{"otp", "one time password", "password", "pin number", "cvv", "verification code", "account number"},
	},
	{
		tactic:   "intimidation",
		weight:   0.2,
		keywords: []string{"suspend", "blocked", "frozen", "lawsuit", "warrant", "deported", "jail"},
	},
}

// processIntelligence runs the deterministic extractors and, best-effort,
// the structured extraction collaborator, merges both into the session's
// entity set, and advances the threat level monotonically.
func (s *engagementService) processIntelligence(rt *sessionRuntime, text string, speaker entity.Speaker) (*PipelineResult, error) {
	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return nil, engagement.ErrSessionClosed
	}
	sessionID := rt.state.SessionID
	rt.mu.Unlock()

	candidates := extractPatternEntities(text)

	extractCtx, cancel := context.WithTimeout(rt.ctx, 30*time.Second)
	defer cancel()

	if extracted, err := s.reasoner.ExtractIntelligence(extractCtx, text); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Structured extraction unavailable, using pattern results only")
	} else {
		candidates = append(candidates, mapExtractedData(extracted)...)
	}

	matchedTactics, newScore, urgencyHit := scoreThreat(text)

	rt.mu.Lock()
	if rt.state.Status == entity.StatusEnded {
		rt.mu.Unlock()
		return nil, engagement.ErrSessionClosed
	}

	now := time.Now()
	var newEntities []entity.IntelligenceEntity
	var urlsToScan []string

	for _, candidate := range candidates {
		key := dedupeKey(candidate.Kind, candidate.Value)
		if rt.seen[key] {
			continue
		}
		rt.seen[key] = true
		candidate.FirstSeenAt = now
		newEntities = append(newEntities, candidate)
		rt.state.Entities = append(rt.state.Entities, candidate)

		if candidate.Kind == entity.EntityURL && !rt.scanned[candidate.Value] {
			rt.scanned[candidate.Value] = true
			urlsToScan = append(urlsToScan, candidate.Value)
		}
	}

	for _, tactic := range matchedTactics {
		if !containsString(rt.state.Tactics, tactic) {
			rt.state.Tactics = append(rt.state.Tactics, tactic)
		}
	}

	if urgencyHit {
		if rt.urgency > 0 {
			bonus := 0.1 * float64(rt.urgency)
			if bonus > 0.3 {
				bonus = 0.3
			}
			newScore += bonus
		}
		rt.urgency++
	}
	if newScore > 1.0 {
		newScore = 1.0
	}
	if newScore > rt.state.ThreatLevel {
		rt.state.ThreatLevel = newScore
	}

	result := &PipelineResult{
		NewEntities: newEntities,
		ThreatLevel: rt.state.ThreatLevel,
		Tactics:     append([]string(nil), rt.state.Tactics...),
		URLsToScan:  urlsToScan,
	}
	rt.mu.Unlock()

	s.persistEntities(sessionID, newEntities)

	return result, nil
}

// scanURLs runs the reputation collaborator over newly seen URLs and pushes
// each verdict to connected parties. Failures skip the batch; the URLs stay
// marked as scanned so they are not retried on every utterance.
func (s *engagementService) scanURLs(rt *sessionRuntime, urls []string) {
	if len(urls) == 0 {
		return
	}

	rt.mu.Lock()
	sessionID := rt.state.SessionID
	rt.mu.Unlock()

	scanCtx, cancel := context.WithTimeout(rt.ctx, 30*time.Second)
	defer cancel()

	results, err := s.scanner.ScanURLs(scanCtx, urls)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"url_count":  len(urls),
			"error":      err.Error(),
		}).Warn("URL reputation scan failed")
		return
	}

	client, repoErr := s.repo.NewClient(false)

	for _, result := range results {
		scan := entity.URLScanResult{
			URL:       result.URL,
			IsSafe:    result.IsSafe,
			RiskScore: result.RiskScore,
			Findings:  result.Findings,
		}

		rt.mu.Lock()
		if rt.state.Status == entity.StatusEnded {
			rt.mu.Unlock()
			return
		}
		rt.state.URLScans = append(rt.state.URLScans, scan)
		rt.mu.Unlock()

		if repoErr == nil {
			if err := client.Transcript.AppendURLScan(scanCtx, sessionID, scan); err != nil {
				s.log.WithFields(logrus.Fields{
					"session_id": sessionID,
					"url":        scan.URL,
					"error":      err.Error(),
				}).Warn("Failed to persist URL scan")
			}
		}

		s.registry.Broadcast(sessionID, engagement.URLScanResultMessage{
			Type: "url_scan_result",
			Data: scan,
		})
	}
}

func extractPatternEntities(text string) []entity.IntelligenceEntity {
	var items []entity.IntelligenceEntity

	for _, match := range urlPattern.FindAllString(text, -1) {
		items = append(items, entity.IntelligenceEntity{Kind: entity.EntityURL, Value: strings.TrimRight(match, ".,;)")})
	}

	// UPI ids look like emails; match them before bare digit runs so an id
	// containing an account-length number is classified once.
	for _, match := range upiPattern.FindAllString(text, -1) {
		items = append(items, entity.IntelligenceEntity{Kind: entity.EntityUPIID, Value: match})
	}

	for _, match := range phonePattern.FindAllString(text, -1) {
		digits := normalizeDigits(match)
		if len(digits) >= 10 && len(digits) <= 15 {
			items = append(items, entity.IntelligenceEntity{Kind: entity.EntityPhoneNumber, Value: match})
		}
	}

	for _, match := range accountPattern.FindAllString(text, -1) {
		items = append(items, entity.IntelligenceEntity{Kind: entity.EntityBankAccount, Value: match})
	}

	return items
}

func mapExtractedData(data map[string][]string) []entity.IntelligenceEntity {
	kindByKey := map[string]entity.EntityKind{
		"bank_accounts":      entity.EntityBankAccount,
		"upi_ids":            entity.EntityUPIID,
		"phone_numbers":      entity.EntityPhoneNumber,
		"urls":               entity.EntityURL,
		"scam_keywords":      entity.EntityKeyword,
		"behavioral_tactics": entity.EntityTactic,
	}

	var items []entity.IntelligenceEntity
	for key, values := range data {
		kind, ok := kindByKey[key]
		if !ok {
			continue
		}
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			items = append(items, entity.IntelligenceEntity{Kind: kind, Value: value})
		}
	}

	return items
}

func scoreThreat(text string) (tactics []string, score float64, urgencyHit bool) {
	lowered := strings.ToLower(text)

	for _, signal := range threatSignals {
		for _, keyword := range signal.keywords {
			if strings.Contains(lowered, keyword) {
				tactics = append(tactics, signal.tactic)
				score += signal.weight
				if signal.tactic == "urgency" {
					urgencyHit = true
				}
				break
			}
		}
	}

	return tactics, score, urgencyHit
}

// dedupeKey normalizes a value for set membership. Numeric kinds compare on
// digits only so "98765-43210" and "98765 43210" are one entity.
func dedupeKey(kind entity.EntityKind, value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if kind == entity.EntityPhoneNumber || kind == entity.EntityBankAccount {
		normalized = normalizeDigits(normalized)
	}
	return string(kind) + "|" + normalized
}

func normalizeDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func (s *engagementService) persistEntities(sessionID string, entities []entity.IntelligenceEntity) {
	if len(entities) == 0 {
		return
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(contextPkg.ForSession(sessionID), 10*time.Second)
	defer cancel()

	for _, item := range entities {
		if err := client.Transcript.AppendEntity(ctx, sessionID, item); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"kind":       item.Kind,
				"error":      err.Error(),
			}).Warn("Failed to persist intelligence entity")
		}
	}
}
