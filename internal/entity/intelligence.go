package entity

import "time"

type EntityKind string

const (
	EntityBankAccount EntityKind = "bank_account"
	EntityUPIID       EntityKind = "upi_id"
	EntityPhoneNumber EntityKind = "phone_number"
	EntityURL         EntityKind = "url"
	EntityKeyword     EntityKind = "keyword"
	EntityTactic      EntityKind = "tactic"
)

// IntelligenceEntity is one extracted item. Equality is (Kind, normalized Value).
type IntelligenceEntity struct {
	Kind        EntityKind `json:"kind" db:"kind"`
	Value       string     `json:"value" db:"value"`
	FirstSeenAt time.Time  `json:"first_seen_at" db:"first_seen_at"`
}

// URLScanResult is appended to a session and never mutated after creation.
type URLScanResult struct {
	URL       string   `json:"url" db:"url"`
	IsSafe    bool     `json:"is_safe" db:"is_safe"`
	RiskScore float64  `json:"risk_score" db:"risk_score"`
	Findings  []string `json:"findings"`
}
