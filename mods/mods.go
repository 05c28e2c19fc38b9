// Package mods defines the shared moderation data model: risk categories and
// score vectors, moderation cases and their lifecycle, the append-only action
// log, and escalation decisions. Every other package depends on these types,
// so this package depends on nothing.
package mods

import (
	"time"
)

// Risk categories which the classifier scores and policies configure. The set
// is fixed; policies can only enable or disable members of it.
type Category string

const (
	CategoryToxicity Category = "TOXICITY"
	CategorySpam     Category = "SPAM"
	CategoryScam     Category = "SCAM"
	CategoryLinkRisk Category = "LINK_RISK"
)

// AllCategories returns the fixed category set, in canonical order.
func AllCategories() []Category {
	return []Category{CategoryLinkRisk, CategoryScam, CategorySpam, CategoryToxicity}
}

func ValidCategory(c Category) bool {
	switch c {
	case CategoryToxicity, CategorySpam, CategoryScam, CategoryLinkRisk:
		return true
	}
	return false
}

// Per-category risk scores, each clamped to [0,1]. The zero value (all zero
// scores) is the fail-open substitute when classification fails.
type CategoryScores struct {
	Spam     float64 `json:"spam"`
	Toxicity float64 `json:"toxicity"`
	Scam     float64 `json:"scam"`
	LinkRisk float64 `json:"linkRisk"`
}

func (s CategoryScores) Get(c Category) float64 {
	switch c {
	case CategorySpam:
		return s.Spam
	case CategoryToxicity:
		return s.Toxicity
	case CategoryScam:
		return s.Scam
	case CategoryLinkRisk:
		return s.LinkRisk
	}
	return 0
}

func (s *CategoryScores) Set(c Category, v float64) {
	switch c {
	case CategorySpam:
		s.Spam = v
	case CategoryToxicity:
		s.Toxicity = v
	case CategoryScam:
		s.Scam = v
	case CategoryLinkRisk:
		s.LinkRisk = v
	}
}

// Clamp forces every score into [0,1]. Classifier responses are never trusted
// to be in range.
func (s *CategoryScores) Clamp() {
	for _, c := range AllCategories() {
		v := s.Get(c)
		if v < 0 {
			s.Set(c, 0)
		} else if v > 1 {
			s.Set(c, 1)
		}
	}
}

// Max returns the highest score across all categories.
func (s CategoryScores) Max() float64 {
	out := 0.0
	for _, c := range AllCategories() {
		if v := s.Get(c); v > out {
			out = v
		}
	}
	return out
}

// Suggested (or executed) moderation action, ordered by severity.
type ActionKind string

const (
	ActionTag  ActionKind = "TAG"
	ActionNote ActionKind = "NOTE"
	ActionHold ActionKind = "HOLD"
)

// Severity rank for comparing suggestions: HOLD > NOTE > TAG.
func (a ActionKind) Rank() int {
	switch a {
	case ActionHold:
		return 3
	case ActionNote:
		return 2
	case ActionTag:
		return 1
	}
	return 0
}

type CaseStatus string

const (
	CaseOpen      CaseStatus = "OPEN"
	CaseResolved  CaseStatus = "RESOLVED"
	CaseDismissed CaseStatus = "DISMISSED"
)

// Terminal reports whether a case has received its human verdict.
func (s CaseStatus) Terminal() bool {
	return s == CaseResolved || s == CaseDismissed
}

type DecisionSource string

const (
	SourceAI    DecisionSource = "AI"
	SourceHuman DecisionSource = "HUMAN"
)

// Actor identities for the action log. ActorSovereignAgent is reserved for a
// human-activated execution path; the autonomous executor is constitutionally
// restricted to signing as ActorAIMod.
type Actor string

const (
	ActorAIMod          Actor = "AI_MOD"
	ActorCreator        Actor = "CREATOR"
	ActorSovereignAgent Actor = "SOVEREIGN_AGENT"
)

// Review lane routing for a flagged case. Legal is a stub lane: it can be
// routed to but carries no further behavior in this engine.
type Lane string

const (
	LaneNormal    Lane = "NORMAL"
	LanePriority  Lane = "PRIORITY"
	LaneSensitive Lane = "SENSITIVE"
	LaneLegal     Lane = "LEGAL"
)

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// EscalationDecision routes a case toward a review urgency. Always present on
// a case once escalation has run; defaults to NORMAL/LOW on internal failure.
type EscalationDecision struct {
	Lane      Lane    `json:"lane"`
	Urgency   Urgency `json:"urgency"`
	Rationale string  `json:"rationale"`
}

// DefaultEscalation is the fail-open decision.
func DefaultEscalation() EscalationDecision {
	return EscalationDecision{
		Lane:      LaneNormal,
		Urgency:   UrgencyLow,
		Rationale: "no escalation rule matched",
	}
}

// ModCase is a single flagged content item awaiting or having received a
// moderation verdict. At most one open case may exist per content id. Cases
// are never deleted; only human action moves them to a terminal status.
type ModCase struct {
	ID          string     `json:"id"`
	ScopeID     string     `json:"scopeId"`
	ContentID   string     `json:"contentId"`
	ContentType string     `json:"contentType"`
	AuthorID    string     `json:"authorId"`
	Status      CaseStatus `json:"status"`

	SuggestedAction  ActionKind         `json:"suggestedAction"`
	TriggerCategory  Category           `json:"triggerCategory"`
	Scores           CategoryScores     `json:"scores"`
	Rationale        string             `json:"rationale"`
	EvidenceSnippets []string           `json:"evidenceSnippets,omitempty"`
	Escalation       EscalationDecision `json:"escalation"`

	// Hash (and short display prefix) of the compiled policy the content was
	// judged under.
	PolicyHash    string `json:"policyHash"`
	PolicyVersion string `json:"policyVersion"`

	Source DecisionSource `json:"source"`
	// AutoExecuted marks cases whose hold was already applied by the
	// autonomous executor before any human review.
	AutoExecuted bool       `json:"autoExecuted,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

// ModAction is one append-only audit log entry referencing a case.
type ModAction struct {
	ID        string     `json:"id"`
	ScopeID   string     `json:"scopeId"`
	CaseID    string     `json:"caseId"`
	Action    ActionKind `json:"action"`
	Actor     Actor      `json:"actor"`
	Rationale string     `json:"rationale"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Audit-log-only action kinds. RESTORE records content restored by a human
// after an automated hold; any reversal permanently vetoes autopilot
// eligibility for the scope. DISMISS records dismissal of a suggestion that
// was never executed.
const (
	ActionRestore ActionKind = "RESTORE"
	ActionDismiss ActionKind = "DISMISS"
)
