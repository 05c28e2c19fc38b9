// Package reasoning produces qualitative explanations for moderation cases:
// a templated reasoning artifact and a simulated multi-perspective consensus
// view. Both are pure functions of (case, compiled policy) — derived, never
// the source of truth, and reproducible byte-for-byte.
//
// The "perspectives" here are a narrative device layered over a single
// classifier's scores, written for human consumption. They are not
// independent models and must never be presented as multi-agent
// deliberation.
package reasoning

import (
	"fmt"

	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
)

// Template identifies which explanation template produced an artifact. The
// tag travels with the artifact so downstream consumers (the quality
// observer) never have to infer it from headline text.
type Template string

const (
	TemplateManipulation    Template = "MANIPULATION"
	TemplateIntegrity       Template = "INTEGRITY"
	TemplateContextRequired Template = "CONTEXT_REQUIRED"
)

type ArtifactConfidence string

const (
	ArtifactConfidenceLow    ArtifactConfidence = "LOW"
	ArtifactConfidenceMedium ArtifactConfidence = "MEDIUM"
	ArtifactConfidenceHigh   ArtifactConfidence = "HIGH"
)

// Artifact is the generated explanation for one case.
type Artifact struct {
	Template   Template           `json:"template"`
	Headline   string             `json:"headline"`
	Narrative  string             `json:"narrative"`
	KeySignals []string           `json:"keySignals"`
	Confidence ArtifactConfidence `json:"confidence"`
	PolicyHash string             `json:"policyHash"`
}

// score bands used by template and consensus selection
const (
	manipulationHeavy = 0.7
	toxicityHigh      = 0.8
	contestedBand     = 0.7
	uncertainLow      = 0.5
	uncertainHigh     = 0.8
)

// Build selects a reasoning template for the case. Returns nil only for a
// nil case. Selection is priority-ordered; the context-required template is
// the always-safe low-confidence fallback.
func Build(mc *mods.ModCase, pol *policy.Compiled) *Artifact {
	if mc == nil {
		return nil
	}
	var hash string
	if pol != nil {
		hash = pol.PolicyHash
	} else {
		hash = mc.PolicyHash
	}

	lane := mc.Escalation.Lane
	s := mc.Scores

	manipulationScore := maxf(s.Scam, s.LinkRisk, s.Spam)
	if lane == mods.LanePriority || (lane == mods.LaneNormal && manipulationScore >= manipulationHeavy) {
		return &Artifact{
			Template: TemplateManipulation,
			Headline: "Signs of manipulative or deceptive intent",
			Narrative: fmt.Sprintf(
				"Content in this case scored %.2f on the strongest manipulation signal (scam %.2f, link risk %.2f, spam %.2f). "+
					"Patterns of this shape are associated with coordinated promotion, deceptive offers, or link-based lures rather than ordinary conversation.",
				manipulationScore, s.Scam, s.LinkRisk, s.Spam),
			KeySignals: signalList(s, mods.CategoryScam, mods.CategoryLinkRisk, mods.CategorySpam),
			Confidence: ArtifactConfidenceMedium,
			PolicyHash: hash,
		}
	}

	if lane == mods.LaneSensitive || (lane == mods.LaneNormal && s.Toxicity >= toxicityHigh) {
		return &Artifact{
			Template: TemplateIntegrity,
			Headline: "Potential harm to conversational integrity",
			Narrative: fmt.Sprintf(
				"Content in this case scored %.2f on toxicity. Material in this range tends to degrade the tone of a community even when no single sentence is disqualifying on its own; "+
					"reviewer judgment on local norms is the deciding input.",
				s.Toxicity),
			KeySignals: signalList(s, mods.CategoryToxicity),
			Confidence: ArtifactConfidenceMedium,
			PolicyHash: hash,
		}
	}

	return &Artifact{
		Template: TemplateContextRequired,
		Headline: "Context required before judgment",
		Narrative: fmt.Sprintf(
			"Automated signals for this case are below decisive ranges (max score %.2f). The flag may reflect borderline phrasing, an in-joke, or a pattern the classifier cannot place without local context. "+
				"A human familiar with the scope should make the call.",
			s.Max()),
		KeySignals: signalList(s),
		Confidence: ArtifactConfidenceLow,
		PolicyHash: hash,
	}
}

type ConsensusClass string

const (
	ConsensusAligned   ConsensusClass = "ALIGNED"
	ConsensusUncertain ConsensusClass = "UNCERTAIN"
	ConsensusContested ConsensusClass = "CONTESTED"
)

// Perspective is one synthetic reviewer stance in a consensus view.
type Perspective struct {
	Name   string `json:"name"`
	Stance string `json:"stance"`
}

type ConsensusAnalysis struct {
	Class        ConsensusClass `json:"class"`
	Summary      string         `json:"summary"`
	Perspectives []Perspective  `json:"perspectives"`
}

// AnalyzeConsensus classifies how contested the case would be across
// synthetic review perspectives. Pure and deterministic.
func AnalyzeConsensus(mc *mods.ModCase) ConsensusAnalysis {
	if mc == nil {
		return ConsensusAnalysis{Class: ConsensusAligned, Summary: "no case to analyze"}
	}
	lane := mc.Escalation.Lane
	s := mc.Scores

	if lane == mods.LaneSensitive || (s.Toxicity > contestedBand && s.Spam > contestedBand) {
		return ConsensusAnalysis{
			Class:   ConsensusContested,
			Summary: "Simulated perspectives disagree: the harm signal is strong but claims competing interpretations.",
			Perspectives: []Perspective{
				{Name: "safety", Stance: fmt.Sprintf("Toxicity %.2f warrants intervention before more members see this.", s.Toxicity)},
				{Name: "community-norms", Stance: "Heated exchanges inside established community norms are not automatically violations."},
				{Name: "free-expression", Stance: "Err toward leaving content visible; a wrongful hold costs trust that moderation cannot refund."},
			},
		}
	}

	if lane == mods.LanePriority || anyInBand(s, uncertainLow, uncertainHigh) {
		return ConsensusAnalysis{
			Class:   ConsensusUncertain,
			Summary: "Signals sit in the ambiguous band; simulated perspectives lean different directions without strong conviction.",
			Perspectives: []Perspective{
				{Name: "safety", Stance: "Borderline scores still justify a human look, given the escalation lane."},
				{Name: "community-norms", Stance: "Scores in this range match plenty of unremarkable content."},
			},
		}
	}

	return ConsensusAnalysis{
		Class:   ConsensusAligned,
		Summary: "Simulated perspectives agree on the reading of this case.",
		Perspectives: []Perspective{
			{Name: "safety", Stance: "Signals are consistent and unambiguous."},
		},
	}
}

func signalList(s mods.CategoryScores, cats ...mods.Category) []string {
	if len(cats) == 0 {
		cats = mods.AllCategories()
	}
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, fmt.Sprintf("%s=%.2f", c, s.Get(c)))
	}
	return out
}

func maxf(vals ...float64) float64 {
	out := 0.0
	for _, v := range vals {
		if v > out {
			out = v
		}
	}
	return out
}

func anyInBand(s mods.CategoryScores, lo, hi float64) bool {
	for _, c := range mods.AllCategories() {
		v := s.Get(c)
		if v > lo && v < hi {
			return true
		}
	}
	return false
}
