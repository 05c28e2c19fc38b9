package engine

import (
	"fmt"
	"log/slog"

	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
)

// Hard escalation cutoffs, checked in order; first match wins. These sit
// above any per-policy threshold: a near-certain scam escalates no matter how
// relaxed the scope's policy is.
const (
	escalateScamScore     = 0.85
	escalateLinkRiskScore = 0.90
	escalateToxicityScore = 0.95
	// a policy counts as strict for margin-escalation purposes below this
	// hold threshold
	strictHoldThreshold = 0.8
	strictExceedMargin  = 0.05
)

// Escalate routes a flagged case to a review lane. Pure, total, fail-open:
// any internal fault yields the NORMAL/LOW default.
func Escalate(pol *policy.Compiled, trigger mods.Category, scores mods.CategoryScores) (out mods.EscalationDecision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("escalation fault, using default decision", "err", r)
			out = mods.DefaultEscalation()
		}
	}()

	if scores.Scam > escalateScamScore {
		return mods.EscalationDecision{
			Lane:      mods.LanePriority,
			Urgency:   mods.UrgencyHigh,
			Rationale: fmt.Sprintf("scam score %.2f exceeds hard cutoff %.2f", scores.Scam, escalateScamScore),
		}
	}
	if scores.LinkRisk > escalateLinkRiskScore {
		return mods.EscalationDecision{
			Lane:      mods.LanePriority,
			Urgency:   mods.UrgencyHigh,
			Rationale: fmt.Sprintf("link risk score %.2f exceeds hard cutoff %.2f", scores.LinkRisk, escalateLinkRiskScore),
		}
	}
	if scores.Toxicity > escalateToxicityScore {
		return mods.EscalationDecision{
			Lane:      mods.LaneSensitive,
			Urgency:   mods.UrgencyHigh,
			Rationale: fmt.Sprintf("toxicity score %.2f exceeds hard cutoff %.2f", scores.Toxicity, escalateToxicityScore),
		}
	}

	if pol != nil {
		hold := pol.Thresholds[trigger].Hold
		score := scores.Get(trigger)
		if hold < strictHoldThreshold && score > hold+strictExceedMargin {
			return mods.EscalationDecision{
				Lane:      mods.LanePriority,
				Urgency:   mods.UrgencyMedium,
				Rationale: fmt.Sprintf("score %.2f clears strict hold threshold %.2f by more than %.2f", score, hold, strictExceedMargin),
			}
		}
	}

	return mods.DefaultEscalation()
}
