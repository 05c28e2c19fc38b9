// Package classifier defines the contract with the external content
// classifier: UTF-8 text in (optionally prefixed with scope charter context),
// per-category risk scores plus a rationale and evidence snippets out. This
// engine never classifies content itself.
package classifier

import (
	"context"

	"github.com/commons-social/warden/mods"
)

// Verdict is one classification response. Scores are clamped by the caller;
// the service is not trusted to stay in [0,1].
type Verdict struct {
	Scores    mods.CategoryScores `json:"scores"`
	Rationale string              `json:"rationale"`
	Evidence  []string            `json:"evidence,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) (*Verdict, error)
}

// FailOpenVerdict is the substitute when classification fails: all-zero
// scores and a generic rationale. The evaluation pipeline errs toward not
// blocking content over crashing.
func FailOpenVerdict() *Verdict {
	return &Verdict{
		Rationale: "classification unavailable; no automated risk assessment",
	}
}

// maximum number of evidence snippets carried onto a case
const MaxEvidence = 3

// TrimEvidence caps the evidence list for case storage.
func TrimEvidence(evidence []string) []string {
	if len(evidence) <= MaxEvidence {
		return evidence
	}
	return evidence[:MaxEvidence]
}
