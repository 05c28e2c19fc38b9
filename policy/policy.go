// Package policy turns declarative, human-authored moderation policies into
// deterministic executable artifacts. Compilation is a pure function: the same
// normalized spec always produces the same policy hash, and any internal fault
// degrades to a hard-coded safe default rather than an error.
package policy

import (
	"time"

	"github.com/commons-social/warden/mods"
)

type Severity string

const (
	SeverityRelaxed  Severity = "RELAXED"
	SeverityStandard Severity = "STANDARD"
	SeverityStrict   Severity = "STRICT"
)

// Execution modes, in increasing order of unsupervised authority.
type Mode string

const (
	ModeOff       Mode = "OFF"
	ModeAssist    Mode = "ASSIST"
	ModeAutopilot Mode = "AUTOPILOT"
	ModeSovereign Mode = "SOVEREIGN"
)

// Autopilot reports whether the mode authorizes automated execution ahead of
// human review.
func (m Mode) Autopilot() bool {
	return m == ModeAutopilot || m == ModeSovereign
}

// Routing class for a category: whether a triggered category may be executed
// automatically, or only surfaced for human review.
type Route string

const (
	RouteHold       Route = "HOLD"
	RouteAssistOnly Route = "ASSIST_ONLY"
)

// Spec is the raw, scope-owner-authored policy. It is persisted as-is (the
// precursor) but is never trusted for execution-time decisions: every read
// path compiles it first.
type Spec struct {
	Severity      Severity        `json:"severity"`
	Categories    []mods.Category `json:"categories"`
	AllowPatterns []string        `json:"allowPatterns,omitempty"`
	BlockPatterns []string        `json:"blockPatterns,omitempty"`
	Mode          Mode            `json:"mode"`
}

// Action thresholds for one category, each in [0,1], ordered
// Tag <= Notify <= Hold. Disabled categories carry thresholds above the valid
// score range, so no score can reach them.
type Thresholds struct {
	Tag    float64 `json:"tag"`
	Notify float64 `json:"notify"`
	Hold   float64 `json:"hold"`
}

// Compiled is the immutable executable form of a policy. Produced on every
// policy read, replaced wholesale on update, never partially mutated.
type Compiled struct {
	ScopeID    string                       `json:"scopeId"`
	Mode       Mode                         `json:"mode"`
	Severity   Severity                     `json:"severity"`
	Thresholds map[mods.Category]Thresholds `json:"thresholds"`
	Routes     map[mods.Category]Route      `json:"routes"`

	// Normalized (sorted, trimmed, lowercased) pattern lists, plus their
	// compiled literal matchers. Matchers are excluded from JSON.
	AllowPatterns []string `json:"allowPatterns"`
	BlockPatterns []string `json:"blockPatterns"`
	Allow         *Matcher `json:"-"`
	Block         *Matcher `json:"-"`

	// Stable content hash over the logic-relevant fields only. The compile
	// timestamp is excluded, so recompiling an unchanged spec yields the same
	// hash.
	PolicyHash string    `json:"policyHash"`
	CompiledAt time.Time `json:"compiledAt"`
}

// Enabled reports whether the category participates in this policy.
func (c *Compiled) Enabled(cat mods.Category) bool {
	t, ok := c.Thresholds[cat]
	return ok && t.Hold <= 1.0
}

// VersionPrefix is the short policy-hash prefix shown in queue UIs.
func (c *Compiled) VersionPrefix() string {
	if len(c.PolicyHash) < 12 {
		return c.PolicyHash
	}
	return c.PolicyHash[:12]
}
