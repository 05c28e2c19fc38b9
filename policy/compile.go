package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/commons-social/warden/mods"
)

// Threshold value assigned to disabled categories. Above every valid score,
// so the category can never trigger without branching elsewhere.
const disabledThreshold = 1.1

// Fixed severity matrix. Strictly ordered: RELAXED requires higher scores to
// trigger action than STANDARD, which requires higher scores than STRICT.
var severityMatrix = map[Severity]Thresholds{
	SeverityRelaxed:  {Tag: 0.85, Notify: 0.92, Hold: 0.97},
	SeverityStandard: {Tag: 0.70, Notify: 0.80, Hold: 0.90},
	SeverityStrict:   {Tag: 0.55, Notify: 0.65, Hold: 0.75},
}

// Compile derives the executable policy for a scope. Total function: it never
// returns an error. Any internal fault (including panics) produces the safe
// default policy instead, so a malformed spec can degrade moderation but can
// never break it.
func Compile(scopeID string, spec Spec) (out *Compiled) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("policy compile fault, substituting safe default", "scope", scopeID, "err", r)
			out = SafeDefault(scopeID)
		}
	}()

	c, err := compile(scopeID, spec)
	if err != nil {
		slog.Warn("policy compile failed, substituting safe default", "scope", scopeID, "err", err)
		return SafeDefault(scopeID)
	}
	return c
}

// SafeDefault is the hard-coded fallback: all categories at STANDARD
// severity, mode ASSIST, routing ASSIST_ONLY, no patterns.
func SafeDefault(scopeID string) *Compiled {
	c, err := compile(scopeID, Spec{
		Severity:   SeverityStandard,
		Categories: mods.AllCategories(),
		Mode:       ModeAssist,
	})
	if err != nil {
		// unreachable: the default spec is statically valid
		panic(fmt.Sprintf("compiling safe default policy: %v", err))
	}
	return c
}

func compile(scopeID string, spec Spec) (*Compiled, error) {
	sev := spec.Severity
	base, ok := severityMatrix[sev]
	if !ok {
		sev = SeverityStandard
		base = severityMatrix[sev]
	}

	mode := spec.Mode
	switch mode {
	case ModeOff, ModeAssist, ModeAutopilot, ModeSovereign:
	case "":
		mode = ModeAssist
	default:
		return nil, fmt.Errorf("unknown execution mode: %q", spec.Mode)
	}

	enabled := normalizeCategories(spec.Categories)
	allowPats := normalizePatterns(spec.AllowPatterns)
	blockPats := normalizePatterns(spec.BlockPatterns)

	allow, err := compileMatcher(allowPats)
	if err != nil {
		return nil, fmt.Errorf("compiling allow patterns: %w", err)
	}
	block, err := compileMatcher(blockPats)
	if err != nil {
		return nil, fmt.Errorf("compiling block patterns: %w", err)
	}

	thresholds := make(map[mods.Category]Thresholds, 4)
	routes := make(map[mods.Category]Route, 4)
	for _, cat := range mods.AllCategories() {
		if enabled[cat] {
			thresholds[cat] = base
			if mode.Autopilot() {
				routes[cat] = RouteHold
			} else {
				routes[cat] = RouteAssistOnly
			}
		} else {
			thresholds[cat] = Thresholds{Tag: disabledThreshold, Notify: disabledThreshold, Hold: disabledThreshold}
			routes[cat] = RouteAssistOnly
		}
	}

	c := &Compiled{
		ScopeID:       scopeID,
		Mode:          mode,
		Severity:      sev,
		Thresholds:    thresholds,
		Routes:        routes,
		AllowPatterns: allowPats,
		BlockPatterns: blockPats,
		Allow:         allow,
		Block:         block,
		CompiledAt:    time.Now().UTC(),
	}
	c.PolicyHash = hashPolicy(c)
	return c, nil
}

func normalizeCategories(cats []mods.Category) map[mods.Category]bool {
	out := make(map[mods.Category]bool, len(cats))
	for _, c := range cats {
		c = mods.Category(strings.ToUpper(strings.TrimSpace(string(c))))
		if mods.ValidCategory(c) {
			out[c] = true
		}
	}
	return out
}

func normalizePatterns(pats []string) []string {
	seen := make(map[string]bool, len(pats))
	out := []string{}
	for _, p := range pats {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// hashPolicy computes the stable content hash over logic-relevant fields:
// scope id, mode, per-category thresholds and routes, and normalized
// patterns. CompiledAt is deliberately excluded. Categories are written in
// canonical order and patterns are pre-sorted, so field ordering can never
// perturb the digest.
func hashPolicy(c *Compiled) string {
	h := sha256.New()
	fmt.Fprintf(h, "scope=%s\nmode=%s\n", c.ScopeID, c.Mode)
	for _, cat := range mods.AllCategories() {
		t := c.Thresholds[cat]
		fmt.Fprintf(h, "cat=%s tag=%.4f notify=%.4f hold=%.4f route=%s\n", cat, t.Tag, t.Notify, t.Hold, c.Routes[cat])
	}
	writePatterns(h, "allow", c.AllowPatterns)
	writePatterns(h, "block", c.BlockPatterns)
	return hex.EncodeToString(h.Sum(nil))
}

func writePatterns(w io.Writer, kind string, pats []string) {
	for _, p := range pats {
		fmt.Fprintf(w, "%s=%s\n", kind, p)
	}
}
