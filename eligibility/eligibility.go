// Package eligibility decides whether a scope may be granted autonomous
// execution, from its historical case and action data. The computation is
// recomputed on every evaluation cycle and persisted as the latest snapshot;
// history lives in the case and action logs, not here.
package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/store"
)

const (
	// minimum resolved-case volume before autopilot can be considered
	MinVolume = 3
	// minimum human agreement rate (resolved / terminal)
	MinAgreementRate = 0.8
	// audit mirror keeps this many trailing snapshots
	auditHistoryMax = 20
)

type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// AutopilotEligibility is the latest eligibility snapshot for a scope.
type AutopilotEligibility struct {
	ScopeID string `json:"scopeId"`

	// Maturity is resolved volume relative to MinVolume, capped at 1.
	Maturity      float64 `json:"maturity"`
	ResolvedCount int     `json:"resolvedCount"`
	TerminalCount int     `json:"terminalCount"`
	// AgreementRate treats RESOLVED as "human accepted the suggestion" and
	// DISMISSED as disagreement. A human can resolve a case with a different
	// action than suggested, so this conflates "action taken" with "suggested
	// action taken"; the distinction is not recoverable from the case record.
	AgreementRate float64 `json:"agreementRate"`
	ReversalCount int     `json:"reversalCount"`

	IsEligible      bool       `json:"isEligible"`
	Confidence      Confidence `json:"confidence"`
	BlockingReasons []string   `json:"blockingReasons"`
	Overridden      bool       `json:"overridden,omitempty"`

	// EverAutopilot records whether this scope has ever run under an
	// autopilot-capable mode; used to distinguish PAUSED from ELIGIBLE.
	EverAutopilot bool `json:"everAutopilot"`

	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Engine computes eligibility snapshots. Overrides is a fixed allow-list of
// scopes which bypass the volume and agreement checks entirely; the
// zero-reversal safety check is enforced even for them.
type Engine struct {
	Logger    *slog.Logger
	Store     store.Store
	Overrides map[string]bool
}

func NewEngine(logger *slog.Logger, st store.Store, overrides []string) *Engine {
	m := make(map[string]bool, len(overrides))
	for _, s := range overrides {
		m[s] = true
	}
	return &Engine{
		Logger:    logger,
		Store:     st,
		Overrides: m,
	}
}

// Evaluate recomputes the scope's eligibility from its terminal cases and
// action log, persists the snapshot (plus a mirrored audit copy), and returns
// it. Read-only apart from those snapshot writes.
func (e *Engine) Evaluate(ctx context.Context, scopeID string) (*AutopilotEligibility, error) {
	cases, err := store.GetCases(ctx, e.Store, scopeID)
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	actions, err := store.GetActions(ctx, e.Store, scopeID)
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}

	resolved := 0
	terminal := 0
	for _, mc := range cases {
		if !mc.Status.Terminal() {
			continue
		}
		terminal++
		if mc.Status == mods.CaseResolved {
			resolved++
		}
	}

	reversals := 0
	for _, a := range actions {
		if a.Action == mods.ActionRestore {
			reversals++
		}
	}

	out := &AutopilotEligibility{
		ScopeID:       scopeID,
		ResolvedCount: resolved,
		TerminalCount: terminal,
		ReversalCount: reversals,
		Maturity:      min(1.0, float64(resolved)/float64(MinVolume)),
		EvaluatedAt:   time.Now().UTC(),
	}
	if terminal > 0 {
		out.AgreementRate = float64(resolved) / float64(terminal)
	}

	reasons := []string{}
	if reversals > 0 {
		reasons = append(reasons, fmt.Sprintf("manual reversal on record (%d)", reversals))
	}
	if e.Overrides[scopeID] {
		// override allow-list bypasses volume/agreement, never the
		// reversal veto
		out.Overridden = true
	} else {
		if resolved < MinVolume {
			reasons = append(reasons, fmt.Sprintf("insufficient volume: %d resolved cases, need %d", resolved, MinVolume))
		}
		if terminal > 0 && out.AgreementRate < MinAgreementRate {
			reasons = append(reasons, fmt.Sprintf("agreement rate %.2f below minimum %.2f", out.AgreementRate, MinAgreementRate))
		}
	}
	out.IsEligible = len(reasons) == 0
	out.BlockingReasons = reasons
	out.Confidence = confidenceTier(out)

	// carry the autopilot-history bit forward from the previous snapshot,
	// then set it if the scope currently runs an autopilot-capable mode
	prev, err := e.Latest(ctx, scopeID)
	if err != nil {
		e.Logger.Warn("reading prior eligibility snapshot", "scope", scopeID, "err", err)
	} else if prev != nil {
		out.EverAutopilot = prev.EverAutopilot
	}
	if spec, err := store.GetPolicySpec(ctx, e.Store, scopeID); err == nil && spec != nil && spec.Mode.Autopilot() {
		out.EverAutopilot = true
	}

	if err := e.persist(ctx, out); err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	return out, nil
}

// Latest returns the most recently persisted snapshot, or nil.
func (e *Engine) Latest(ctx context.Context, scopeID string) (*AutopilotEligibility, error) {
	raw, err := e.Store.Get(ctx, store.EligibilityKey(scopeID))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var out AutopilotEligibility
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parsing eligibility snapshot: %w", err)
	}
	return &out, nil
}

func (e *Engine) persist(ctx context.Context, elig *AutopilotEligibility) error {
	raw, err := json.Marshal(elig)
	if err != nil {
		return err
	}
	if err := e.Store.Set(ctx, store.EligibilityKey(elig.ScopeID), string(raw)); err != nil {
		return err
	}

	// mirrored audit copy: trailing window of snapshots
	auditKey := store.EligibilityAuditKey(elig.ScopeID)
	prevRaw, err := e.Store.Get(ctx, auditKey)
	if err != nil {
		return err
	}
	var history []AutopilotEligibility
	if prevRaw != "" {
		if err := json.Unmarshal([]byte(prevRaw), &history); err != nil {
			e.Logger.Warn("resetting corrupt eligibility audit history", "scope", elig.ScopeID, "err", err)
			history = nil
		}
	}
	history = append(history, *elig)
	if len(history) > auditHistoryMax {
		history = history[len(history)-auditHistoryMax:]
	}
	histRaw, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return e.Store.Set(ctx, auditKey, string(histRaw))
}

func confidenceTier(e *AutopilotEligibility) Confidence {
	if !e.IsEligible {
		return ConfidenceLow
	}
	if e.ResolvedCount >= 3*MinVolume && e.AgreementRate >= 0.95 {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

// Autopilot state for a scope. A simple finite-state classifier: no
// transition history is kept here beyond the EverAutopilot bit carried on the
// snapshot.
type State string

const (
	StateLocked   State = "LOCKED"
	StateEligible State = "ELIGIBLE"
	StateEnabled  State = "ENABLED"
	StatePaused   State = "PAUSED"
)

// DeriveState maps an eligibility snapshot and the policy's current execution
// mode to an autopilot state. A scope which once ran autopilot but whose
// policy no longer enables it reads as PAUSED rather than ELIGIBLE.
func DeriveState(mode policy.Mode, elig *AutopilotEligibility) State {
	if elig == nil || !elig.IsEligible {
		return StateLocked
	}
	if mode.Autopilot() {
		return StateEnabled
	}
	if elig.EverAutopilot {
		return StatePaused
	}
	return StateEligible
}
