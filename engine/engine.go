// Package engine orchestrates moderation: it evaluates incoming content
// against compiled policies, escalates flagged cases, runs the gated
// autonomous executor, and observes explanation quality after human verdicts.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/commons-social/warden/cachestore"
	"github.com/commons-social/warden/classifier"
	"github.com/commons-social/warden/contentrepo"
	"github.com/commons-social/warden/countstore"
	"github.com/commons-social/warden/eligibility"
	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/store"
)

// Engine is the runtime for evaluating content and recording moderation
// decisions. All dependencies are injected; none may be nil except Autopilot
// (nil disables autonomous execution outright).
type Engine struct {
	Logger      *slog.Logger
	Store       store.Store
	Cache       cachestore.CacheStore
	Classifier  classifier.Classifier
	ContentRepo contentrepo.ContentRepo
	Counters    countstore.CountStore
	Eligibility *eligibility.Engine
	Autopilot   *Autopilot

	// Bound on the external classifier call. Expiry is treated identically to
	// a classification failure (fail-open). Zero means DefaultClassifierTimeout.
	ClassifierTimeout time.Duration
}

const DefaultClassifierTimeout = 10 * time.Second

// LoadPolicy reads the scope's raw policy spec and compiles it. Compilation
// happens on every read; the compiled form is never cached across its hash.
// A scope with no authored policy gets the safe default.
func (eng *Engine) LoadPolicy(ctx context.Context, scopeID string) (*policy.Compiled, error) {
	spec, err := store.GetPolicySpec(ctx, eng.Store, scopeID)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return policy.SafeDefault(scopeID), nil
	}
	return policy.Compile(scopeID, *spec), nil
}

// UpdatePolicy is the policy authoring surface. The spec is validated
// strictly here (authoring rejects garbage; only execution-time reads degrade
// to the safe default), persisted raw, and returned in compiled form.
func (eng *Engine) UpdatePolicy(ctx context.Context, scopeID string, spec policy.Spec) (*policy.Compiled, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	if err := store.PutPolicySpec(ctx, eng.Store, scopeID, spec); err != nil {
		return nil, fmt.Errorf("persisting policy spec: %w", err)
	}
	compiled := policy.Compile(scopeID, spec)
	eng.Logger.Info("policy updated", "scope", scopeID, "mode", compiled.Mode, "severity", compiled.Severity, "policyHash", compiled.VersionPrefix())
	return compiled, nil
}

func validateSpec(spec policy.Spec) error {
	switch spec.Mode {
	case policy.ModeOff, policy.ModeAssist, policy.ModeAutopilot, policy.ModeSovereign:
	default:
		return fmt.Errorf("unknown execution mode: %q", spec.Mode)
	}
	switch spec.Severity {
	case policy.SeverityRelaxed, policy.SeverityStandard, policy.SeverityStrict:
	default:
		return fmt.Errorf("unknown severity profile: %q", spec.Severity)
	}
	for _, c := range spec.Categories {
		if !mods.ValidCategory(c) {
			return fmt.Errorf("unknown category: %q", c)
		}
	}
	return nil
}

// LoadCharter returns the scope's ambient context text, through the cache.
func (eng *Engine) LoadCharter(ctx context.Context, scopeID string) (string, error) {
	return cachestore.GetOrFill(ctx, eng.Cache, "charter", scopeID, func(ctx context.Context) (string, error) {
		return store.GetCharter(ctx, eng.Store, scopeID)
	})
}

// OpenCase returns the open case for a content id, if any.
func (eng *Engine) OpenCase(ctx context.Context, scopeID, contentID string) (*mods.ModCase, error) {
	cases, err := store.GetCases(ctx, eng.Store, scopeID)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ContentID == contentID && cases[i].Status == mods.CaseOpen {
			return &cases[i], nil
		}
	}
	return nil, nil
}

// GetCase returns a case by id, or nil.
func (eng *Engine) GetCase(ctx context.Context, scopeID, caseID string) (*mods.ModCase, error) {
	cases, err := store.GetCases(ctx, eng.Store, scopeID)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == caseID {
			return &cases[i], nil
		}
	}
	return nil, nil
}

// ResolveCase applies a human verdict to an open case: RESOLVED or
// DISMISSED. This is the only path which moves a case to a terminal status.
// The action log records the verdict, and the quality observer runs
// fire-and-forget afterward.
func (eng *Engine) ResolveCase(ctx context.Context, scopeID, caseID string, verdict mods.CaseStatus, actor mods.Actor, rationale string) (*mods.ModCase, error) {
	if !verdict.Terminal() {
		return nil, fmt.Errorf("verdict must be terminal, got %q", verdict)
	}
	if actor == mods.ActorAIMod {
		return nil, fmt.Errorf("only humans resolve cases")
	}

	cases, err := store.GetCases(ctx, eng.Store, scopeID)
	if err != nil {
		return nil, err
	}
	var resolved *mods.ModCase
	for i := range cases {
		if cases[i].ID != caseID {
			continue
		}
		if cases[i].Status != mods.CaseOpen {
			return nil, fmt.Errorf("case %s is already %s", caseID, cases[i].Status)
		}
		now := time.Now().UTC()
		cases[i].Status = verdict
		cases[i].ResolvedAt = &now
		resolved = &cases[i]
		break
	}
	if resolved == nil {
		return nil, fmt.Errorf("case not found: %s/%s", scopeID, caseID)
	}
	if err := store.PutCases(ctx, eng.Store, scopeID, cases); err != nil {
		return nil, err
	}

	// A dismissal only counts as a reversal when the executor had already
	// applied the hold; dismissing an unexecuted suggestion is routine
	// disagreement, not a safety signal.
	actionKind := resolved.SuggestedAction
	if verdict == mods.CaseDismissed {
		if resolved.AutoExecuted {
			actionKind = mods.ActionRestore
			if err := eng.ContentRepo.MarkModerationState(ctx, scopeID, resolved.ContentID, mods.ActionRestore, "restored by "+string(actor)); err != nil {
				eng.Logger.Error("restoring held content", "scope", scopeID, "content", resolved.ContentID, "err", err)
			}
		} else {
			actionKind = mods.ActionDismiss
		}
	}
	if err := store.AppendAction(ctx, eng.Store, mods.ModAction{
		ID:        newID("act"),
		ScopeID:   scopeID,
		CaseID:    caseID,
		Action:    actionKind,
		Actor:     actor,
		Rationale: rationale,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	caseResolvedCount.WithLabelValues(string(verdict)).Inc()
	eng.RecordOutcome(ctx, scopeID, resolved)
	return resolved, nil
}
