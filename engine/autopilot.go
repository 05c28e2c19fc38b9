package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/commons-social/warden/contentrepo"
	"github.com/commons-social/warden/countstore"
	"github.com/commons-social/warden/eligibility"
	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/store"
)

// Maximum automated actions per scope per hour before the hesitation check
// backs off, independent of the global velocity cap.
const DefaultHesitationCap = 3

// TTL on the per-content SetNX claim taken before case creation.
const claimTTL = 2 * time.Minute

const hesitationCounter = "auto-hold"

// Autopilot is the autonomous execution service: the gated, rate-limited
// fast path that may hold content before a case is ever reviewed. Every gate
// short-circuits toward non-execution; errors never propagate to the
// evaluator.
type Autopilot struct {
	Logger      *slog.Logger
	Store       store.Store
	ContentRepo contentrepo.ContentRepo
	Counters    countstore.CountStore
	Eligibility *eligibility.Engine
	Limiter     *VelocityLimiter

	// Global kill switch. When set, no content is ever acted on
	// automatically, regardless of policy mode or eligibility.
	Disabled bool

	// Per-scope hourly hesitation cap. Zero means DefaultHesitationCap.
	HesitationCap int
}

// EvalContext carries one classified content item through the autopilot
// gates.
type EvalContext struct {
	ScopeID     string
	ContentID   string
	ContentType string
	AuthorID    string
	Scores      mods.CategoryScores
	Rationale   string
	Evidence    []string
}

// Result reports what the autopilot did. Executed=false with a Reason is the
// normal outcome for most content.
type Result struct {
	Executed bool   `json:"executed"`
	CaseID   string `json:"caseId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Process runs the ordered gates and, if all pass, executes a hold: case
// created, action logged, content marked held, hesitation memory updated.
// Any error or panic anywhere inside is converted to a non-execution result.
func (ap *Autopilot) Process(ctx context.Context, ec EvalContext) (res Result) {
	logger := ap.Logger.With("scope", ec.ScopeID, "content", ec.ContentID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("autopilot execution exception", "err", r)
			res = Result{Executed: false, Reason: fmt.Sprintf("internal fault: %v", r)}
		}
	}()

	out, err := ap.process(ctx, logger, ec)
	if err != nil {
		// fail-open at the boundary: an executor error means no action taken,
		// leaving content to the evaluator's slower path or a human
		logger.Warn("autopilot abstaining on error", "err", err)
		autopilotAbstentions.WithLabelValues("error").Inc()
		return Result{Executed: false, Reason: err.Error()}
	}
	return out
}

func (ap *Autopilot) process(ctx context.Context, logger *slog.Logger, ec EvalContext) (Result, error) {
	// gate 1: kill switch
	if ap.Disabled {
		autopilotAbstentions.WithLabelValues("kill-switch").Inc()
		return Result{Reason: "autonomous execution disabled"}, nil
	}

	// gate 2: hesitation check. Runs before any policy or eligibility
	// lookup: if the system has been acting a lot in this scope recently, it
	// backs off and leaves the decision to humans.
	hcap := ap.HesitationCap
	if hcap == 0 {
		hcap = DefaultHesitationCap
	}
	recent, err := ap.Counters.GetCount(ctx, hesitationCounter, ec.ScopeID, countstore.PeriodHour)
	if err != nil {
		return Result{}, fmt.Errorf("hesitation check: %w", err)
	}
	if recent >= hcap {
		logger.Info("hesitation: recent automated activity, backing off", "recent", recent, "cap", hcap)
		autopilotAbstentions.WithLabelValues("hesitation").Inc()
		return Result{Reason: fmt.Sprintf("hesitation: %d automated actions in the last hour", recent)}, nil
	}

	// gate 3: policy + eligibility authorization
	spec, err := store.GetPolicySpec(ctx, ap.Store, ec.ScopeID)
	if err != nil {
		return Result{}, err
	}
	if spec == nil {
		autopilotAbstentions.WithLabelValues("unauthorized").Inc()
		return Result{Reason: "no policy authored for scope"}, nil
	}
	pol := policy.Compile(ec.ScopeID, *spec)
	elig, err := ap.Eligibility.Evaluate(ctx, ec.ScopeID)
	if err != nil {
		return Result{}, err
	}
	state := eligibility.DeriveState(pol.Mode, elig)
	if state != eligibility.StateEnabled && pol.Mode != policy.ModeSovereign {
		autopilotAbstentions.WithLabelValues("unauthorized").Inc()
		return Result{Reason: fmt.Sprintf("not authorized: state=%s mode=%s", state, pol.Mode)}, nil
	}

	// gate 4: velocity limiter (fail-closed here, caught at the boundary)
	if err := ap.Limiter.Take(); err != nil {
		return Result{}, err
	}

	// gate 5: hold-threshold check across enabled categories
	trigger, ok := holdTrigger(pol, ec.Scores)
	if !ok {
		autopilotAbstentions.WithLabelValues("below-threshold").Inc()
		return Result{Reason: "no category score meets its hold threshold"}, nil
	}

	// gate 6: idempotency. A case existing for this content, open or
	// terminal, means the fast path keeps its hands off.
	cases, err := store.GetCases(ctx, ap.Store, ec.ScopeID)
	if err != nil {
		return Result{}, err
	}
	for i := range cases {
		if cases[i].ContentID == ec.ContentID {
			autopilotAbstentions.WithLabelValues("duplicate").Inc()
			return Result{Reason: "case already exists for content", CaseID: cases[i].ID}, nil
		}
	}
	caseID := newID("case")
	won, err := ap.Store.SetNX(ctx, store.ClaimKey(ec.ScopeID, ec.ContentID), caseID, claimTTL)
	if err != nil {
		return Result{}, fmt.Errorf("taking content claim: %w", err)
	}
	if !won {
		autopilotAbstentions.WithLabelValues("duplicate").Inc()
		return Result{Reason: "concurrent evaluation already claimed content"}, nil
	}

	// execute: case, action, repo mark, hesitation memory — in that order,
	// so the hesitation check sees this execution on the next invocation
	now := time.Now().UTC()
	mc := mods.ModCase{
		ID:               caseID,
		ScopeID:          ec.ScopeID,
		ContentID:        ec.ContentID,
		ContentType:      ec.ContentType,
		AuthorID:         ec.AuthorID,
		Status:           mods.CaseOpen,
		SuggestedAction:  mods.ActionHold,
		TriggerCategory:  trigger,
		Scores:           ec.Scores,
		Rationale:        ec.Rationale,
		EvidenceSnippets: ec.Evidence,
		Escalation:       Escalate(pol, trigger, ec.Scores),
		PolicyHash:       pol.PolicyHash,
		PolicyVersion:    pol.VersionPrefix(),
		Source:           mods.SourceAI,
		AutoExecuted:     true,
		CreatedAt:        now,
	}
	if err := store.AppendCase(ctx, ap.Store, mc); err != nil {
		return Result{}, fmt.Errorf("persisting case: %w", err)
	}

	// The actor is always AI_MOD. Sovereign mode widens authorization, not
	// identity: SOVEREIGN_AGENT is reserved for the human-activated path.
	if err := store.AppendAction(ctx, ap.Store, mods.ModAction{
		ID:        newID("act"),
		ScopeID:   ec.ScopeID,
		CaseID:    caseID,
		Action:    mods.ActionHold,
		Actor:     mods.ActorAIMod,
		Rationale: fmt.Sprintf("automated hold: %s score %.2f met hold threshold", mc.TriggerCategory, ec.Scores.Get(trigger)),
		CreatedAt: now,
	}); err != nil {
		return Result{}, fmt.Errorf("persisting action: %w", err)
	}

	if err := ap.ContentRepo.MarkModerationState(ctx, ec.ScopeID, ec.ContentID, mods.ActionHold, "held pending review: "+string(trigger)); err != nil {
		return Result{}, fmt.Errorf("marking content held: %w", err)
	}

	if err := ap.Counters.Increment(ctx, hesitationCounter, ec.ScopeID); err != nil {
		logger.Warn("recording hesitation memory", "err", err)
	}
	if err := ap.Counters.IncrementDistinct(ctx, hesitationCounter+"-content", ec.ScopeID, ec.ContentID); err != nil {
		logger.Warn("recording hesitation memory", "err", err)
	}

	logger.Info("autopilot executed hold", "case", caseID, "trigger", trigger, "lane", mc.Escalation.Lane)
	autopilotExecutions.WithLabelValues(string(trigger)).Inc()
	return Result{Executed: true, CaseID: caseID}, nil
}

// holdTrigger returns the highest-scoring category whose score meets its
// hold threshold. Disabled categories carry unreachable thresholds, so they
// can never be returned.
func holdTrigger(pol *policy.Compiled, scores mods.CategoryScores) (mods.Category, bool) {
	var best mods.Category
	bestScore := -1.0
	for _, cat := range mods.AllCategories() {
		v := scores.Get(cat)
		if v >= pol.Thresholds[cat].Hold && v > bestScore {
			best = cat
			bestScore = v
		}
	}
	return best, bestScore >= 0
}
