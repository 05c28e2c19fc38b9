package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/commons-social/warden/classifier"
	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/store"
)

// Pattern-matched block terms floor the spam score here even when the
// classifier scored the text clean.
const blockPatternFloor = 0.9

// EvalRequest is one content item submitted for evaluation.
type EvalRequest struct {
	ScopeID     string `json:"scopeId"`
	ContentID   string `json:"contentId"`
	ContentType string `json:"contentType"`
	AuthorID    string `json:"authorId"`
	Text        string `json:"text"`
}

// EvalResult reports what evaluation did with one content item.
type EvalResult struct {
	ScopeID   string              `json:"scopeId"`
	ContentID string              `json:"contentId"`
	Scores    mods.CategoryScores `json:"scores"`

	// Flagged means a case exists for this content after evaluation,
	// whether newly opened, auto-executed, or pre-existing.
	Flagged         bool            `json:"flagged"`
	CaseID          string          `json:"caseId,omitempty"`
	SuggestedAction mods.ActionKind `json:"suggestedAction,omitempty"`
	AutoExecuted    bool            `json:"autoExecuted"`
	PolicyVersion   string          `json:"policyVersion,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

// EvaluateContent runs the full pipeline for one content item: policy load,
// classification, pattern overrides, the autonomous fast path, and finally
// case creation for review. A panic anywhere inside degrades to a no-op
// result; content is never blocked by an engine fault.
func (eng *Engine) EvaluateContent(ctx context.Context, req EvalRequest) (res *EvalResult, outErr error) {
	start := time.Now()
	logger := eng.Logger.With("scope", req.ScopeID, "content", req.ContentID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("evaluation exception", "err", r)
			evaluationErrorCount.Inc()
			res = &EvalResult{ScopeID: req.ScopeID, ContentID: req.ContentID, Reason: fmt.Sprintf("internal fault: %v", r)}
			outErr = nil
		}
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()

	pol, err := eng.LoadPolicy(ctx, req.ScopeID)
	if err != nil {
		return nil, err
	}
	out := &EvalResult{ScopeID: req.ScopeID, ContentID: req.ContentID, PolicyVersion: pol.VersionPrefix()}

	if pol.Mode == policy.ModeOff {
		out.Reason = "moderation off for scope"
		evaluationCount.WithLabelValues("off").Inc()
		return out, nil
	}

	verdict := eng.classify(ctx, logger, req)
	out.Scores = verdict.Scores

	// pattern overrides: a blocked term floors the spam score unless an
	// allow pattern also matches the text
	if blocked := pol.Block.Match(req.Text); blocked != "" {
		if allowed := pol.Allow.Match(req.Text); allowed != "" {
			logger.Info("block pattern suppressed by allow pattern", "block", blocked, "allow", allowed)
		} else {
			if out.Scores.Spam < blockPatternFloor {
				out.Scores.Spam = blockPatternFloor
			}
			verdict.Evidence = append(verdict.Evidence, fmt.Sprintf("matched blocked term %q", blocked))
			logger.Info("block pattern floored spam score", "pattern", blocked)
		}
	}

	// autonomous fast path first; if it executed, evaluation is done
	if eng.Autopilot != nil {
		apRes := eng.Autopilot.Process(ctx, EvalContext{
			ScopeID:     req.ScopeID,
			ContentID:   req.ContentID,
			ContentType: req.ContentType,
			AuthorID:    req.AuthorID,
			Scores:      out.Scores,
			Rationale:   verdict.Rationale,
			Evidence:    classifier.TrimEvidence(verdict.Evidence),
		})
		if apRes.Executed {
			out.Flagged = true
			out.CaseID = apRes.CaseID
			out.SuggestedAction = mods.ActionHold
			out.AutoExecuted = true
			out.Reason = "hold executed automatically"
			evaluationCount.WithLabelValues("auto-executed").Inc()
			return out, nil
		}
	}

	trigger, action, ok := bestSuggestion(pol, out.Scores)
	if !ok {
		out.Reason = "no enabled category reached an action threshold"
		evaluationCount.WithLabelValues("clean").Inc()
		return out, nil
	}

	// one open case per content id
	existing, err := eng.OpenCase(ctx, req.ScopeID, req.ContentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		out.Flagged = true
		out.CaseID = existing.ID
		out.SuggestedAction = existing.SuggestedAction
		out.AutoExecuted = existing.AutoExecuted
		out.Reason = "open case already exists for content"
		evaluationCount.WithLabelValues("duplicate").Inc()
		return out, nil
	}

	mc := mods.ModCase{
		ID:               newID("case"),
		ScopeID:          req.ScopeID,
		ContentID:        req.ContentID,
		ContentType:      req.ContentType,
		AuthorID:         req.AuthorID,
		Status:           mods.CaseOpen,
		SuggestedAction:  action,
		TriggerCategory:  trigger,
		Scores:           out.Scores,
		Rationale:        verdict.Rationale,
		EvidenceSnippets: classifier.TrimEvidence(verdict.Evidence),
		Escalation:       Escalate(pol, trigger, out.Scores),
		PolicyHash:       pol.PolicyHash,
		PolicyVersion:    pol.VersionPrefix(),
		Source:           mods.SourceAI,
		CreatedAt:        time.Now().UTC(),
	}
	if err := store.AppendCase(ctx, eng.Store, mc); err != nil {
		return nil, fmt.Errorf("persisting case: %w", err)
	}

	out.Flagged = true
	out.CaseID = mc.ID
	out.SuggestedAction = action
	out.Reason = fmt.Sprintf("%s score %.2f suggests %s", trigger, out.Scores.Get(trigger), action)
	logger.Info("case opened", "case", mc.ID, "trigger", trigger, "action", action, "lane", mc.Escalation.Lane, "urgency", mc.Escalation.Urgency)
	evaluationCount.WithLabelValues("flagged").Inc()
	caseOpenedCount.WithLabelValues(string(trigger), string(action)).Inc()
	return out, nil
}

// classify calls the external classifier with the scope charter prefixed as
// context, under a timeout. Any failure substitutes the fail-open verdict.
func (eng *Engine) classify(ctx context.Context, logger *slog.Logger, req EvalRequest) *classifier.Verdict {
	timeout := eng.ClassifierTimeout
	if timeout == 0 {
		timeout = DefaultClassifierTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text := req.Text
	if charter, err := eng.LoadCharter(cctx, req.ScopeID); err == nil && charter != "" {
		text = charter + "\n---\n" + text
	}

	verdict, err := eng.Classifier.Classify(cctx, text)
	if err != nil || verdict == nil {
		logger.Warn("classification failed, proceeding fail-open", "err", err)
		classifierFailOpenCount.Inc()
		return classifier.FailOpenVerdict()
	}
	verdict.Scores.Clamp()
	return verdict
}

// bestSuggestion returns the most severe suggested action any enabled
// category justifies, and the category driving it. Ties on severity resolve
// to the higher-scoring category.
func bestSuggestion(pol *policy.Compiled, scores mods.CategoryScores) (mods.Category, mods.ActionKind, bool) {
	var bestCat mods.Category
	var bestAction mods.ActionKind
	for _, cat := range mods.AllCategories() {
		t := pol.Thresholds[cat]
		v := scores.Get(cat)
		var action mods.ActionKind
		switch {
		case v >= t.Hold:
			action = mods.ActionHold
		case v >= t.Notify:
			action = mods.ActionNote
		case v >= t.Tag:
			action = mods.ActionTag
		default:
			continue
		}
		if action.Rank() > bestAction.Rank() ||
			(action.Rank() == bestAction.Rank() && v > scores.Get(bestCat)) {
			bestCat, bestAction = cat, action
		}
	}
	return bestCat, bestAction, bestAction != ""
}
