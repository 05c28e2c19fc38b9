package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/reasoning"
	"github.com/commons-social/warden/store"
)

// how many per-verdict outcome records are retained per scope
const observerHistoryMax = 200

// TemplateOutcome records how one reasoning template fared against the human
// verdict on one case. Confirmed means the human upheld the suggestion;
// overridden means they dismissed it.
type TemplateOutcome struct {
	CaseID     string             `json:"caseId"`
	Template   reasoning.Template `json:"template"`
	Verdict    mods.CaseStatus    `json:"verdict"`
	Confirmed  bool               `json:"confirmed"`
	Urgency    mods.Urgency       `json:"urgency"`
	PolicyHash string             `json:"policyHash"`
	RecordedAt time.Time          `json:"recordedAt"`
}

// RecordOutcome feeds the reasoning quality observer after a human verdict.
// It is strictly fire-and-forget: it never returns an error, never panics
// out, and applies no back-pressure to case resolution. Non-terminal cases
// are ignored.
func (eng *Engine) RecordOutcome(ctx context.Context, scopeID string, mc *mods.ModCase) {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("quality observer exception", "scope", scopeID, "err", r)
		}
	}()
	if mc == nil || !mc.Status.Terminal() {
		return
	}

	pol, err := eng.LoadPolicy(ctx, scopeID)
	if err != nil {
		eng.Logger.Warn("quality observer: loading policy", "scope", scopeID, "err", err)
		pol = nil
	}
	art := reasoning.Build(mc, pol)
	if art == nil {
		return
	}

	outcome := TemplateOutcome{
		CaseID:     mc.ID,
		Template:   art.Template,
		Verdict:    mc.Status,
		Confirmed:  mc.Status == mods.CaseResolved,
		Urgency:    mc.Escalation.Urgency,
		PolicyHash: mc.PolicyHash,
		RecordedAt: time.Now().UTC(),
	}

	key := store.ObserverKey(scopeID)
	var history []TemplateOutcome
	if raw, err := eng.Store.Get(ctx, key); err == nil && raw != "" {
		// corrupt history is dropped, not fatal
		_ = json.Unmarshal([]byte(raw), &history)
	}
	history = append(history, outcome)
	if len(history) > observerHistoryMax {
		history = history[len(history)-observerHistoryMax:]
	}
	if out, err := json.Marshal(history); err == nil {
		if err := eng.Store.Set(ctx, key, string(out)); err != nil {
			eng.Logger.Warn("quality observer: persisting outcome", "scope", scopeID, "err", err)
		}
	}

	result := "overridden"
	if outcome.Confirmed {
		result = "confirmed"
	}
	templateOutcomeCount.WithLabelValues(string(art.Template), result).Inc()
	eng.Logger.Info("reasoning outcome recorded", "scope", scopeID, "case", mc.ID, "template", art.Template, "result", result)
}

// TemplateQuality is the aggregate view over recorded outcomes for one
// template.
type TemplateQuality struct {
	Template  reasoning.Template `json:"template"`
	Total     int                `json:"total"`
	Confirmed int                `json:"confirmed"`
	// ConfirmRate is confirmed/total; zero when no outcomes exist.
	ConfirmRate float64 `json:"confirmRate"`
}

// TemplateQualityReport aggregates the scope's recorded outcomes per
// template. Purely derived; safe to recompute on every read.
func (eng *Engine) TemplateQualityReport(ctx context.Context, scopeID string) ([]TemplateQuality, error) {
	raw, err := eng.Store.Get(ctx, store.ObserverKey(scopeID))
	if err != nil {
		return nil, err
	}
	var history []TemplateOutcome
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			return nil, err
		}
	}

	byTemplate := map[reasoning.Template]*TemplateQuality{}
	for _, o := range history {
		q := byTemplate[o.Template]
		if q == nil {
			q = &TemplateQuality{Template: o.Template}
			byTemplate[o.Template] = q
		}
		q.Total++
		if o.Confirmed {
			q.Confirmed++
		}
	}

	out := make([]TemplateQuality, 0, len(byTemplate))
	for _, tpl := range []reasoning.Template{reasoning.TemplateManipulation, reasoning.TemplateIntegrity, reasoning.TemplateContextRequired} {
		if q, ok := byTemplate[tpl]; ok {
			q.ConfirmRate = float64(q.Confirmed) / float64(q.Total)
			out = append(out, *q)
		}
	}
	return out, nil
}
