package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commons-social/warden/classifier"
	"github.com/commons-social/warden/contentrepo"
	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/store"
)

// seedResolvedHistory gives the scope enough confirmed verdicts to pass the
// eligibility volume and agreement checks.
func seedResolvedHistory(t *testing.T, st store.Store, scopeID string, n int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	var cases []mods.ModCase
	for i := 0; i < n; i++ {
		resolved := now.Add(-time.Duration(i) * time.Hour)
		cases = append(cases, mods.ModCase{
			ID:              fmt.Sprintf("case-hist-%d", i),
			ScopeID:         scopeID,
			ContentID:       fmt.Sprintf("old-post-%d", i),
			Status:          mods.CaseResolved,
			SuggestedAction: mods.ActionHold,
			TriggerCategory: mods.CategoryScam,
			Source:          mods.SourceAI,
			CreatedAt:       resolved.Add(-time.Hour),
			ResolvedAt:      &resolved,
		})
	}
	require.NoError(t, store.PutCases(ctx, st, scopeID, cases))
}

func autopilotFixture(t *testing.T, mode policy.Mode) (*Engine, *classifier.MockClassifier) {
	t.Helper()
	ctx := context.Background()
	eng := EngineTestFixture()

	seedResolvedHistory(t, eng.Store, "scope1", 3)
	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategoryScam},
		Mode:       mode,
	})
	require.NoError(t, err)

	repo := eng.ContentRepo.(*contentrepo.MemContentRepo)
	repo.AddItem(contentrepo.Item{ID: "post1", ScopeID: "scope1", Type: "post", AuthorID: "author1"})

	mock := eng.Classifier.(*classifier.MockClassifier)
	mock.Script("seed phrase", mods.CategoryScores{Scam: 0.93}, "credential harvesting", "send me your seed phrase")
	return eng, mock
}

func TestAutopilotExecutesHold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)

	res, err := eng.EvaluateContent(ctx, EvalRequest{
		ScopeID:     "scope1",
		ContentID:   "post1",
		ContentType: "post",
		AuthorID:    "author1",
		Text:        "dm me your seed phrase to claim rewards",
	})
	require.NoError(t, err)
	assert.True(res.AutoExecuted)
	assert.True(res.Flagged)

	mc, err := eng.GetCase(ctx, "scope1", res.CaseID)
	require.NoError(t, err)
	require.NotNil(t, mc)
	assert.Equal(mods.CaseOpen, mc.Status)
	assert.True(mc.AutoExecuted)
	assert.Equal(mods.ActionHold, mc.SuggestedAction)
	assert.Equal(mods.SourceAI, mc.Source)

	actions, err := store.GetActions(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(mods.ActorAIMod, actions[0].Actor)
	assert.Equal(mods.ActionHold, actions[0].Action)

	items, err := eng.ContentRepo.ListItems(ctx, "scope1")
	require.NoError(t, err)
	assert.Equal(mods.ActionHold, items[0].ModState)
}

func TestAutopilotNeverSignsSovereignAgent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeSovereign)

	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "send seed phrase now"})
	require.NoError(t, err)
	require.True(t, res.AutoExecuted)

	actions, err := store.GetActions(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	for _, a := range actions {
		assert.NotEqual(mods.ActorSovereignAgent, a.Actor)
		assert.Equal(mods.ActorAIMod, a.Actor)
	}
}

func TestAutopilotSovereignBypassesEligibility(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	// no case history at all: LOCKED under autopilot, but sovereign mode is
	// a superset and authorizes anyway
	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategoryScam},
		Mode:       policy.ModeSovereign,
	})
	require.NoError(t, err)
	eng.ContentRepo.(*contentrepo.MemContentRepo).AddItem(contentrepo.Item{ID: "post1", ScopeID: "scope1"})
	eng.Classifier.(*classifier.MockClassifier).Script("seed phrase", mods.CategoryScores{Scam: 0.95}, "credential harvesting")

	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "seed phrase please"})
	require.NoError(t, err)
	assert.True(res.AutoExecuted)
}

func TestAutopilotIneligibleScopeAbstains(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	// autopilot mode authored, but the scope has no verdict history
	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategoryScam},
		Mode:       policy.ModeAutopilot,
	})
	require.NoError(t, err)
	eng.Classifier.(*classifier.MockClassifier).Script("seed phrase", mods.CategoryScores{Scam: 0.95}, "credential harvesting")

	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "seed phrase please"})
	require.NoError(t, err)
	assert.False(res.AutoExecuted)
	// falls through to the review path instead
	assert.True(res.Flagged)

	actions, err := store.GetActions(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	assert.Empty(actions)
}

func TestAutopilotKillSwitch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)
	eng.Autopilot.Disabled = true

	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "seed phrase please"})
	require.NoError(t, err)
	assert.False(res.AutoExecuted)
	assert.True(res.Flagged) // still opens a case for humans
}

func TestAutopilotIdempotency(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)

	first := eng.Autopilot.Process(ctx, EvalContext{
		ScopeID:   "scope1",
		ContentID: "post1",
		Scores:    mods.CategoryScores{Scam: 0.95},
	})
	require.True(t, first.Executed)

	second := eng.Autopilot.Process(ctx, EvalContext{
		ScopeID:   "scope1",
		ContentID: "post1",
		Scores:    mods.CategoryScores{Scam: 0.95},
	})
	assert.False(second.Executed)
	assert.Equal(first.CaseID, second.CaseID)

	cases, err := store.GetCases(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	count := 0
	for _, mc := range cases {
		if mc.ContentID == "post1" {
			count++
		}
	}
	assert.Equal(1, count)
}

func TestAutopilotBelowHoldThresholdAbstains(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)

	res := eng.Autopilot.Process(ctx, EvalContext{
		ScopeID:   "scope1",
		ContentID: "post1",
		Scores:    mods.CategoryScores{Scam: 0.85}, // below STANDARD hold 0.90
	})
	assert.False(res.Executed)
	assert.Contains(res.Reason, "hold threshold")
}

func TestAutopilotHesitation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)
	eng.Autopilot.HesitationCap = 1

	first := eng.Autopilot.Process(ctx, EvalContext{ScopeID: "scope1", ContentID: "post1", Scores: mods.CategoryScores{Scam: 0.95}})
	require.True(t, first.Executed)

	// the execution above is in the hesitation memory; cap is 1
	eng.ContentRepo.(*contentrepo.MemContentRepo).AddItem(contentrepo.Item{ID: "post2", ScopeID: "scope1"})
	second := eng.Autopilot.Process(ctx, EvalContext{ScopeID: "scope1", ContentID: "post2", Scores: mods.CategoryScores{Scam: 0.95}})
	assert.False(second.Executed)
	assert.Contains(second.Reason, "hesitation")
}

func TestAutopilotVelocityLimit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)
	eng.Autopilot.Limiter = NewVelocityLimiter(1)
	eng.Autopilot.HesitationCap = 100
	repo := eng.ContentRepo.(*contentrepo.MemContentRepo)
	repo.AddItem(contentrepo.Item{ID: "post2", ScopeID: "scope1"})

	first := eng.Autopilot.Process(ctx, EvalContext{ScopeID: "scope1", ContentID: "post1", Scores: mods.CategoryScores{Scam: 0.95}})
	require.True(t, first.Executed)

	second := eng.Autopilot.Process(ctx, EvalContext{ScopeID: "scope1", ContentID: "post2", Scores: mods.CategoryScores{Scam: 0.95}})
	assert.False(second.Executed)
	assert.Contains(second.Reason, "velocity")
}

func TestAutopilotDisabledCategoryNeverTriggers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := autopilotFixture(t, policy.ModeAutopilot)

	// toxicity is not enabled in the fixture policy
	res := eng.Autopilot.Process(ctx, EvalContext{
		ScopeID:   "scope1",
		ContentID: "post1",
		Scores:    mods.CategoryScores{Toxicity: 1.0},
	})
	assert.False(res.Executed)
}
