package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commons-social/warden/classifier"
	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/store"
)

func TestEvaluateScamAssistScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategoryScam},
		Mode:       policy.ModeAssist,
	})
	require.NoError(t, err)

	mock := eng.Classifier.(*classifier.MockClassifier)
	mock.Script("free crypto", mods.CategoryScores{Scam: 0.9}, "certain scam phrasing", "free crypto, send seed phrase")

	res, err := eng.EvaluateContent(ctx, EvalRequest{
		ScopeID:     "scope1",
		ContentID:   "post1",
		ContentType: "post",
		AuthorID:    "author1",
		Text:        "free crypto giveaway, act now",
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(res.Flagged)
	assert.False(res.AutoExecuted)
	assert.Equal(mods.ActionHold, res.SuggestedAction)

	mc, err := eng.GetCase(ctx, "scope1", res.CaseID)
	require.NoError(t, err)
	require.NotNil(t, mc)
	assert.Equal(mods.CaseOpen, mc.Status)
	assert.Equal(mods.CategoryScam, mc.TriggerCategory)
	assert.Equal(mods.SourceAI, mc.Source)
	assert.Equal(mods.LanePriority, mc.Escalation.Lane)
	assert.Equal(mods.UrgencyHigh, mc.Escalation.Urgency)
	assert.NotEmpty(mc.PolicyHash)

	// assist mode never executes; the content repo was not touched
	actions, err := store.GetActions(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	assert.Empty(actions)
}

func TestEvaluateModeOff(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStrict,
		Categories: []mods.Category{mods.CategorySpam},
		Mode:       policy.ModeOff,
	})
	require.NoError(t, err)

	mock := eng.Classifier.(*classifier.MockClassifier)
	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "anything"})
	require.NoError(t, err)
	assert.False(res.Flagged)
	// short-circuits before classification
	assert.Empty(mock.Calls)
}

func TestEvaluateClassifierFailOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStrict,
		Categories: []mods.Category{mods.CategoryToxicity, mods.CategorySpam},
		Mode:       policy.ModeAssist,
	})
	require.NoError(t, err)

	eng.Classifier.(*classifier.MockClassifier).Err = errors.New("upstream unavailable")

	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "whatever"})
	require.NoError(t, err)
	assert.False(res.Flagged)
	assert.Equal(mods.CategoryScores{}, res.Scores)

	cases, err := store.GetCases(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	assert.Empty(cases)
}

func TestEvaluateBlockPatternFloor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:      policy.SeverityStandard,
		Categories:    []mods.Category{mods.CategorySpam},
		BlockPatterns: []string{"w.n a pr.ze"},
		Mode:          policy.ModeAssist,
	})
	require.NoError(t, err)

	// classifier scores the text clean; the block pattern floors spam
	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "Click here to W.N A PR.ZE today"})
	require.NoError(t, err)
	assert.True(res.Flagged)
	assert.Equal(blockPatternFloor, res.Scores.Spam)
	assert.Equal(mods.ActionHold, res.SuggestedAction)

	mc, err := eng.GetCase(ctx, "scope1", res.CaseID)
	require.NoError(t, err)
	assert.Contains(mc.EvidenceSnippets[len(mc.EvidenceSnippets)-1], "blocked term")
}

func TestEvaluateAllowPatternSuppressesBlock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:      policy.SeverityStandard,
		Categories:    []mods.Category{mods.CategorySpam},
		AllowPatterns: []string{"community raffle"},
		BlockPatterns: []string{"prize"},
		Mode:          policy.ModeAssist,
	})
	require.NoError(t, err)

	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "the community raffle prize goes to..."})
	require.NoError(t, err)
	assert.False(res.Flagged)
	assert.Zero(res.Scores.Spam)
}

func TestEvaluateOpenCaseIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategoryToxicity},
		Mode:       policy.ModeAssist,
	})
	require.NoError(t, err)

	mock := eng.Classifier.(*classifier.MockClassifier)
	mock.Script("slur", mods.CategoryScores{Toxicity: 0.85}, "abusive language")

	first, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "some slur here"})
	require.NoError(t, err)
	require.True(t, first.Flagged)

	second, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "some slur here"})
	require.NoError(t, err)
	assert.True(second.Flagged)
	assert.Equal(first.CaseID, second.CaseID)

	cases, err := store.GetCases(ctx, eng.Store, "scope1")
	require.NoError(t, err)
	assert.Len(cases, 1)
}

func TestEvaluateCharterPrefixesClassifierInput(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	require.NoError(t, store.PutCharter(ctx, eng.Store, "scope1", "satire is welcome here"))
	_, err := eng.UpdatePolicy(ctx, "scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategoryToxicity},
		Mode:       policy.ModeAssist,
	})
	require.NoError(t, err)

	mock := eng.Classifier.(*classifier.MockClassifier)
	_, err = eng.EvaluateContent(ctx, EvalRequest{ScopeID: "scope1", ContentID: "post1", Text: "borderline joke"})
	require.NoError(t, err)

	require.Len(t, mock.Calls, 1)
	assert.Contains(mock.Calls[0], "satire is welcome here")
	assert.Contains(mock.Calls[0], "borderline joke")
}

func TestEvaluateNoPolicyUsesSafeDefault(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	mock := eng.Classifier.(*classifier.MockClassifier)
	mock.Script("spammy", mods.CategoryScores{Spam: 0.95}, "bulk promotion")

	// no authored policy: safe default (STANDARD, ASSIST, all categories)
	res, err := eng.EvaluateContent(ctx, EvalRequest{ScopeID: "fresh-scope", ContentID: "post1", Text: "very spammy text"})
	require.NoError(t, err)
	assert.True(res.Flagged)
	assert.False(res.AutoExecuted)
	assert.Equal(mods.ActionHold, res.SuggestedAction)
}

func TestBestSuggestionPicksHighestSeverity(t *testing.T) {
	assert := assert.New(t)
	pol := policy.Compile("scope1", policy.Spec{
		Severity:   policy.SeverityStandard,
		Categories: []mods.Category{mods.CategorySpam, mods.CategoryToxicity, mods.CategoryScam},
		Mode:       policy.ModeAssist,
	})

	// toxicity only tags, scam notes: scam wins
	cat, action, ok := bestSuggestion(pol, mods.CategoryScores{Toxicity: 0.71, Scam: 0.82})
	assert.True(ok)
	assert.Equal(mods.CategoryScam, cat)
	assert.Equal(mods.ActionNote, action)

	// below every threshold
	_, _, ok = bestSuggestion(pol, mods.CategoryScores{Toxicity: 0.5})
	assert.False(ok)

	// disabled category never suggests, however high the score
	_, _, ok = bestSuggestion(pol, mods.CategoryScores{LinkRisk: 1.0})
	assert.False(ok)
}
