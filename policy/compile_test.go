package policy

import (
	"testing"

	"github.com/commons-social/warden/mods"

	"github.com/stretchr/testify/assert"
)

func TestCompileDeterministicHash(t *testing.T) {
	assert := assert.New(t)

	spec := Spec{
		Severity:      SeverityStrict,
		Categories:    []mods.Category{mods.CategorySpam, mods.CategoryScam},
		BlockPatterns: []string{"Free Money", "  crypto giveaway "},
		AllowPatterns: []string{"Book Giveaway"},
		Mode:          ModeAutopilot,
	}
	a := Compile("scope-one", spec)
	b := Compile("scope-one", spec)
	assert.Equal(a.PolicyHash, b.PolicyHash)
	assert.NotEmpty(a.PolicyHash)

	// normalization: category case and pattern order/whitespace must not
	// affect the hash
	shuffled := Spec{
		Severity:      SeverityStrict,
		Categories:    []mods.Category{"scam", "SPAM"},
		BlockPatterns: []string{"crypto giveaway", "FREE MONEY"},
		AllowPatterns: []string{"book giveaway"},
		Mode:          ModeAutopilot,
	}
	c := Compile("scope-one", shuffled)
	assert.Equal(a.PolicyHash, c.PolicyHash)

	// different scope, different hash
	d := Compile("scope-two", spec)
	assert.NotEqual(a.PolicyHash, d.PolicyHash)
}

func TestCompileTimestampExcludedFromHash(t *testing.T) {
	assert := assert.New(t)
	spec := Spec{Severity: SeverityStandard, Categories: mods.AllCategories(), Mode: ModeAssist}
	a := Compile("s", spec)
	b := Compile("s", spec)
	assert.Equal(a.PolicyHash, b.PolicyHash)
	// compile timestamps will usually differ; the hash never does
	assert.False(a.CompiledAt.IsZero())
}

func TestSeverityMonotonicOrdering(t *testing.T) {
	assert := assert.New(t)
	for _, cat := range mods.AllCategories() {
		relaxed := Compile("s", Spec{Severity: SeverityRelaxed, Categories: []mods.Category{cat}, Mode: ModeAssist})
		standard := Compile("s", Spec{Severity: SeverityStandard, Categories: []mods.Category{cat}, Mode: ModeAssist})
		strict := Compile("s", Spec{Severity: SeverityStrict, Categories: []mods.Category{cat}, Mode: ModeAssist})

		assert.GreaterOrEqual(relaxed.Thresholds[cat].Hold, standard.Thresholds[cat].Hold)
		assert.GreaterOrEqual(standard.Thresholds[cat].Hold, strict.Thresholds[cat].Hold)
		assert.GreaterOrEqual(relaxed.Thresholds[cat].Tag, standard.Thresholds[cat].Tag)
		assert.GreaterOrEqual(standard.Thresholds[cat].Tag, strict.Thresholds[cat].Tag)
	}
}

func TestDisabledCategoryUnreachable(t *testing.T) {
	assert := assert.New(t)
	c := Compile("s", Spec{Severity: SeverityStrict, Categories: []mods.Category{mods.CategorySpam}, Mode: ModeAutopilot})

	assert.True(c.Enabled(mods.CategorySpam))
	for _, cat := range []mods.Category{mods.CategoryToxicity, mods.CategoryScam, mods.CategoryLinkRisk} {
		assert.False(c.Enabled(cat))
		th := c.Thresholds[cat]
		// no score in [0,1] can reach a disabled threshold
		assert.Greater(th.Tag, 1.0)
		assert.Greater(th.Notify, 1.0)
		assert.Greater(th.Hold, 1.0)
		assert.Equal(RouteAssistOnly, c.Routes[cat])
	}
}

func TestRoutingFollowsMode(t *testing.T) {
	assert := assert.New(t)

	assist := Compile("s", Spec{Severity: SeverityStandard, Categories: []mods.Category{mods.CategoryScam}, Mode: ModeAssist})
	assert.Equal(RouteAssistOnly, assist.Routes[mods.CategoryScam])

	auto := Compile("s", Spec{Severity: SeverityStandard, Categories: []mods.Category{mods.CategoryScam}, Mode: ModeAutopilot})
	assert.Equal(RouteHold, auto.Routes[mods.CategoryScam])

	sov := Compile("s", Spec{Severity: SeverityStandard, Categories: []mods.Category{mods.CategoryScam}, Mode: ModeSovereign})
	assert.Equal(RouteHold, sov.Routes[mods.CategoryScam])
}

func TestCompileSafeDefaultOnBadSpec(t *testing.T) {
	assert := assert.New(t)

	c := Compile("s", Spec{Mode: "TURBO", Severity: "EXTREME"})
	def := SafeDefault("s")
	assert.Equal(def.PolicyHash, c.PolicyHash)
	assert.Equal(ModeAssist, c.Mode)
	assert.Equal(SeverityStandard, c.Severity)
	for _, cat := range mods.AllCategories() {
		assert.Equal(RouteAssistOnly, c.Routes[cat])
	}
}

func TestMatcherLiteralOnly(t *testing.T) {
	assert := assert.New(t)
	c := Compile("s", Spec{
		Severity:      SeverityStandard,
		Categories:    []mods.Category{mods.CategorySpam},
		BlockPatterns: []string{"w.n a pr.ze"},
		Mode:          ModeAssist,
	})

	// metacharacters are escaped: "." matches only a literal dot
	assert.Equal("", c.Block.Match("win a prize today"))
	assert.Equal("w.n a pr.ze", c.Block.Match("W.N A PR.ZE today"))
}
