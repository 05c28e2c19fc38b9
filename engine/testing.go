package engine

import (
	"log/slog"

	"github.com/commons-social/warden/cachestore"
	"github.com/commons-social/warden/classifier"
	"github.com/commons-social/warden/contentrepo"
	"github.com/commons-social/warden/countstore"
	"github.com/commons-social/warden/eligibility"
	"github.com/commons-social/warden/store"
)

// EngineTestFixture returns a fully-wired engine on in-memory backends, with
// a scripted mock classifier. Intended for tests in this module and for
// downstream integration tests.
func EngineTestFixture() *Engine {
	logger := slog.Default()
	st := store.NewMemStore()
	mock := classifier.NewMockClassifier()
	repo := contentrepo.NewMemContentRepo()
	counters := countstore.NewMemCountStore()
	elig := eligibility.NewEngine(logger, st, nil)

	eng := &Engine{
		Logger:      logger,
		Store:       st,
		Cache:       cachestore.NewMemCacheStore(1000, 0),
		Classifier:  mock,
		ContentRepo: repo,
		Counters:    counters,
		Eligibility: elig,
	}
	eng.Autopilot = &Autopilot{
		Logger:      logger,
		Store:       st,
		ContentRepo: repo,
		Counters:    counters,
		Eligibility: elig,
		Limiter:     NewVelocityLimiter(DefaultVelocityCap),
	}
	return eng
}
