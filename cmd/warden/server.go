package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/commons-social/warden/cachestore"
	"github.com/commons-social/warden/classifier"
	"github.com/commons-social/warden/contentrepo"
	"github.com/commons-social/warden/countstore"
	"github.com/commons-social/warden/eligibility"
	"github.com/commons-social/warden/engine"
	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
	"github.com/commons-social/warden/reasoning"
	"github.com/commons-social/warden/store"
)

type Server struct {
	logger *slog.Logger
	engine *engine.Engine
	echo   *echo.Echo
}

type Config struct {
	Logger               *slog.Logger
	RedisURL             string
	ClassifierHost       string
	ClassifierToken      string
	ClassifierTimeout    time.Duration
	ContentRepoHost      string
	DisableAutopilot     bool
	VelocityCap          int64
	HesitationCap        int
	EligibilityOverrides []string
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var st store.Store
	var cache cachestore.CacheStore
	var counters countstore.CountStore
	if config.RedisURL != "" {
		rst, err := store.NewRedisStore(config.RedisURL)
		if err != nil {
			return nil, err
		}
		st = rst
		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, err
		}
		cache = csh
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, err
		}
		counters = cnt
		logger.Info("using redis-backed stores", "url", config.RedisURL)
	} else {
		st = store.NewMemStore()
		cache = cachestore.NewMemCacheStore(10_000, 30*time.Minute)
		counters = countstore.NewMemCountStore()
		logger.Info("using in-memory stores; state will not survive restart")
	}

	var cls classifier.Classifier
	if config.ClassifierHost != "" {
		cls = classifier.NewHTTPClient(config.ClassifierHost, config.ClassifierToken)
	} else {
		logger.Warn("no classifier host configured, using mock (all content scores clean)")
		cls = classifier.NewMockClassifier()
	}

	var repo contentrepo.ContentRepo
	if config.ContentRepoHost != "" {
		repo = contentrepo.NewHTTPContentRepo(config.ContentRepoHost)
	} else {
		repo = contentrepo.NewMemContentRepo()
	}

	elig := eligibility.NewEngine(logger, st, config.EligibilityOverrides)

	eng := &engine.Engine{
		Logger:            logger,
		Store:             st,
		Cache:             cache,
		Classifier:        cls,
		ContentRepo:       repo,
		Counters:          counters,
		Eligibility:       elig,
		ClassifierTimeout: config.ClassifierTimeout,
	}
	eng.Autopilot = &engine.Autopilot{
		Logger:        logger,
		Store:         st,
		ContentRepo:   repo,
		Counters:      counters,
		Eligibility:   elig,
		Limiter:       engine.NewVelocityLimiter(config.VelocityCap),
		Disabled:      config.DisableAutopilot,
		HesitationCap: config.HesitationCap,
	}

	srv := &Server{
		logger: logger,
		engine: eng,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/_health", srv.handleHealth)
	e.POST("/evaluate", srv.handleEvaluate)
	e.POST("/policy/:scope", srv.handleUpdatePolicy)
	e.GET("/policy/:scope", srv.handleGetPolicy)
	e.GET("/queue/:scope", srv.handleQueue)
	e.GET("/eligibility/:scope", srv.handleEligibility)
	e.GET("/cases/:scope/:case/reasoning", srv.handleReasoning)
	e.POST("/cases/:scope/:case/resolve", srv.handleResolve)
	e.GET("/quality/:scope", srv.handleQuality)
	srv.echo = e

	return srv, nil
}

// RunAPI serves the HTTP API until SIGINT/SIGTERM, then shuts down cleanly.
func (s *Server) RunAPI(ctx context.Context, bind string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(sctx)
}

func (s *Server) RunMetrics(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, mux)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluate(c echo.Context) error {
	var req engine.EvalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScopeID == "" || req.ContentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "scopeId and contentId are required")
	}
	res, err := s.engine.EvaluateContent(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleUpdatePolicy(c echo.Context) error {
	var spec policy.Spec
	if err := c.Bind(&spec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	compiled, err := s.engine.UpdatePolicy(c.Request().Context(), c.Param("scope"), spec)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, compiled)
}

func (s *Server) handleGetPolicy(c echo.Context) error {
	compiled, err := s.engine.LoadPolicy(c.Request().Context(), c.Param("scope"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, compiled)
}

func (s *Server) handleQueue(c echo.Context) error {
	ctx := c.Request().Context()
	scopeID := c.Param("scope")
	cases, err := store.GetCases(ctx, s.engine.Store, scopeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	open := []mods.ModCase{}
	for _, mc := range cases {
		if mc.Status == mods.CaseOpen {
			open = append(open, mc)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"scopeId": scopeID, "cases": open})
}

func (s *Server) handleEligibility(c echo.Context) error {
	ctx := c.Request().Context()
	scopeID := c.Param("scope")
	elig, err := s.engine.Eligibility.Evaluate(ctx, scopeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pol, err := s.engine.LoadPolicy(ctx, scopeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"eligibility": elig,
		"state":       eligibility.DeriveState(pol.Mode, elig),
	})
}

// Reasoning artifacts are derived views: recomputed from the case and current
// policy on every read, never stored.
func (s *Server) handleReasoning(c echo.Context) error {
	ctx := c.Request().Context()
	mc, err := s.engine.GetCase(ctx, c.Param("scope"), c.Param("case"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if mc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	pol, err := s.engine.LoadPolicy(ctx, mc.ScopeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"artifact":  reasoning.Build(mc, pol),
		"consensus": reasoning.AnalyzeConsensus(mc),
	})
}

type resolveRequest struct {
	Verdict   mods.CaseStatus `json:"verdict"`
	Actor     mods.Actor      `json:"actor"`
	Rationale string          `json:"rationale"`
}

func (s *Server) handleResolve(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mc, err := s.engine.ResolveCase(c.Request().Context(), c.Param("scope"), c.Param("case"), req.Verdict, req.Actor, req.Rationale)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, mc)
}

func (s *Server) handleQuality(c echo.Context) error {
	report, err := s.engine.TemplateQualityReport(c.Request().Context(), c.Param("scope"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"scopeId": c.Param("scope"), "templates": report})
}
