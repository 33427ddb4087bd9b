package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/doxa/internal/api/handlers"
	mw "github.com/Harshitk-cp/doxa/internal/api/middleware"
	"github.com/Harshitk-cp/doxa/internal/buildconfig"
	"github.com/Harshitk-cp/doxa/internal/config"
	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/Harshitk-cp/doxa/internal/embedding"
	"github.com/Harshitk-cp/doxa/internal/llm"
	"github.com/Harshitk-cp/doxa/internal/service"
	"github.com/Harshitk-cp/doxa/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the router and every background service for lifecycle
// management. Construction wires stores, clients and services explicitly; no
// package globals.
type App struct {
	Router    *chi.Mux
	Pipeline  *service.Pipeline
	Attention *service.AttentionMonitor
	Decay     *service.DecayService
	Profile   *service.ProfileSynthesizer

	activity *service.FileActivitySource // nil unless a directory is watched
	queue    domain.ObservationQueue
	db       *store.DB
	logger   *zap.Logger

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires the full service graph. Configuration problems (unknown
// provider, missing API key, invalid decision thresholds) fail construction
// rather than surfacing later mid-pipeline.
func NewApp(db *store.DB, q domain.ObservationQueue, logger *zap.Logger) (*App, error) {
	// Stores
	observationStore := store.NewObservationStore(db)
	decisionStore := store.NewDecisionStore(db)
	profileStore := store.NewProfileStore(db)

	// External clients via provider factory
	llmClient, err := llm.NewClient(config.LLMProvider(), config.LLMAPIKey())
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	logger.Info("llm client initialized", zap.String("provider", config.LLMProvider()))

	var embedder domain.EmbeddingClient
	if provider := config.EmbeddingProvider(); provider != "none" {
		embedder, err = embedding.NewClient(provider, config.OpenAIAPIKey())
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		logger.Info("embedding client initialized", zap.String("provider", provider))
	}

	propositionStore := store.NewPropositionStore(db, embedder, logger)

	// Attention signals. A watched directory feeds the activity count;
	// without one, accepted observations stand in for input activity.
	var activity domain.ActivitySource
	var manual *service.ManualActivitySource
	var fileActivity *service.FileActivitySource
	if dir := config.ActivityDir(); dir != "" {
		fileActivity, err = service.NewFileActivitySource(dir, logger)
		if err != nil {
			logger.Warn("activity watcher unavailable, falling back to ingress-driven activity",
				zap.String("dir", dir), zap.Error(err))
		} else {
			activity = fileActivity
		}
	}
	if activity == nil {
		manual = service.NewManualActivitySource()
		activity = manual
	}

	monitor := service.NewAttentionMonitor(activity, service.NewExecAppSource(config.AppProbeCommand()),
		service.AttentionConfig{
			Interval:   config.AttentionInterval(),
			FocusApps:  config.FocusApps(),
			CasualApps: config.CasualApps(),
		}, logger)

	engine, err := service.NewDecisionEngine(service.DecisionConfig{
		HighFocusThreshold:   config.HighFocusThreshold(),
		LowFocusThreshold:    config.LowFocusThreshold(),
		BaseInterruptionCost: config.BaseInterruptionCost(),
		HighFocusMultiplier:  config.HighFocusMultiplier(),
		LowFocusMultiplier:   config.LowFocusMultiplier(),
	})
	if err != nil {
		return nil, fmt.Errorf("decision engine: %w", err)
	}

	emitter := service.NewWebhookEmitter(config.DialogueWebhookURL(), config.ActionWebhookURL(), logger)

	pipeline := service.NewPipeline(q, observationStore, propositionStore, decisionStore,
		llmClient, engine, monitor, emitter, emitter, logger)
	pipeline.SetWorkers(config.PipelineWorkers())
	pipeline.SetMaxRetries(config.LLMMaxRetries())
	pipeline.SetLLMTimeout(config.LLMTimeout())

	decaySvc := service.NewDecayService(propositionStore, logger)
	decaySvc.SetInterval(config.DecayInterval())
	decaySvc.SetHalfLife(config.DecayHalfLifeHours())

	profileSvc := service.NewProfileSynthesizer(propositionStore, profileStore, llmClient, logger)
	profileSvc.SetTrigger(config.ProfileTriggerCount())

	// Handlers
	observationHandler := handlers.NewObservationHandler(q, manual)
	propositionHandler := handlers.NewPropositionHandler(propositionStore, decisionStore)
	attentionHandler := handlers.NewAttentionHandler(monitor)
	profileHandler := handlers.NewProfileHandler(profileStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Pipeline:  pipeline,
		Attention: monitor,
		Decay:     decaySvc,
		Profile:   profileSvc,
		activity:  fileActivity,
		queue:     q,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/observations", observationHandler.Create)

		r.Route("/propositions", func(r chi.Router) {
			r.Get("/search", propositionHandler.Search)
			r.Get("/{id}", propositionHandler.GetByID)
		})

		r.Route("/groups/{id}", func(r chi.Router) {
			r.Get("/history", propositionHandler.GroupHistory)
			r.Get("/decisions", propositionHandler.GroupDecisions)
		})

		r.Get("/attention", attentionHandler.Get)
		r.Get("/profile", profileHandler.Get)
	})

	return app, nil
}

// Start launches the attention monitor and the background services. The
// monitor starts first so the pipeline's first decisions sample a computed
// snapshot instead of the neutral seed.
func (app *App) Start() {
	app.Attention.Start()
	app.Pipeline.Start()
	app.Decay.Start()
	app.Profile.Start()
}

// Stop shuts the background services down in dependency order: the pipeline
// first, so its final flushed batches can still sample attention and emit,
// then the periodic services, then the signal sources. The caller closes the
// queue and store afterwards.
func (app *App) Stop() {
	app.Pipeline.Stop()
	app.Decay.Stop()
	app.Profile.Stop()
	app.Attention.Stop()
	if app.activity != nil {
		if err := app.activity.Close(); err != nil {
			app.logger.Warn("activity watcher close failed", zap.Error(err))
		}
	}
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := app.db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"queue_pending":  app.queue.Pending(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
