package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neverl0se/forgeModsConflictMediator/internal/analysis"
	"github.com/neverl0se/forgeModsConflictMediator/internal/api/handlers"
	mw "github.com/neverl0se/forgeModsConflictMediator/internal/api/middleware"
	"github.com/neverl0se/forgeModsConflictMediator/internal/buildconfig"
	"github.com/neverl0se/forgeModsConflictMediator/internal/catalog"
	"github.com/neverl0se/forgeModsConflictMediator/internal/config"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/presenter"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"github.com/neverl0se/forgeModsConflictMediator/internal/service"
	"github.com/neverl0se/forgeModsConflictMediator/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Mediation *service.MediationService
	Reporter  *service.Reporter
	Decisions *presenter.DecisionQueue
	Registry  *registry.Registry
	Catalog   *catalog.Catalog
	Limiter   *mw.RateLimiter

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires the mediation stack from config. db may be nil, in which case
// the journal is kept in memory.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Registry
	reg := registry.New(config.RegistryPath(), logger.Named("registry"))
	if err := reg.Load(); err != nil {
		// A broken registry file must not block startup; nothing is
		// disabled until an operator fixes or replaces it.
		logger.Error("failed to load disablement registry, starting with nothing disabled",
			zap.String("path", reg.Path()), zap.Error(err))
	}

	// Loaded components
	components := catalog.New()
	if path := config.ComponentsFile(); path != "" {
		manifest, err := catalog.LoadManifest(path)
		if err != nil {
			logger.Warn("component manifest not loaded", zap.String("path", path), zap.Error(err))
		} else {
			manifest.Apply(components, reg)
			logger.Info("component manifest loaded", zap.String("path", path), zap.Int("components", components.Len()))
		}
	}

	// Journal
	var journal domain.JournalStore
	if db != nil {
		journal = store.NewJournalStore(db)
	} else {
		journal = store.NewMemoryJournal(config.JournalCapacity())
	}

	// Analysis
	analyzer := analysis.NewAnalyzer(analysis.NewExtractor(config.PatchNamespace()), components, logger.Named("analyzer"))
	analyzer.SetMaxCauseDepth(config.MaxCauseDepth())
	analyzer.SetIgnoredOwners(config.IgnoredOwners())
	if markers := config.DuplicateMarkers(); len(markers) > 0 {
		analyzer.SetDuplicateMarkers(markers)
	}

	// Services
	decisions := presenter.NewDecisionQueue(logger.Named("decisions"))
	mediationSvc := service.NewMediationService(analyzer, reg, nil, journal, logger.Named("mediation"))
	if config.Presenter() == "queue" {
		mediationSvc.SetPresenter(decisions)
	} else {
		logger.Info("no presenter configured, conflicts will be logged only")
	}
	reporter := service.NewReporter(mediationSvc, config.ReporterWorkers(), config.ReporterQueueSize(), logger.Named("reporter"))

	// Handlers
	failureHandler := handlers.NewFailureHandler(mediationSvc, reporter)
	signalHandler := handlers.NewSignalHandler(reporter)
	decisionHandler := handlers.NewDecisionHandler(decisions)
	registryHandler := handlers.NewRegistryHandler(reg, logger.Named("registry"))
	componentHandler := handlers.NewComponentHandler(components, reg)
	sessionHandler := handlers.NewSessionHandler(journal)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Mediation: mediationSvc,
		Reporter:  reporter,
		Decisions: decisions,
		Registry:  reg,
		Catalog:   components,
		Limiter:   mw.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst()),
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                     // Generate/extract request ID first
	r.Use(middleware.RealIP)                // Extract real IP
	r.Use(metricsCollector.Middleware)      // Collect metrics
	r.Use(mw.Logging(logger.Named("http"))) // Log all requests
	r.Use(middleware.Recoverer)             // Recover from panics
	r.Use(mw.RateLimit(app.Limiter))        // Rate limiting

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.OperatorAuth(config.OperatorToken()))

		r.Get("/status", app.statusHandler())

		// Inbound failure and conflict ports
		r.Route("/failures", func(r chi.Router) {
			r.Post("/", failureHandler.Report)
			r.Post("/analyze", failureHandler.Analyze)
			r.Post("/text", failureHandler.ReportText)
		})
		r.Post("/conflict-signals", signalHandler.Create)

		// Pending operator decisions
		r.Route("/decisions", func(r chi.Router) {
			r.Get("/", decisionHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", decisionHandler.GetByID)
				r.Post("/", decisionHandler.Resolve)
				r.Post("/skip", decisionHandler.Skip)
			})
		})

		// Disablement registry
		r.Route("/registry", func(r chi.Router) {
			r.Get("/", registryHandler.Get)
			r.Post("/owners/{owner}/artifacts/{id}", registryHandler.DisableArtifact)
			r.Delete("/owners/{owner}/artifacts/{id}", registryHandler.EnableArtifact)
			r.Post("/patches/{id}", registryHandler.DisablePatch)
			r.Delete("/patches/{id}", registryHandler.EnablePatch)
		})

		// Loaded components
		r.Route("/components", func(r chi.Router) {
			r.Get("/", componentHandler.List)
			r.Put("/", componentHandler.Replace)
			r.Post("/{owner}/artifacts", componentHandler.RegisterArtifacts)
		})

		// Mediation journal
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.List)
			r.Get("/{id}", sessionHandler.GetByID)
		})
	})

	return app
}

// Close releases sessions waiting on an operator and drains the reporter.
func (app *App) Close() {
	app.Decisions.Close()
	app.Reporter.Stop()
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		snap := app.Registry.Snapshot()

		response := map[string]any{
			"build":             buildconfig.VersionInfo(),
			"uptime_seconds":    uptime.Seconds(),
			"uptime_human":      uptime.Round(time.Second).String(),
			"request_count":     app.requestCount.Load(),
			"error_count":       app.errorCount.Load(),
			"goroutines":        runtime.NumGoroutine(),
			"pending_decisions": app.Decisions.Len(),
			"components":        app.Catalog.Len(),
			"registry": map[string]any{
				"path":             app.Registry.Path(),
				"disabled_patches": len(snap.DisabledPatches),
				"disabled_total":   snap.Count(),
			},
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure implementations satisfy interfaces at compile time.
var (
	_ domain.JournalStore        = (*store.JournalStore)(nil)
	_ domain.JournalStore        = (*store.MemoryJournal)(nil)
	_ domain.DisablementRegistry = (*registry.Registry)(nil)
	_ domain.ComponentSource     = (*catalog.Catalog)(nil)
	_ domain.Presenter           = (*presenter.DecisionQueue)(nil)
	_ domain.Presenter           = (*presenter.Terminal)(nil)
	_ catalog.ArtifactRegistrar  = (*registry.Registry)(nil)
)
