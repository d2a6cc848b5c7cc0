package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
	"expensecli/internal/dataprocessing"
	apierrors "expensecli/internal/errors"
	"expensecli/internal/exporter"
	"expensecli/internal/infrastructure"
	customMiddleware "expensecli/internal/middleware"
	"expensecli/internal/services"
	handlers "expensecli/internal/transport/http"
	"expensecli/internal/validation"
	ws "expensecli/internal/websocket"
	"expensecli/pkg/contracts"
	"expensecli/pkg/contracts/events"
)

const (
	// StatusBroadcastInterval is how often dashboards receive a system.status event
	StatusBroadcastInterval = 30 * time.Second
	// RuntimeSampleInterval is how often runtime gauges are refreshed
	RuntimeSampleInterval = 15 * time.Second
	// uploadEnvelope is the request size allowed above the upload limit for multipart framing
	uploadEnvelope = 1 << 20
)

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Runtime         *infrastructure.RuntimeCollector
	Metrics         *infrastructure.AnalysisMetrics
	OTelProviders   *infrastructure.OTelProviders
	Logger          *slog.Logger

	// StatusInterval is the period between system.status broadcasts
	StatusInterval time.Duration

	errorHandler *apierrors.ErrorHandler
	pdf          handlers.PDFRenderer
	background   sync.WaitGroup
	stopOnce     sync.Once
	cancel       context.CancelFunc
}

// NewApplication wires every component from cfg. Nothing is started until Start.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:         cfg,
		Logger:         logger,
		OTelProviders:  otelProviders,
		StatusInterval: StatusBroadcastInterval,
		errorHandler:   apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(ctx); err != nil {
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices builds the engine, the websocket hub and the services on top of them
func (a *Application) initializeServices(ctx context.Context) error {
	meter := a.OTelProviders.Meter

	metrics, err := infrastructure.NewAnalysisMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	a.Metrics = metrics

	runtime, err := infrastructure.NewRuntimeCollector(meter)
	if err != nil {
		return fmt.Errorf("failed to register runtime metrics: %w", err)
	}
	a.Runtime = runtime

	wsMetrics, err := ws.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to register websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, wsMetrics)

	engine, err := analytics.NewEngine(a.Config.Analysis.EngineConfig(), a.Logger)
	if err != nil {
		return fmt.Errorf("invalid analysis defaults: %w", err)
	}

	deps := services.AnalysisDeps{
		Engine:    engine,
		Publisher: a.WebSocketHub,
		Metrics:   metrics,
		Tracer:    a.OTelProviders.Tracer,
		Logger:    a.Logger,
		Timeout:   a.Config.Analysis.Timeout,
	}
	if a.Config.Sheets.Enabled {
		source, err := dataprocessing.NewSheetsSource(ctx, a.Config.Sheets, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets source: %w", err)
		}
		deps.Sheets = source
	}

	a.AnalysisService = services.NewAnalysisService(deps, a.Config.Cache, a.Config.Analysis.Workers)
	a.HealthService = services.NewHealthService(a.WebSocketHub, a.AnalysisService, runtime, a.Config.Report.OutputDir, a.Logger)
	a.pdf = exporter.NewPDFRenderer(a.Config.Report, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// The websocket upgrade needs an unwrapped ResponseWriter, so it only
	// gets the middleware that leaves the writer alone
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	wsHandler := ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler, a.Config.Upload.MaxBytes+uploadEnvelope)
	files := validation.NewFileValidator(a.Config.Upload.AllowedExtensions, a.Config.Upload.MaxBytes, a.Logger)

	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	analysis := handlers.NewAnalysisHandler(a.AnalysisService, dataprocessing.NewLoader(a.Logger), files, a.errorHandler, a.Logger)
	reports := handlers.NewReportHandler(a.AnalysisService, a.pdf, a.Metrics, a.errorHandler, a.Logger)
	clientLogs := handlers.NewClientLogHandler(a.errorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(validator.ValidateRequest)
		r.NotFound(a.errorHandler.NotFound)
		r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

		health.RegisterRoutes(r)

		r.Route("/v1", func(r chi.Router) {
			r.Use(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)

			analysis.RegisterRoutes(r)
			reports.RegisterRoutes(r)
			r.With(customMiddleware.ContentTypeValidator("application/json")).Post("/client-logs", clientLogs.Handle)
		})
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// StartBackground starts the hub, the runtime sampler and the status
// broadcaster without serving HTTP
func (a *Application) StartBackground(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.WebSocketHub.Start()

	a.background.Add(2)
	go func() {
		defer a.background.Done()
		a.Runtime.Start(ctx, RuntimeSampleInterval)
	}()
	go func() {
		defer a.background.Done()
		a.broadcastStatus(ctx, a.StatusInterval)
	}()
}

// broadcastStatus publishes the system status until ctx is done
func (a *Application) broadcastStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.WebSocketHub.Publish(ctx, events.NewMessage(events.MessageTypeSystemStatus, "", a.HealthService.SystemStatus(ctx)))
		}
	}
}

// Start starts the background services and the HTTP server. A listener
// failure cancels through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	if dir := a.Config.Report.OutputDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create reports directory: %w", err)
		}
	}

	a.StartBackground(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application. It is safe to call more than once.
func (a *Application) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		if serr := a.Server.Shutdown(shutdownCtx); serr != nil {
			err = fmt.Errorf("server shutdown error: %w", serr)
		}

		if a.cancel != nil {
			a.cancel()
		}
		a.Runtime.Stop()
		a.background.Wait()
		a.WebSocketHub.Stop()

		if oerr := a.OTelProviders.Shutdown(shutdownCtx); oerr != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", oerr.Error()))
		}

		a.Logger.InfoContext(ctx, "Application shutdown complete")
	})
	return err
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
