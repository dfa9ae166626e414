// Package main provides the dynamic data-access gateway entry point.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lattice-data/gateway/applications/httpapi"
	"github.com/lattice-data/gateway/domain/configstore"
	"github.com/lattice-data/gateway/domain/orchestrator"
	"github.com/lattice-data/gateway/domain/query"
	"github.com/lattice-data/gateway/domain/registry"
	"github.com/lattice-data/gateway/domain/store"
	"github.com/lattice-data/gateway/domain/write"
	slerrors "github.com/lattice-data/gateway/infrastructure/errors"
	sllogging "github.com/lattice-data/gateway/infrastructure/logging"
	slmetrics "github.com/lattice-data/gateway/infrastructure/metrics"
	slmiddleware "github.com/lattice-data/gateway/infrastructure/middleware"
	"github.com/lattice-data/gateway/pkg/config"
	"github.com/lattice-data/gateway/pkg/pgnotify"
	"github.com/lattice-data/gateway/pkg/storage/postgres"
	"github.com/lattice-data/gateway/pkg/tracing"
	"github.com/lattice-data/gateway/pkg/version"
)

const (
	documentTable = "gateway_documents"
	configTable   = "gateway_config_nodes"
)

// configRootPath is this deployment's configuration-store subtree,
// /{ENV}/{SERVICE}; main sets it once the configuration is validated.
var configRootPath string

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL: failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("CRITICAL: invalid configuration: %v", err)
	}
	configRootPath = "/" + cfg.Env + "/" + cfg.Service

	logger := sllogging.NewFromEnv(cfg.Service)

	db, err := sql.Open(cfg.Database.Driver, databaseDSN(cfg))
	if err != nil {
		log.Fatalf("CRITICAL: failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("CRITICAL: failed to reach database: %v", err)
	}

	documentStore := store.NewPostgresStore(postgres.NewBaseStore(db, documentTable))

	bus, err := pgnotify.NewWithDB(db, configStoreDSN(cfg))
	if err != nil {
		log.Fatalf("CRITICAL: failed to start configuration event bus: %v", err)
	}
	defer bus.Close()

	configClient := configstore.NewClient(db, bus, configTable)
	cache := configstore.NewCache()
	if err := loadConfigTree(ctx, configClient, cache); err != nil {
		log.Fatalf("CRITICAL: failed to load configuration tree: %v", err)
	}

	endpoints := registry.NewEndpointRegistry()
	if err := endpoints.Rebuild(cache, configRootPath); err != nil {
		log.Fatalf("CRITICAL: failed to build endpoint registry: %v", err)
	}

	var enums *registry.EnumRegistry
	if cfg.Globals.EnableEnumService && cfg.EnumService.Enabled {
		enums = registry.NewEnumRegistry(
			registry.NewHTTPSource(cfg.EnumService.BaseURL, &http.Client{Timeout: 10 * time.Second}),
			cfg.EnumService.RefreshInterval,
			cfg.Globals.FailOnEnumLoadFailure,
		)
		if err := enums.Initialize(ctx); err != nil {
			log.Fatalf("CRITICAL: failed to initialize enum registry: %v", err)
		}
	}

	schemas := registry.NewSchemaRegistry(enums)
	if err := loadSchemas(cache, schemas); err != nil {
		log.Fatalf("CRITICAL: failed to load schemas: %v", err)
	}

	if err := configClient.WatchTree(ctx, configRootPath, func(event configstore.Event) {
		logger.Info(ctx, "configuration change observed, rebuilding endpoint registry", map[string]interface{}{"path": event.Path})
		if err := loadConfigTree(ctx, configClient, cache); err != nil {
			logger.Error(ctx, "configuration re-read failed, keeping previous snapshot", err, nil)
			return
		}
		if err := endpoints.Rebuild(cache, configRootPath); err != nil {
			logger.Error(ctx, "endpoint registry rebuild failed, keeping previous snapshot", err, nil)
		}
	}); err != nil {
		logger.Warn(ctx, "failed to start configuration watch, running on static snapshot", map[string]interface{}{"error": err.Error()})
	}

	queryExecutor := query.NewExecutor(documentStore)
	writeExecutor := write.NewExecutor(documentStore, write.NewPipeline(schemas))
	orc := orchestrator.New(endpoints, schemas, enums, queryExecutor, writeExecutor)

	router := mux.NewRouter()
	router.Use(slmiddleware.LoggingMiddleware(logger))
	router.Use(slmiddleware.NewRecoveryMiddleware(logger).Handler)
	router.Use(slmiddleware.EnvValidationMiddleware(cfg.Env, cfg.Globals.IsEnvValidate))

	if slmetrics.Enabled() {
		metricsCollector := slmetrics.Init(cfg.Service)
		router.Use(slmiddleware.MetricsMiddleware(cfg.Service, metricsCollector))
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	router.Use(slmiddleware.NewCORSMiddleware(&slmiddleware.CORSConfig{
		AllowedOrigins:         corsAllowedOrigins(),
		AllowedMethods:         []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:         []string{"Content-Type", "X-API-Key", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders:         []string{"X-Request-Id", "X-Trace-ID"},
		AllowCredentials:       true,
		MaxAgeSeconds:          3600,
		PreflightStatus:        http.StatusOK,
		RejectDisallowedOrigin: true,
	}).Handler)
	router.Use(slmiddleware.NewBodyLimitMiddleware(10 << 20).Handler)
	router.Use(slmiddleware.NewSecurityHeadersMiddleware(slmiddleware.DefaultSecurityHeaders()).Handler)

	rateLimiter, stopRateLimiter := newGatewayRateLimiter(logger)
	if stopRateLimiter != nil {
		defer stopRateLimiter()
	}

	ready := true
	router.HandleFunc("/healthz", slmiddleware.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", slmiddleware.ReadinessHandler(&ready)).Methods(http.MethodGet)
	router.HandleFunc("/version", versionHandler).Methods(http.MethodGet)

	tracer, stopTracer := newGatewayTracer(ctx, cfg, logger)
	if stopTracer != nil {
		defer stopTracer()
	}

	gateway := httpapi.NewGatewayHandler(orc, cfg.Server.ApiPrefix, logger).WithTracer(tracer)
	var gatewayHandler http.Handler = gateway
	if rateLimiter != nil {
		gatewayHandler = rateLimiter.Handler(gateway)
	}
	router.PathPrefix(cfg.Server.ApiPrefix).Handler(gatewayHandler)

	server := &http.Server{
		Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	shutdown := slmiddleware.NewGracefulShutdown(server, 30*time.Second)
	shutdown.OnShutdown(func() {
		ready = false
		if enums != nil {
			enums.Stop()
		}
		bus.Close()
	})
	shutdown.ListenForSignals()

	logger.Info(ctx, "gateway starting", map[string]interface{}{"addr": server.Addr, "version": version.Version})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("CRITICAL: server error: %v", err)
	}
	shutdown.Wait()
	logger.Info(ctx, "gateway stopped", nil)
}

func databaseDSN(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Database.DSN) != "" {
		return cfg.Database.DSN
	}
	return cfg.Database.ConnectionString()
}

func configStoreDSN(cfg *config.Config) string {
	if strings.TrimSpace(cfg.ConfigStore.DSN) != "" {
		return cfg.ConfigStore.DSN
	}
	return databaseDSN(cfg)
}

func loadConfigTree(ctx context.Context, client *configstore.Client, cache *configstore.Cache) error {
	tree, err := client.ReadTree(ctx, configRootPath)
	if err != nil {
		return err
	}
	cache.ReplaceSubtree(configRootPath, tree)
	return nil
}

func loadSchemas(cache *configstore.Cache, schemas *registry.SchemaRegistry) error {
	root := configRootPath + "/schemas"
	for _, name := range cache.Children(root) {
		raw, ok := cache.Get(root + "/" + name)
		if !ok {
			continue
		}
		if _, err := schemas.Load(name, raw); err != nil {
			return slerrors.Internal("failed to load schema "+name, err)
		}
	}
	return nil
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"version":"` + version.Version + `"}`))
}

func corsAllowedOrigins() []string {
	allowed := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if allowed == "" {
		allowed = "http://localhost:3000"
	}
	parts := strings.Split(allowed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func newGatewayTracer(ctx context.Context, cfg *config.Config, logger *sllogging.Logger) (tracing.Tracer, func()) {
	if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return tracing.NoopTracer, nil
	}
	provider, shutdown, err := tracing.NewOTLPTracerProvider(ctx, tracing.OTLPConfig{
		Endpoint:           cfg.Tracing.Endpoint,
		Insecure:           cfg.Tracing.Insecure,
		ServiceName:        cfg.Service,
		ResourceAttributes: cfg.Tracing.ResourceAttributes,
	})
	if err != nil {
		logger.Warn(ctx, "failed to start tracing exporter, continuing without spans", map[string]interface{}{"error": err.Error()})
		return tracing.NoopTracer, nil
	}
	tracer := tracing.ConfigureGlobalTracer(provider, "gateway")
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "tracing shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return tracer, stop
}

func newGatewayRateLimiter(logger *sllogging.Logger) (limiter *slmiddleware.RateLimiter, stop func()) {
	enabledRaw := strings.ToLower(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")))
	switch enabledRaw {
	case "1", "true", "yes", "on":
	default:
		return nil, nil
	}
	rl := slmiddleware.NewRateLimiterWithWindow(100, time.Minute, 100, logger)
	stop = rl.StartCleanup(5 * time.Minute)
	return rl, stop
}

