package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-mfdc/infrastructure/middleware"
	"github.com/ahrav/go-mfdc/infrastructure/storage"
	"github.com/ahrav/go-mfdc/infrastructure/storage/sqlite"
	"github.com/ahrav/go-mfdc/internal/application"
	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

// errNoDatabase is returned by commands that need persisted sessions when
// neither --db nor storage.db_path is set.
var errNoDatabase = errors.New("a database is required: pass --db or set storage.db_path")

// app holds what every subcommand shares. It is populated by the root
// command's PersistentPreRunE.
type app struct {
	flags struct {
		config      string
		catalog     string
		db          string
		metricsFile string
		verbose     bool
	}

	cfg      *application.EngineConfig
	logger   *zap.Logger
	catalog  *domain.Catalog
	registry *prometheus.Registry
	metrics  ports.MetricsCollector
	server   *http.Server
	tracer   *sdktrace.TracerProvider
	store    *sqlite.Store
	backend  storage.Backend
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := application.LoadEngineConfig(a.flags.config)
	if err != nil {
		return err
	}
	if a.flags.catalog != "" {
		cfg.Catalog.Path = a.flags.catalog
	}
	if a.flags.db != "" {
		cfg.Storage.DBPath = a.flags.db
	}
	a.cfg = cfg

	if a.logger, err = buildLogger(cfg.Logging, a.flags.verbose); err != nil {
		return err
	}

	loader, err := application.NewCatalogLoader()
	if err != nil {
		return err
	}
	if a.catalog, err = loader.LoadFromFile(ctx, cfg.Catalog.Path); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = middleware.NewPrometheusMetrics(a.registry, cfg.Metrics.Namespace)
	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(cfg.Metrics.Addr); err != nil {
			return err
		}
	}

	if cfg.Tracing.Endpoint != "" {
		if err := a.setupTracing(ctx); err != nil {
			return err
		}
	}

	a.logger.Debug("configured",
		zap.String("catalog", cfg.Catalog.Path),
		zap.String("db", cfg.Storage.DBPath),
		zap.Int("sets", len(a.catalog.Sets())),
	)
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.flags.metricsFile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.flags.metricsFile, a.registry); err != nil {
			errs = append(errs, ports.NewMetricsError(a.cfg.Metrics.Namespace, "WriteToTextfile", err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(shutdownCtx))
	}
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(shutdownCtx))
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func buildLogger(cfg application.LoggingConfig, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if cfg.Development {
		config = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, ports.NewConfigError("logging.level", fmt.Errorf("invalid log level %q: %w", cfg.Level, err))
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// setupTracing exports unit spans over OTLP/HTTP. Pending spans are flushed
// by teardown.
func (a *app) setupTracing(ctx context.Context) error {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(a.cfg.Tracing.Endpoint))
	if err != nil {
		return ports.NewConfigError("tracing.endpoint", err)
	}

	name := a.cfg.Tracing.ServiceName
	if name == "" {
		name = "mfdc"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return fmt.Errorf("tracing resource: %w", err)
	}

	a.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	a.logger.Info("exporting traces", zap.String("endpoint", a.cfg.Tracing.Endpoint))
	return nil
}

// tracerProvider returns the exporting provider, or nil so the middleware
// falls back to the global one.
func (a *app) tracerProvider() trace.TracerProvider {
	if a.tracer == nil {
		return nil
	}
	return a.tracer
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ports.NewMetricsError(a.cfg.Metrics.Namespace, "Listen", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

// openStore opens the configured database, or an in-memory one when
// persistent is false and no path is set. Transient lock errors are
// retried per storage.retry.
func (a *app) openStore(persistent bool) (storage.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	path := a.cfg.Storage.DBPath
	var (
		store *sqlite.Store
		err   error
	)
	switch {
	case path != "":
		store, err = sqlite.Open(path)
	case persistent:
		return nil, errNoDatabase
	default:
		store, err = sqlite.OpenMemory()
	}
	if err != nil {
		return nil, err
	}
	a.store = store

	retry := a.cfg.Storage.Retry
	a.backend = storage.NewRetryingStore(store, storage.RetryConfig{
		MaxAttempts:   retry.MaxAttempts,
		BaseDelay:     time.Duration(retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:      time.Duration(retry.MaxDelayMS) * time.Millisecond,
		JitterPercent: storage.DefaultJitterPercent,
	}, sqlite.IsTransient)
	return a.backend, nil
}

func (a *app) engine(persistent bool) (*application.Engine, error) {
	store, err := a.openStore(persistent)
	if err != nil {
		return nil, err
	}
	return application.NewEngine(a.cfg, application.EngineDeps{
		Catalog:   a.catalog,
		Sessions:  store,
		Responses: store,
		Orders:    store,
		Metrics:   a.metrics,
		Logger:    a.logger,
		Middleware: []application.UnitMiddleware{
			func(u ports.Unit) ports.Unit { return middleware.WithTracing(u, a.tracerProvider()) },
			func(u ports.Unit) ports.Unit { return middleware.WithMetrics(u, a.metrics) },
		},
	})
}

// readAnswers decodes a JSON object of item id to answer from path, or from
// stdin when path is "-".
func readAnswers(path string, stdin io.Reader) (domain.AnswerMap, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	var answers domain.AnswerMap
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
