// Package metrics configures the global OpenTelemetry meter provider and the
// Prometheus scrape endpoint.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metric2 "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

func getReaders(ctx context.Context, cfg Config) ([]metric2.Reader, error) {
	var readers []metric2.Reader

	for _, provider := range cfg.Provider {
		switch provider.Provider {
		case PrometheusProvider:
			opts := []otelprom.Option{}
			if cfg.Registry != nil {
				opts = append(opts, otelprom.WithRegisterer(cfg.Registry))
			}
			promExporter, err := otelprom.New(opts...)
			if err != nil {
				return nil, err
			}

			readers = append(readers, promExporter)
		case OtelCollector:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(provider.Endpoint),
				otlpmetricgrpc.WithHeaders(provider.Headers),
			}

			if provider.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}

			exp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, err
			}

			readers = append(readers, metric2.NewPeriodicReader(exp))
		}
	}

	return readers, nil
}

// NewMetricProvider builds a meter provider from the configured readers and
// installs it globally. With no readers the provider records but exports nothing.
func NewMetricProvider(options ...OptionFn) (MetricProvider, error) {
	ctx := context.Background()

	var cfg Config

	for _, opt := range options {
		cfg = opt(cfg)
	}

	readers, err := getReaders(ctx, cfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("metrics"))
	}

	var metricsOps []metric2.Option

	for _, reader := range readers {
		metricsOps = append(metricsOps, metric2.WithReader(reader))
	}

	metricsOps = append(metricsOps, metric2.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	meterProvider := metric2.NewMeterProvider(metricsOps...)

	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// PromServer serves /metrics for Prometheus scrapes.
type PromServer struct {
	cfg      PromServerConfig
	logger   logger.LoggerInterface
	server   *http.Server
	listener net.Listener
}

// NewPromServer creates a scrape server. The default port is 2223.
func NewPromServer(log logger.LoggerInterface, opt ...PromOptionFn) *PromServer {
	cfg := PromServerConfig{port: "2223"}

	for _, o := range opt {
		cfg = o(cfg)
	}

	return &PromServer{cfg: cfg, logger: log}
}

// Handler returns the scrape handler for the configured gatherer.
func (s *PromServer) Handler() http.Handler {
	if s.cfg.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.cfg.gatherer, promhttp.HandlerOpts{})
}

// Start binds the port and serves in the background.
func (s *PromServer) Start() error {
	ln, err := net.Listen("tcp", ":"+s.cfg.port)
	if err != nil {
		return apperror.New(apperror.CodeListenerBindFailed,
			apperror.WithCause(err),
			apperror.WithContext("metrics"))
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.logger.Info(context.Background(), "serving metrics", "addr", ln.Addr().String(), "path", "/metrics")

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), "metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address.
func (s *PromServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the scrape server down.
func (s *PromServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
