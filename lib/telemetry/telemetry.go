package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"palmstat-backend/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ConfigPathEnv points at a telemetry config file, it takes precedence over
// searching for telemetry.json5.
const ConfigPathEnv = "PALMSTAT_TELEMETRY_CONFIG"

// Endpoint selects the OTLP exporter of one signal. gRPC wins when both
// endpoints are set, a signal without either endpoint is not exported.
type Endpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e Endpoint) protocol() string {
	switch {
	case e.GrpcEndpoint != "":
		return "grpc"
	case e.HttpEndpoint != "":
		return "http"
	}
	return ""
}

func (e Endpoint) url() string {
	if e.GrpcEndpoint != "" {
		return e.GrpcEndpoint
	}
	return e.HttpEndpoint
}

type OtlpConfig struct {
	Traces  Endpoint `json:"traces"`
	Metrics Endpoint `json:"metrics"`
}

type Config struct {
	ServiceVersion        string     `json:"service_version"`
	// becomes deployment.environment, e.g. "production" or "dev"
	Environment           string     `json:"environment"`
	// fraction of root spans kept, anything outside (0, 1) keeps every span
	SampleRatio           float64    `json:"sample_ratio"`
	ExportIntervalSeconds int        `json:"export_interval_seconds"`
	Otlp                  OtlpConfig `json:"otlp"`
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

func (c Config) exportInterval() time.Duration {
	if c.ExportIntervalSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.ExportIntervalSeconds) * time.Second
}

// Telemetry holds the shutdown hooks of every provider Setup installed.
type Telemetry struct {
	shutdown []func(context.Context) error
}

// Shutdown flushes and stops the installed providers.
func (t Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

var setupTestEnvironments = map[string]bool{}

// SetupForTesting installs telemetry once per test service name. Without a
// telemetry config the global no-op providers stay in place.
func SetupForTesting(t testing.TB, serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	ctx := context.Background()
	tel, err := SetupFromEnv(ctx, serviceName)
	if errors.Is(err, os.ErrNotExist) {
		return func() {}
	}
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(ctx)
		if err != nil {
			t.Fatal(err)
		}
	}
}

// SetupFromEnv reads the file named by PALMSTAT_TELEMETRY_CONFIG, or else the
// closest telemetry.json5 above the working directory, and calls Setup with it.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	var config Config
	var err error
	if path := os.Getenv(ConfigPathEnv); path != "" {
		config, err = configutil.ReadConfig[Config](path)
	} else {
		config, err = configutil.ReadRecursively[Config]("telemetry.json5")
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}

func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := newResource(serviceName, config)
	if err != nil {
		return Telemetry{}, err
	}

	var tel Telemetry
	if config.Otlp.Traces.protocol() != "" {
		provider, err := newTraceProvider(ctx, r, config)
		if err != nil {
			return Telemetry{}, err
		}
		otel.SetTracerProvider(provider)
		tel.shutdown = append(tel.shutdown, provider.Shutdown)
		slog.Info(
			"exporting traces",
			"protocol", config.Otlp.Traces.protocol(),
			"endpoint", config.Otlp.Traces.url(),
		)
	}
	if config.Otlp.Metrics.protocol() != "" {
		provider, err := newMetricProvider(ctx, r, config)
		if err != nil {
			tel.Shutdown(ctx)
			return Telemetry{}, err
		}
		otel.SetMeterProvider(provider)
		tel.shutdown = append(tel.shutdown, provider.Shutdown)
		slog.Info(
			"exporting metrics",
			"protocol", config.Otlp.Metrics.protocol(),
			"endpoint", config.Otlp.Metrics.url(),
			"interval", config.exportInterval(),
		)
	}
	return tel, nil
}

func newResource(serviceName string, config Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if config.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(config.ServiceVersion))
	}
	if config.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(config.Environment))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}
