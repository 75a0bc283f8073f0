package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEndpointProtocol(t *testing.T) {
	require.Equal(t, "", Endpoint{}.protocol())
	require.Equal(t, "http", Endpoint{HttpEndpoint: "http://localhost:4318"}.protocol())

	both := Endpoint{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "http://localhost:4318"}
	require.Equal(t, "grpc", both.protocol())
	require.Equal(t, "http://localhost:4317", both.url())
}

func TestConfigDefaults(t *testing.T) {
	require.Equal(t, 15*time.Second, Config{}.exportInterval())
	require.Equal(t, 2*time.Second, Config{ExportIntervalSeconds: 2}.exportInterval())

	require.Equal(t, sdktrace.AlwaysSample().Description(), Config{}.sampler().Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), Config{SampleRatio: 1.5}.sampler().Description())
	require.Contains(t, Config{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "test:telemetry", Config{Environment: "test"})
	require.NoError(t, err)
	require.Empty(t, tel.shutdown)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otel.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{ environment: "ci" }`), 0600))
	t.Setenv(ConfigPathEnv, path)

	tel, err := SetupFromEnv(context.Background(), "test:telemetry")
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))

	t.Setenv(ConfigPathEnv, filepath.Join(dir, "missing.json5"))
	_, err = SetupFromEnv(context.Background(), "test:telemetry")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	reg, err := registerProcessGauges(provider.Meter("test"))
	require.NoError(t, err)
	defer reg.Unregister()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	require.True(t, names["process.goroutines"])
	require.True(t, names["process.heap.objects"])
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	client := resty.New().SetBaseURL(srv.URL)
	instrumentResty(client, provider.Tracer("test"))

	_, err := client.R().
		SetHeader("Cookie", "session=abc").
		SetFormData(map[string]string{"username": "planter", "password": "hunter2"}).
		Post("/login")
	require.NoError(t, err)
	_, err = client.R().Get("/missing")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	login := spans[0]
	require.Equal(t, "http POST /login", login.Name())
	cookie, ok := attrValue(login.Attributes(), "http.request.header.cookie")
	require.True(t, ok)
	require.Equal(t, "<redacted>", cookie.AsString())
	setCookie, ok := attrValue(login.Attributes(), "http.response.header.set-cookie")
	require.True(t, ok)
	require.Equal(t, "<redacted>", setCookie.AsString())
	body, ok := attrValue(login.Attributes(), "http.request.body")
	require.True(t, ok)
	require.NotContains(t, body.AsString(), "hunter2")
	require.Contains(t, body.AsString(), "planter")

	missing := spans[1]
	require.Equal(t, "http GET /missing", missing.Name())
	require.Equal(t, "Error", missing.Status().Code.String())
}

func TestLogHandlers(t *testing.T) {
	var out strings.Builder
	logger := slog.New(newHandler(&out, "json", slog.LevelInfo, false))
	logger.Debug("hidden")
	logger.Info("collected", "report", "export")
	require.Contains(t, out.String(), `"msg":"collected"`)
	require.NotContains(t, out.String(), "hidden")

	out.Reset()
	logger = slog.New(newHandler(&out, "", slog.LevelDebug, false))
	logger.Debug("fetched", "category", "Products")
	require.Contains(t, out.String(), "fetched")
	require.Contains(t, out.String(), "category=Products")
	require.NotContains(t, out.String(), "\x1b[")
}
