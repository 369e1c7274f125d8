package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/ca-srg/arxivbot/internal/config"
)

func TestSettingsFromConfig(t *testing.T) {
	t.Run("disabled config skips endpoint validation", func(t *testing.T) {
		s, err := SettingsFromConfig(&config.Config{})
		require.NoError(t, err)
		assert.False(t, s.Enabled)
		assert.Equal(t, "arxivbot", s.ServiceName)
		assert.Equal(t, protocolHTTP, s.Protocol)
		assert.Equal(t, "arxivbot", s.ResourceAttributes["service.name"])
	})

	t.Run("enabled requires endpoint", func(t *testing.T) {
		_, err := SettingsFromConfig(&config.Config{OTelEnabled: true})
		require.ErrorContains(t, err, "OTEL_EXPORTER_OTLP_ENDPOINT")
	})

	t.Run("rejects unknown protocol", func(t *testing.T) {
		_, err := SettingsFromConfig(&config.Config{
			OTelEnabled:              true,
			OTelExporterOTLPEndpoint: "http://collector:4318",
			OTelExporterOTLPProtocol: "thrift",
		})
		require.ErrorContains(t, err, "unsupported")
	})

	t.Run("rejects ratio outside range", func(t *testing.T) {
		_, err := SettingsFromConfig(&config.Config{
			OTelEnabled:              true,
			OTelExporterOTLPEndpoint: "http://collector:4318",
			OTelTracesSampler:        "traceidratio",
			OTelTracesSamplerArg:     1.5,
		})
		require.Error(t, err)
	})

	t.Run("parses resource attributes", func(t *testing.T) {
		s, err := SettingsFromConfig(&config.Config{OTelResourceAttributes: "deployment.environment=prod, team = research"})
		require.NoError(t, err)
		assert.Equal(t, "prod", s.ResourceAttributes["deployment.environment"])
		assert.Equal(t, "research", s.ResourceAttributes["team"])
	})

	t.Run("rejects malformed resource attributes", func(t *testing.T) {
		_, err := SettingsFromConfig(&config.Config{OTelResourceAttributes: "novalue"})
		require.Error(t, err)
	})
}

func TestSignalURL(t *testing.T) {
	cases := map[string]string{
		"http://collector:4318":            "http://collector:4318/v1/traces",
		"http://collector:4318/":           "http://collector:4318/v1/traces",
		"https://otel.example.com/otlp":    "https://otel.example.com/otlp/v1/traces",
		"http://collector:4318/v1/traces":  "http://collector:4318/v1/traces",
		"http://collector:4318/v1/traces/": "http://collector:4318/v1/traces",
	}
	for in, want := range cases {
		got, err := signalURL(in, "/v1/traces")
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestGRPCTarget(t *testing.T) {
	target, insecure, err := grpcTarget("collector:4317")
	require.NoError(t, err)
	assert.Equal(t, "collector:4317", target)
	assert.True(t, insecure)

	target, insecure, err = grpcTarget("https://otel.example.com:443")
	require.NoError(t, err)
	assert.Equal(t, "otel.example.com:443", target)
	assert.False(t, insecure)

	_, _, err = grpcTarget("collector")
	require.Error(t, err)

	_, _, err = grpcTarget("ftp://collector:21")
	require.Error(t, err)
}

func TestInitExportsToOTLPHTTP(t *testing.T) {
	var traceRequests atomic.Int32
	var metricRequests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/traces":
			traceRequests.Add(1)
		case "/v1/metrics":
			metricRequests.Add(1)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	shutdown, err := Init(context.Background(), &config.Config{
		OTelEnabled:              true,
		OTelServiceName:          "arxivbot-test",
		OTelExporterOTLPEndpoint: server.URL,
		OTelExporterOTLPProtocol: "http/protobuf",
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, span := otel.Tracer("arxivbot/test").Start(ctx, "test-span")
	span.End()

	counter, err := otel.Meter("arxivbot/test").Int64Counter("arxivbot.test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, shutdown(shutdownCtx))

	assert.GreaterOrEqual(t, traceRequests.Load(), int32(1), "no trace export received")
	assert.GreaterOrEqual(t, metricRequests.Load(), int32(1), "no metric export received")
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
