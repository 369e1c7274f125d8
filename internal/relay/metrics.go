package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	relayMetricsOnce       sync.Once
	relayMessageCounter    metric.Int64Counter
	relayErrorCounter      metric.Int64Counter
	relayAnalysisHistogram metric.Float64Histogram
)

func initRelayMetrics() {
	relayMetricsOnce.Do(func() {
		meter := otel.Meter("arxivbot/relay")

		var err error
		relayMessageCounter, err = meter.Int64Counter(
			"arxivbot.relay.messages.total",
			metric.WithDescription("Messages handled by the relay, by outcome"),
		)
		if err != nil {
			log.Printf("observability: failed to create relay message counter: %v", err)
		}

		relayErrorCounter, err = meter.Int64Counter(
			"arxivbot.relay.errors.total",
			metric.WithDescription("Relay failures, by kind"),
		)
		if err != nil {
			log.Printf("observability: failed to create relay error counter: %v", err)
		}

		relayAnalysisHistogram, err = meter.Float64Histogram(
			"arxivbot.relay.analysis_time",
			metric.WithDescription("Analysis API round trip time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Printf("observability: failed to create relay analysis histogram: %v", err)
		}
	})
}

func recordOutcome(ctx context.Context, outcome Outcome) {
	initRelayMetrics()
	if relayMessageCounter != nil {
		relayMessageCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("relay.outcome", string(outcome))))
	}
}

func recordError(ctx context.Context, kind string) {
	initRelayMetrics()
	if relayErrorCounter != nil {
		relayErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("relay.error.kind", kind)))
	}
}

func recordAnalysis(ctx context.Context, d time.Duration, ok bool) {
	initRelayMetrics()
	if relayAnalysisHistogram != nil {
		relayAnalysisHistogram.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.Bool("relay.analysis.ok", ok)))
	}
}
