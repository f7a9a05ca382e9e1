package openfinance

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncTracer          = otel.Tracer("ofsync/openfinance")
	syncMeter           = otel.Meter("ofsync/openfinance")
	syncRuns, _         = syncMeter.Int64Counter("ofsync.sync.runs", metric.WithDescription("Sync runs by status"))
	syncDuration, _     = syncMeter.Float64Histogram("ofsync.sync.duration", metric.WithDescription("Sync run duration in seconds"), metric.WithUnit("s"))
	syncTransactions, _ = syncMeter.Int64Counter("ofsync.sync.transactions", metric.WithDescription("Transactions upserted by sync runs"))
	webhookEvents, _    = syncMeter.Int64Counter("ofsync.webhook.events", metric.WithDescription("Webhook events by event and outcome"))
)
