package hwnotifier

import (
	"hwnotifier/lib/telemetry"

	"go.opentelemetry.io/otel/metric"
)

var tracer = telemetry.Tracer("hwnotifier.services.hwnotifier")
var meter = telemetry.Meter("hwnotifier.services.hwnotifier")

var loginCounter, _ = meter.Int64Counter(
	"login_attempts",
	metric.WithDescription("login attempts by mode and outcome"),
)
var passCounter, _ = meter.Int64Counter(
	"passes",
	metric.WithDescription("detection passes by outcome"),
)
var newHomeworkCounter, _ = meter.Int64Counter("new_homework")
