package orchestrator

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/foosbot/goalkeeper/internal/orchestrator"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
