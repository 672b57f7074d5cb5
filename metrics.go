package outflow

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	// MetricOutflowSubmitCount counts elements successfully forwarded to
	// the sink.
	MetricOutflowSubmitCount      = []string{"outflow", "submit", "count"}
	MetricOutflowSubmitErrorCount = []string{"outflow", "submit", "error", "count"}
	MetricOutflowBlockedCount     = []string{"outflow", "blocked", "count"}
	MetricOutflowWakeupCount      = []string{"outflow", "wakeup", "count"}
	MetricOutflowAdvanceCount     = []string{"outflow", "gate", "advance", "count"}
	MetricOutflowCompleteCount    = []string{"outflow", "complete", "count"}
)

type TelemetryLabel string

var (
	LabelError TelemetryLabel = "error"
	LabelPhase TelemetryLabel = "phase"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
