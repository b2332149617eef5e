package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "tester"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	itemResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_item_results_total",
		Help:      "Count of test item outcomes per configuration",
	}, []string{
		"run_id",
		"configuration",
		"outcome",
	})

	itemDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_item_duration_seconds",
		Help:      "Wall time spent processing a test item configuration",
	}, []string{
		"run_id",
		"configuration",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Outcome counts of the most recent run",
	}, []string{
		"run_id",
		"outcome",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the most recent run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordItemResult records the outcome of one test item configuration.
func RecordItemResult(runID string, configuration string, result int, duration time.Duration) {
	outcome := outcomeLabel(result)
	if Debug {
		log.Debug("metric inc",
			"m", "test_item_results_total",
			"run_id", runID,
			"configuration", configuration,
			"outcome", outcome,
		)
	}
	itemResultsTotal.WithLabelValues(runID, configuration, outcome).Inc()
	itemDuration.WithLabelValues(runID, configuration).Set(duration.Seconds())
}

// RecordRun records the aggregate outcome counts and wall time of a run.
func RecordRun(runID string, errors int, warnings int, successes int, duration time.Duration) {
	runResults.WithLabelValues(runID, "error").Set(float64(errors))
	runResults.WithLabelValues(runID, "warning").Set(float64(warnings))
	runResults.WithLabelValues(runID, "success").Set(float64(successes))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func outcomeLabel(result int) string {
	switch {
	case result < 0:
		return "error"
	case result > 0:
		return "warning"
	default:
		return "success"
	}
}
