package metrics

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "meterbill_"

	resultSuccess = "success"
	resultError   = "error"
	resultInvalid = "invalid"
)

var (
	registerOnce sync.Once

	validationsTotal *prometheus.CounterVec
	validationIssues *prometheus.CounterVec

	calculationTotal   *prometheus.CounterVec
	calculationLatency *prometheus.HistogramVec

	readingsSavedTotal *prometheus.CounterVec
	readingsStored     prometheus.Gauge

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	snapshotTotal *prometheus.CounterVec

	storeBackend *prometheus.GaugeVec
)

// Init registers billing metrics on the default registry.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		validationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validations_total",
				Help: "Total reading validations by result",
			},
			[]string{"result"},
		)
		validationIssues = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validation_issues_total",
				Help: "Total validation messages by severity",
			},
			[]string{"severity"},
		)

		calculationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculation_total",
				Help: "Total bill calculations by result",
			},
			[]string{"result"},
		)
		calculationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_latency_seconds",
				Help:    "Bill calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		readingsSavedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_saved_total",
				Help: "Total readings saved to history by result",
			},
			[]string{"result"},
		)
		readingsStored = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "readings_stored",
				Help: "Readings held in history after the last write",
			},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		snapshotTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_total",
				Help: "Total history snapshot operations by operation and result",
			},
			[]string{"operation", "result"},
		)

		storeBackend = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "store_backend",
				Help: "Active history store backend, 1 for the one in use",
			},
			[]string{"backend", "fallback"},
		)

		prometheus.MustRegister(
			validationsTotal,
			validationIssues,
			calculationTotal,
			calculationLatency,
			readingsSavedTotal,
			readingsStored,
			reportExportTotal,
			reportExportLatency,
			snapshotTotal,
			storeBackend,
		)
		if logger != nil {
			logger.Printf("metrics registered: prefix=%s", metricPrefix)
		}
	})
}

// ObserveValidation records a validation outcome and its message counts.
func ObserveValidation(valid bool, errorCount, warningCount int) {
	result := resultSuccess
	if !valid {
		result = resultInvalid
	}
	if validationsTotal != nil {
		validationsTotal.WithLabelValues(result).Inc()
	}
	if validationIssues != nil {
		validationIssues.WithLabelValues("error").Add(float64(errorCount))
		validationIssues.WithLabelValues("warning").Add(float64(warningCount))
	}
}

// ObserveCalculation records calculation latency and result.
func ObserveCalculation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if calculationTotal != nil {
		calculationTotal.WithLabelValues(result).Inc()
	}
	if calculationLatency != nil {
		calculationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReadingSaved increments the saved reading counter.
func IncReadingSaved(result string) {
	if result == "" {
		result = resultSuccess
	}
	if readingsSavedTotal != nil {
		readingsSavedTotal.WithLabelValues(result).Inc()
	}
}

// SetReadingsStored sets the history size gauge.
func SetReadingsStored(count int) {
	if count < 0 {
		count = 0
	}
	if readingsStored != nil {
		readingsStored.Set(float64(count))
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncSnapshot increments snapshot export/import counters.
func IncSnapshot(operation, result string) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if snapshotTotal != nil {
		snapshotTotal.WithLabelValues(operation, result).Inc()
	}
}

// SetStoreBackend marks backend as the active store.
func SetStoreBackend(backend string, fallback bool) {
	if backend == "" {
		backend = "unknown"
	}
	if storeBackend != nil {
		storeBackend.WithLabelValues(backend, fmt.Sprint(fallback)).Set(1)
	}
}

// WriteTextfile writes every registered metric to path in the text exposition format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultInvalid = resultInvalid

	SnapshotExport = "export"
	SnapshotImport = "import"
)
