package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "attrition"

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
	OutcomeDegraded = "degraded"
)

var (
	batchesScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_scored_total",
			Help:      "Scoring passes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	recordsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_scored_total",
			Help:      "Employee records scored, partitioned by risk label.",
		},
		[]string{"label"},
	)

	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_translations_total",
			Help:      "Natural-language query translations, partitioned by planner and outcome.",
		},
		[]string{"planner", "outcome"},
	)

	filterWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_warnings_total",
			Help:      "Filter conditions dropped or skipped, partitioned by warning kind.",
		},
		[]string{"kind"},
	)

	insightsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_total",
			Help:      "Insight generations, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	llmRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_seconds",
			Help:      "Language model call latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"purpose", "outcome"},
	)
)

// Register attaches collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		batchesScoredTotal,
		recordsScoredTotal,
		translationsTotal,
		filterWarningsTotal,
		insightsTotal,
		llmRequestSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveBatch records one scoring pass.
func ObserveBatch(highRisk, lowRisk int, err error) {
	if err != nil {
		batchesScoredTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	batchesScoredTotal.WithLabelValues(OutcomeSuccess).Inc()
	recordsScoredTotal.WithLabelValues("high_risk").Add(float64(highRisk))
	recordsScoredTotal.WithLabelValues("low_risk").Add(float64(lowRisk))
}

// ObserveTranslation records a query translation outcome.
func ObserveTranslation(planner, outcome string) {
	translationsTotal.WithLabelValues(planner, outcome).Inc()
}

// ObserveFilterWarning records a dropped or skipped condition.
func ObserveFilterWarning(kind string) {
	filterWarningsTotal.WithLabelValues(kind).Inc()
}

// ObserveInsight records an insight generation outcome.
func ObserveInsight(degraded bool) {
	if degraded {
		insightsTotal.WithLabelValues(OutcomeDegraded).Inc()
		return
	}
	insightsTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// ObserveLLM records a language model call.
func ObserveLLM(purpose string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	if duration < 0 {
		duration = 0
	}
	llmRequestSeconds.WithLabelValues(purpose, outcome).Observe(duration.Seconds())
}
