package metrics

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_api_requests_total",
			Help: "Number of API requests",
		},
		[]string{"method", "path", "status"},
	)
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_api_latency_seconds",
			Help:    "API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	TemplateFields = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cms_template_fields_total",
			Help: "Number of defined fields by template",
		},
		[]string{"template"},
	)
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_dependency_evaluations_total",
			Help: "Dependency evaluator runs by outcome",
		},
		[]string{"outcome"},
	)
	RulesFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_dependency_rules_fired_total",
			Help: "Dependency rules whose condition matched, by action",
		},
		[]string{"action"},
	)
	RulesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cms_dependency_rules_skipped_total",
			Help: "Dependency rules skipped because the parent field is gone",
		},
	)
	CasesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cases_created_total",
			Help: "Cases created by template",
		},
		[]string{"template"},
	)
	HistoryWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_case_history_writes_total",
			Help: "Case history entries written by action",
		},
		[]string{"action"},
	)
	SearchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_data_table_search_seconds",
			Help:    "Latency of data table record searches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequests,
		APILatency,
		TemplateFields,
		Evaluations,
		RulesFired,
		RulesSkipped,
		CasesCreated,
		HistoryWrites,
		SearchLatency,
	)
}

// FieldCounter is implemented by repositories able to count fields per template.
type FieldCounter interface {
	CountFields(ctx context.Context) (map[string]int, error)
}

// StartFieldGauge starts a background job that updates the template field
// gauge every 30 seconds.
func StartFieldGauge(ctx context.Context, repo FieldCounter) {
	if repo == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				counts, err := repo.CountFields(ctx)
				if err != nil {
					log.Printf("Error in CountFields: %v", err)
					continue
				}
				for t, n := range counts {
					TemplateFields.WithLabelValues(t).Set(float64(n))
				}
			}
		}
	}()
}
