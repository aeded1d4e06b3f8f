package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PubMed E-utilities 请求
	PubMedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubmed_feed_pubmed_requests_total",
			Help: "Total number of PubMed E-utilities requests",
		},
		[]string{"endpoint", "status"},
	)

	PubMedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pubmed_feed_pubmed_request_duration_seconds",
			Help:    "PubMed E-utilities request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// 流水线
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubmed_feed_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	ArticlesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pubmed_feed_articles_fetched_total",
			Help: "Total number of articles fetched from PubMed",
		},
	)

	ArticlesNewTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pubmed_feed_articles_new_total",
			Help: "Total number of articles that passed deduplication",
		},
	)

	// 文案生成
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubmed_feed_generations_total",
			Help: "Total number of content variants produced",
		},
		[]string{"variant", "source"}, // source: llm | fallback
	)

	ReportsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pubmed_feed_reports_created_total",
			Help: "Total number of reports created",
		},
	)

	// 数据库
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubmed_feed_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)
)

// Status 把 error 转成 status 标签值
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
