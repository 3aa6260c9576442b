package metrics

import (
	"net/http"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager holds the engine's Prometheus metrics on a private registry.
type Manager struct {
	Registry *prometheus.Registry

	OffersCreatedTotal         prometheus.Counter
	OffersAcceptedTotal        prometheus.Counter
	OffersExpiredTotal         prometheus.Counter
	TransactionsCompletedTotal prometheus.Counter
	TransactionsCancelledTotal prometheus.Counter
	DisputesRaisedTotal        prometheus.Counter
	DisputesResolvedTotal      prometheus.Counter
	ReviewsCreatedTotal        prometheus.Counter
	AlertsProcessedTotal       *prometheus.CounterVec
}

func NewManager(serviceName string) *Manager {
	registry := prometheus.NewRegistry()

	m := &Manager{
		Registry: registry,
		OffersCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "offers_created_total",
			Help:      "Total number of offers created.",
		}),
		OffersAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "offers_accepted_total",
			Help:      "Total number of offers accepted.",
		}),
		OffersExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "offers_expired_total",
			Help:      "Total number of offers expired by the sweep.",
		}),
		TransactionsCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "transactions_completed_total",
			Help:      "Total number of transactions completed.",
		}),
		TransactionsCancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "transactions_cancelled_total",
			Help:      "Total number of transactions cancelled.",
		}),
		DisputesRaisedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "disputes_raised_total",
			Help:      "Total number of disputes raised.",
		}),
		DisputesResolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "disputes_resolved_total",
			Help:      "Total number of disputes resolved.",
		}),
		ReviewsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "reviews_created_total",
			Help:      "Total number of reviews created.",
		}),
		AlertsProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "fraud_alerts_processed_total",
			Help:      "Total number of fraud alerts processed, by action.",
		}, []string{"action"}),
	}

	registry.MustRegister(
		m.OffersCreatedTotal,
		m.OffersAcceptedTotal,
		m.OffersExpiredTotal,
		m.TransactionsCompletedTotal,
		m.TransactionsCancelledTotal,
		m.DisputesRaisedTotal,
		m.DisputesResolvedTotal,
		m.ReviewsCreatedTotal,
		m.AlertsProcessedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// StartServer exposes /metrics on the given port. Blocks; run in a goroutine.
func StartServer(port string, appLogger logger.Logger, registry *prometheus.Registry) error {
	if port == "" {
		appLogger.Info("Metrics server port not configured, server will not start")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appLogger.Infof("Prometheus metrics server starting on port %s", port)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return server.ListenAndServe()
}
