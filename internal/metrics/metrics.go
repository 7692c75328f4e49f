// Package metrics holds the Prometheus collectors of the harvester and the
// optional HTTP endpoint that exposes them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	// RequestsTotal counts catalog API requests by status class (2xx, 4xx, 5xx, error).
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_api_requests_total",
		Help: "Catalog API requests by status class",
	}, []string{"status"})

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_api_request_duration_seconds",
		Help:    "Catalog API request duration",
		Buckets: prometheus.DefBuckets,
	})

	// CategoriesTotal counts finished categories by outcome (success, failure).
	CategoriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_categories_total",
		Help: "Harvested categories by outcome",
	}, []string{"outcome"})

	ProductsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_products_total",
		Help: "Products appended to the catalog",
	})
)

// StatusClass maps an HTTP status code to the label used by RequestsTotal.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "error"
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("📈 Serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
