package prometheus

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Product metrics
	ProductOperationsCounter *prometheus.CounterVec

	// Order metrics
	OrdersCreatedCounter     *prometheus.CounterVec
	OrderTransitionsCounter  *prometheus.CounterVec
	PaymentStatusCounter     *prometheus.CounterVec
	OrderGrandTotalHistogram prometheus.Histogram

	// Inventory metrics
	LowStockProductsGauge prometheus.Gauge
	ExpiringProductsGauge prometheus.Gauge

	initOnce sync.Once
	gatherer prometheus.Gatherer = prometheus.DefaultGatherer
)

// InitMetrics registers every metric under the given prefix.
// A nil registry uses the default one. Only the first call has effect.
func InitMetrics(prefix string, reg *prometheus.Registry) {
	initOnce.Do(func() {
		var registerer prometheus.Registerer = prometheus.DefaultRegisterer
		if reg != nil {
			registerer = reg
			gatherer = reg
		}
		factory := promauto.With(registerer)

		HttpRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		HttpRequestDuration = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		AuthAttemptsCounter = factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
		)

		AuthSuccessCounter = factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_auth_success_total",
				Help: "Total number of successful authentications",
			},
		)

		AuthErrorsCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_errors_total",
				Help: "Total number of authentication errors",
			},
			[]string{"reason"}, // invalid_credentials, blocked, invalid_token, ...
		)

		DbOperationDuration = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		)

		ProductOperationsCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_product_operations_total",
				Help: "Total number of product operations",
			},
			[]string{"operation"},
		)

		OrdersCreatedCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_orders_created_total",
				Help: "Total number of orders placed",
			},
			[]string{"payment_method"},
		)

		OrderTransitionsCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_order_status_transitions_total",
				Help: "Total number of order status transitions",
			},
			[]string{"from", "to"},
		)

		PaymentStatusCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_payment_status_updates_total",
				Help: "Total number of payment status changes",
			},
			[]string{"status"},
		)

		OrderGrandTotalHistogram = factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    prefix + "_order_grand_total",
				Help:    "Grand total of placed orders",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
		)

		LowStockProductsGauge = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_low_stock_products",
				Help: "Number of products below the low stock threshold",
			},
		)

		ExpiringProductsGauge = factory.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_expiring_products",
				Help: "Number of products expiring within the configured window",
			},
		)
	})
}

// Handler serves the registered metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if HttpRequestsTotal == nil {
		return
	}
	HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordAuthAttempt increments the attempt counter
func RecordAuthAttempt() {
	if AuthAttemptsCounter != nil {
		AuthAttemptsCounter.Inc()
	}
}

// RecordAuthSuccess increments the success counter
func RecordAuthSuccess() {
	if AuthSuccessCounter != nil {
		AuthSuccessCounter.Inc()
	}
}

// RecordAuthError increments the error counter for reason
func RecordAuthError(reason string) {
	if AuthErrorsCounter != nil {
		AuthErrorsCounter.WithLabelValues(reason).Inc()
	}
}

// RecordProductOperation increments the counter for product operations
func RecordProductOperation(operation string) {
	if ProductOperationsCounter != nil {
		ProductOperationsCounter.WithLabelValues(operation).Inc()
	}
}

// RecordOrderCreated counts a placed order and observes its grand total
func RecordOrderCreated(paymentMethod string, grandTotal float64) {
	if OrdersCreatedCounter == nil {
		return
	}
	OrdersCreatedCounter.WithLabelValues(paymentMethod).Inc()
	OrderGrandTotalHistogram.Observe(grandTotal)
}

// RecordOrderTransition counts an order status change
func RecordOrderTransition(from, to string) {
	if OrderTransitionsCounter != nil {
		OrderTransitionsCounter.WithLabelValues(from, to).Inc()
	}
}

// RecordPaymentStatus counts a payment status change
func RecordPaymentStatus(status string) {
	if PaymentStatusCounter != nil {
		PaymentStatusCounter.WithLabelValues(status).Inc()
	}
}

// SetInventoryGauges publishes the latest inventory counts
func SetInventoryGauges(lowStock, expiring int) {
	if LowStockProductsGauge == nil {
		return
	}
	LowStockProductsGauge.Set(float64(lowStock))
	ExpiringProductsGauge.Set(float64(expiring))
}
