package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics groups Prometheus collectors for HTTP observability.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP metrics collectors.
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	reg.MustRegister(m.ReqTotal, m.ReqDur, m.InFlight)
	return m
}

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts placed orders by delivery mode and payment method.
	OrdersCreatedTotal *prometheus.CounterVec
	// CouponPreviewTotal counts apply-coupon outcomes.
	CouponPreviewTotal *prometheus.CounterVec
	// OTPRequestsTotal counts OTP issuance attempts by outcome.
	OTPRequestsTotal *prometheus.CounterVec
	// OrdersExpiredTotal counts pending orders cancelled by the expiry worker.
	OrdersExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of placed orders.",
		}, []string{"delivery_type", "payment_method"})
		CouponPreviewTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_preview_total",
			Help:      "Count of coupon preview outcomes.",
		}, []string{"result"})
		OTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_requests_total",
			Help:      "Count of OTP issuance attempts.",
		}, []string{"result"})
		OrdersExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_expired_total",
			Help:      "Count of pending orders cancelled after the payment window lapsed.",
		})
		for _, c := range []prometheus.Collector{OrdersCreatedTotal, CouponPreviewTotal, OTPRequestsTotal, OrdersExpiredTotal} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(fmt.Errorf("register domain metric: %w", err))
				}
			}
		}
	})
}
