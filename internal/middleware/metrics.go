package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "staffonic_http_requests_total",
	Help: "Portal HTTP requests by method, route pattern and status code.",
}, []string{"method", "route", "code"})
