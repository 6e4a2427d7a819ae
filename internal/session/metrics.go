package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"
	outcomeStale = "stale"
)

var (
	roleRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staffonic_role_refresh_total",
		Help: "Role refresh fetches by outcome.",
	}, []string{"outcome"})

	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staffonic_live_sessions",
		Help: "Portal sessions with a running resolver.",
	})
)
