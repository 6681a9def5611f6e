package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	up = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "up",
		Help: "Whether the server is running",
	})
	reactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_reactions_total",
		Help: "Guard verdicts served, by security group and status code",
	}, []string{"nsg", "code"})
)
