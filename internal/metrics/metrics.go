// Package metrics exposes dispatch counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dispatch"

const (
	ModeBatch   = "batch"
	ModeStepped = "stepped"
)

var (
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_submitted_total",
		Help:      "Orders accepted at intake, by priority.",
	}, []string{"priority"})

	OrdersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_rejected_total",
		Help:      "Order requests rejected at intake.",
	})

	OrdersAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_assigned_total",
		Help:      "Orders placed on a route by the planner.",
	})

	OrdersUnserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_unserved_total",
		Help:      "Orders no drone could take in a planning cycle.",
	})

	PlanCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_cycles_total",
		Help:      "Completed planning cycles.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Orders delivered by a simulation run.",
	}, []string{"mode"})

	Recharges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recharges_total",
		Help:      "Battery recharges at base.",
	}, []string{"mode"})

	ForcedReturns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_returns_total",
		Help:      "Low battery returns to base.",
	}, []string{"mode"})

	SimulationSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "simulation_steps_total",
		Help:      "Steps executed by the stepped engine.",
	})

	SimulationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "simulation_duration_seconds",
		Help:      "Wall time of a simulation run.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"mode"})

	SimulationsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "simulations_running",
		Help:      "Simulation runs in progress.",
	})
)
