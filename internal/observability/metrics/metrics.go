// Copyright 2026 Province of British Columbia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the gateway's gating decisions.
type Metrics struct {
	// Route plans committed, by plan
	PlanSelected *prometheus.CounterVec

	// Predicate outcomes, by predicate name and decision
	PredicateDecision *prometheus.CounterVec

	// Token refresh outcomes, by result (refreshed, skipped, failed)
	RefreshOutcome *prometheus.CounterVec

	// Tenant resolution failures
	TenantResolutionFailure prometheus.Counter

	// Tenant load latency
	TenantLoadLatency prometheus.Histogram
}

// New creates a Metrics instance with all gateway metrics registered on
// the default registry.
func New() *Metrics {
	return &Metrics{
		PlanSelected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "met_gateway_route_plans_total",
			Help: "Route plans committed by the route gate, by plan",
		}, []string{"plan"}),

		PredicateDecision: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "met_gateway_predicate_decisions_total",
			Help: "Authorization predicate outcomes by predicate and decision",
		}, []string{"predicate", "decision"}),

		RefreshOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "met_gateway_token_refreshes_total",
			Help: "Token refresh attempts by outcome",
		}, []string{"outcome"}),

		TenantResolutionFailure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "met_gateway_tenant_resolution_failures_total",
			Help: "Terminal tenant resolution failures",
		}),

		TenantLoadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "met_gateway_tenant_load_duration_seconds",
			Help:    "Duration of tenant metadata loads",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObservePlan records a committed route plan.
func (m *Metrics) ObservePlan(plan string) {
	if m != nil {
		m.PlanSelected.WithLabelValues(plan).Inc()
	}
}

// ObservePredicate records a predicate outcome.
func (m *Metrics) ObservePredicate(predicate, decision string) {
	if m != nil {
		m.PredicateDecision.WithLabelValues(predicate, decision).Inc()
	}
}

// ObserveRefresh records a token refresh outcome.
func (m *Metrics) ObserveRefresh(outcome string) {
	if m != nil {
		m.RefreshOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveTenantFailure records a terminal tenant resolution failure.
func (m *Metrics) ObserveTenantFailure() {
	if m != nil {
		m.TenantResolutionFailure.Inc()
	}
}

// ObserveTenantLoad records the duration of a tenant load.
func (m *Metrics) ObserveTenantLoad(d time.Duration) {
	if m != nil {
		m.TenantLoadLatency.Observe(d.Seconds())
	}
}
