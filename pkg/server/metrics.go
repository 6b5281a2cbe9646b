// Copyright 2025 The kubegate Authors
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

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kubegate/kubegate/pkg/api"
)

type metrics struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	timeouts  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kubegate_requests_total",
			Help: "Execution requests by instruction and outcome.",
		}, []string{"instruction", "outcome"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kubegate_execution_duration_seconds",
			Help:    "Wall-clock duration of kubectl executions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"instruction"}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "kubegate_execution_timeouts_total",
			Help: "Executions classified as timed out.",
		}),
	}
}

func (m *metrics) observe(instruction string, result *api.ExecutionResult) {
	outcome := string(result.Outcome)
	if result.ConfirmationRequired {
		outcome = "confirmation_required"
	}
	m.requests.WithLabelValues(instruction, outcome).Inc()
	if result.Duration > 0 {
		m.durations.WithLabelValues(instruction).Observe(result.Duration.Seconds())
	}
	if result.Outcome == api.OutcomeTimedOut {
		m.timeouts.Inc()
	}
}

func (m *metrics) observeRejected(instruction string) {
	m.requests.WithLabelValues(instruction, "rejected").Inc()
}
