// Copyright 2025 Acnodal Inc.
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

package enforcer

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "dhcpguard"
	subsystem = "enforcer"
)

var (
	cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cycles_total",
		Help:      "Number of enforcement cycles that have run.",
	})

	converges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "converge_total",
		Help:      "Number of per-node convergence attempts, by outcome.",
	}, []string{"node", "outcome"})

	elected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "elected",
		Help:      "1 for the node elected to serve DHCP, 0 for all others.",
	}, []string{"node"})
)

func init() {
	prometheus.MustRegister(cycles)
	prometheus.MustRegister(converges)
	prometheus.MustRegister(elected)
}

// RecordCycle counts one enforcement cycle.
func RecordCycle() {
	cycles.Inc()
}

// RecordConverge counts one per-node convergence outcome.
func RecordConverge(node string, outcome string) {
	converges.WithLabelValues(node, outcome).Inc()
}

// RecordElected sets a node's elected gauge.
func RecordElected(node string, isWinner bool) {
	if isWinner {
		elected.WithLabelValues(node).Set(1)
	} else {
		elected.WithLabelValues(node).Set(0)
	}
}

// RunMetrics runs the metrics server. It doesn't ever return.
func RunMetrics(metricsHost string, metricsPort int) {
	http.Handle("/metrics", promhttp.Handler())
	http.ListenAndServe(fmt.Sprintf("%s:%d", metricsHost, metricsPort), nil)
}
