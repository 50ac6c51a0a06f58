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

package election

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "dhcpguard"
	subsystem = "election"
)

var (
	// winnerChanges counts the number of times the elected node changed,
	// including transitions to and from leaderless.
	winnerChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "winner_changes_total",
		Help:      "Total number of elected-node changes",
	})

	// leaderlessCycles counts cycles that ended with no reachable node.
	leaderlessCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "leaderless_cycles_total",
		Help:      "Total number of cycles with no reachable node to elect",
	})

	// candidateCount tracks how many nodes were reachable in the last election.
	candidateCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "candidates",
		Help:      "Number of reachable nodes in the last election",
	})
)

func init() {
	prometheus.MustRegister(winnerChanges)
	prometheus.MustRegister(leaderlessCycles)
	prometheus.MustRegister(candidateCount)
}

// RecordWinnerChange increments the winner change counter.
func RecordWinnerChange() {
	winnerChanges.Inc()
}

// RecordLeaderlessCycle increments the leaderless cycle counter.
func RecordLeaderlessCycle() {
	leaderlessCycles.Inc()
}

// RecordCandidateCount sets the reachable candidate count.
func RecordCandidateCount(count int) {
	candidateCount.Set(float64(count))
}
