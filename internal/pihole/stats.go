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

package pihole

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "dhcpguard"
	subsystem = "pihole"
)

var (
	// nodeUp is 1 while a node's management interface answers the
	// reachability probe, 0 otherwise.
	nodeUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "node_up",
		Help:      "1 if the node's management interface is reachable, 0 otherwise",
	}, []string{"node"})

	logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "logins_total",
		Help:      "Number of successful session logins per node",
	}, []string{"node"})

	loginFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "login_failures_total",
		Help:      "Number of failed session login attempts per node",
	}, []string{"node"})
)

func init() {
	prometheus.MustRegister(nodeUp)
	prometheus.MustRegister(logins)
	prometheus.MustRegister(loginFailures)
}

// RecordProbe sets the reachability gauge for a node.
func RecordProbe(node string, up bool) {
	if up {
		nodeUp.WithLabelValues(node).Set(1)
	} else {
		nodeUp.WithLabelValues(node).Set(0)
	}
}

// RecordLogin counts one login attempt's outcome for a node.
func RecordLogin(node string, ok bool) {
	if ok {
		logins.WithLabelValues(node).Inc()
	} else {
		loginFailures.WithLabelValues(node).Inc()
	}
}
