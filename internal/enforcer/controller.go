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

// Package enforcer runs the enforcement loop: probe every node, elect
// the highest-priority reachable one, and drive every node's DHCP
// flag to match the election, forever.
package enforcer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"dhcpguard.io/internal/config"
	"dhcpguard.io/internal/election"
	"dhcpguard.io/internal/logging"
	"dhcpguard.io/internal/pihole"
)

// NodeClient is what the controller needs from one node's API client.
// *pihole.Client satisfies it; tests substitute fakes.
type NodeClient interface {
	Check(ctx context.Context) bool
	EnsureSession(ctx context.Context) error
	HasSession() bool
	InvalidateSession()
	SetDHCP(ctx context.Context, enabled bool) (pihole.Result, error)
}

// Outcome classifies one node's convergence attempt in one cycle.
type Outcome int

const (
	// Applied means the node confirmed the requested DHCP state.
	Applied Outcome = iota

	// Unconfirmed means the node accepted the request without
	// confirming the change. The next cycle re-asserts it.
	Unconfirmed

	// Skipped means the node was unreachable so no mutation, and no
	// authentication, was attempted.
	Skipped

	// SessionRejected means the node refused the session. The session
	// was cleared and the next cycle logs in again.
	SessionRejected

	// LoginFailed means no session could be established this cycle.
	LoginFailed

	// Failed means the mutation request failed for a reason other
	// than authorization. The session is kept and the next cycle
	// retries.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Unconfirmed:
		return "unconfirmed"
	case Skipped:
		return "skipped"
	case SessionRejected:
		return "sessionRejected"
	case LoginFailed:
		return "loginFailed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// nodeState is one node's runtime state. It is owned exclusively by
// the controller's single control thread: reachable is written once
// per cycle by the probe step, and the session lives behind the
// client handle where probing never touches it.
type nodeState struct {
	node      config.Node
	client    NodeClient
	reachable bool
}

type controller struct {
	logger   log.Logger
	nodes    []*nodeState
	interval time.Duration

	// lastWinner is only consulted to count leadership changes, never
	// to influence the next election.
	lastWinner string
}

// NewController pairs each configured node with its API client, in
// configuration (priority) order.
func NewController(logger log.Logger, cfg *config.Config, clients []NodeClient) (*controller, error) {
	if len(clients) != len(cfg.Nodes) {
		return nil, fmt.Errorf("%d nodes but %d clients", len(cfg.Nodes), len(clients))
	}

	nodes := make([]*nodeState, len(cfg.Nodes))
	for i, node := range cfg.Nodes {
		nodes[i] = &nodeState{node: node, client: clients[i]}
	}

	return &controller{
		logger:   logger,
		nodes:    nodes,
		interval: cfg.Interval,
	}, nil
}

// Run cycles immediately and then on every interval tick until stopCh
// closes. The loop never terminates on its own; the stop signal is
// honored at the sleep boundary, where it interrupts the sleep.
func (c *controller) Run(stopCh <-chan struct{}) error {
	for {
		c.runCycle(context.Background())

		select {
		case <-stopCh:
			return nil
		case <-time.After(c.interval):
		}
	}
}

// runCycle is one pass of the state machine: probe, elect, converge.
// Strictly serial across nodes; a slow or broken node delays the rest
// but its failures never escape its own boundary.
func (c *controller) runCycle(ctx context.Context) {
	l := log.With(c.logger, "cycle", uuid.New().String())
	RecordCycle()

	// Probe. Check folds every failure into the boolean, so one dead
	// node cannot interrupt probing the rest.
	for _, st := range c.nodes {
		st.reachable = st.client.Check(ctx)
		if st.reachable {
			logging.Info(l, "op", "probe", "event", "nodeOnline", "node", st.node.Name)
		} else {
			logging.Warn(l, "op", "probe", "event", "nodeOffline", "node", st.node.Name)
		}
	}

	// Elect.
	candidates := make([]election.Candidate, 0, len(c.nodes))
	reachable := 0
	for _, st := range c.nodes {
		candidates = append(candidates, election.Candidate{
			Name:      st.node.Name,
			Priority:  st.node.Priority,
			Reachable: st.reachable,
		})
		if st.reachable {
			reachable++
		}
	}

	winner := election.Winner(candidates)
	election.RecordCandidateCount(reachable)
	if winner != c.lastWinner {
		election.RecordWinnerChange()
		c.lastWinner = winner
	}
	if winner == "" {
		election.RecordLeaderlessCycle()
		logging.Warn(l, "op", "elect", "event", "noLeader", "msg", "no node is reachable, asserting DHCP off everywhere")
	} else {
		logging.Info(l, "op", "elect", "event", "elected", "node", winner)
	}

	// Converge. Every node gets exactly one attempt, the winner
	// included: its enabled state is asserted explicitly rather than
	// assumed to survive from earlier cycles.
	for _, st := range c.nodes {
		desired := winner != "" && st.node.Name == winner
		outcome := c.converge(ctx, l, st, desired)
		RecordConverge(st.node.Name, outcome.String())
		RecordElected(st.node.Name, desired)
	}
}

// converge drives one node's DHCP flag toward desired and reports how
// it went. All error classes are absorbed here; nothing propagates to
// the cycle.
func (c *controller) converge(ctx context.Context, l log.Logger, st *nodeState, desired bool) Outcome {
	l = log.With(l, "op", "converge", "node", st.node.Name, "desired", desired)

	// Mutating an unreachable node is doomed; don't burn a login
	// attempt on it.
	if !st.reachable {
		logging.Info(l, "event", "skipped", "msg", "node is unreachable")
		return Skipped
	}

	if !st.client.HasSession() {
		if err := st.client.EnsureSession(ctx); err != nil {
			logging.Error(l, "event", "loginFailed", "error", err, "msg", "could not establish a session")
			return LoginFailed
		}
		logging.Info(l, "event", "loggedIn", "msg", "new session established")
	}

	result, err := st.client.SetDHCP(ctx, desired)
	switch result {
	case pihole.Confirmed:
		logging.Info(l, "event", "applied", "msg", "node confirmed DHCP state")
		return Applied

	case pihole.Unconfirmed:
		logging.Warn(l, "event", "unconfirmed", "msg", "node accepted the change but did not confirm it")
		return Unconfirmed

	case pihole.Rejected:
		// Stale credentials. Clear them and let the next cycle log in
		// fresh; re-trying within this cycle would just be rejected
		// again.
		st.client.InvalidateSession()
		logging.Warn(l, "event", "sessionRejected", "error", err, "msg", "session rejected, will re-login next cycle")
		return SessionRejected

	default:
		logging.Error(l, "event", "failed", "error", err, "msg", "DHCP change failed, will retry next cycle")
		return Failed
	}
}
