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
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhcpguard.io/internal/config"
	"dhcpguard.io/internal/pihole"
)

// fakeNode stands in for a pihole.Client and records every call.
type fakeNode struct {
	reachable bool
	session   bool
	loginErr  error
	result    pihole.Result
	setErr    error

	checks        int
	logins        int
	invalidations int
	applied       []bool
}

func (f *fakeNode) Check(ctx context.Context) bool {
	f.checks++
	return f.reachable
}

func (f *fakeNode) EnsureSession(ctx context.Context) error {
	if f.session {
		return nil
	}
	f.logins++
	if f.loginErr != nil {
		return f.loginErr
	}
	f.session = true
	return nil
}

func (f *fakeNode) HasSession() bool {
	return f.session
}

func (f *fakeNode) InvalidateSession() {
	f.invalidations++
	f.session = false
}

func (f *fakeNode) SetDHCP(ctx context.Context, enabled bool) (pihole.Result, error) {
	f.applied = append(f.applied, enabled)
	return f.result, f.setErr
}

func testConfig(count int) *config.Config {
	cfg := &config.Config{Interval: time.Millisecond}
	for i := 0; i < count; i++ {
		cfg.Nodes = append(cfg.Nodes, config.Node{
			Name:     fmt.Sprintf("node%d", i),
			Address:  fmt.Sprintf("http://10.0.0.%d", i+1),
			Password: "secret",
			API:      config.GenerationV6,
			Priority: i,
		})
	}
	return cfg
}

func mustController(t *testing.T, fakes ...*fakeNode) *controller {
	clients := make([]NodeClient, len(fakes))
	for i, f := range fakes {
		clients[i] = f
	}
	ctrl, err := NewController(log.NewNopLogger(), testConfig(len(fakes)), clients)
	require.NoError(t, err)
	return ctrl
}

func TestNewControllerCountMismatch(t *testing.T) {
	_, err := NewController(log.NewNopLogger(), testConfig(2), []NodeClient{&fakeNode{}})
	assert.Error(t, err)
}

func TestBothReachable(t *testing.T) {
	primary := &fakeNode{reachable: true, result: pihole.Confirmed}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	ctrl.runCycle(context.Background())

	// The highest-priority node wins; it is enabled explicitly, the
	// other disabled, one mutation each.
	assert.Equal(t, []bool{true}, primary.applied)
	assert.Equal(t, []bool{false}, secondary.applied)
}

func TestPrimaryUnreachable(t *testing.T) {
	primary := &fakeNode{reachable: false, result: pihole.Confirmed}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	ctrl.runCycle(context.Background())

	// The unreachable node gets no login attempt and no mutation.
	assert.Equal(t, 0, primary.logins)
	assert.Empty(t, primary.applied)
	assert.Equal(t, []bool{true}, secondary.applied)
}

func TestNoneReachable(t *testing.T) {
	primary := &fakeNode{reachable: false}
	secondary := &fakeNode{reachable: false}
	ctrl := mustController(t, primary, secondary)

	ctrl.runCycle(context.Background())

	assert.Equal(t, 0, primary.logins)
	assert.Equal(t, 0, secondary.logins)
	assert.Empty(t, primary.applied)
	assert.Empty(t, secondary.applied)
}

// No matter which nodes are reachable, at most one node may be told
// to enable DHCP in any cycle.
func TestAtMostOneEnabled(t *testing.T) {
	for vector := 0; vector < 8; vector++ {
		t.Run(fmt.Sprintf("vector%03b", vector), func(t *testing.T) {
			fakes := []*fakeNode{
				{reachable: vector&1 != 0, result: pihole.Confirmed},
				{reachable: vector&2 != 0, result: pihole.Confirmed},
				{reachable: vector&4 != 0, result: pihole.Confirmed},
			}
			ctrl := mustController(t, fakes[0], fakes[1], fakes[2])

			ctrl.runCycle(context.Background())

			enabled := 0
			for _, f := range fakes {
				for _, state := range f.applied {
					if state {
						enabled++
					}
				}
			}
			assert.LessOrEqual(t, enabled, 1)
		})
	}
}

func TestSessionReuse(t *testing.T) {
	primary := &fakeNode{reachable: true, result: pihole.Confirmed}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	// Two cycles of successful mutations: exactly one login each.
	ctrl.runCycle(context.Background())
	ctrl.runCycle(context.Background())

	assert.Equal(t, 1, primary.logins)
	assert.Equal(t, 1, secondary.logins)
	assert.Equal(t, []bool{true, true}, primary.applied)
	assert.Equal(t, []bool{false, false}, secondary.applied)
}

func TestRejectionInvalidatesThenRelogins(t *testing.T) {
	primary := &fakeNode{reachable: true, result: pihole.Rejected, setErr: fmt.Errorf("401")}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	ctrl.runCycle(context.Background())
	assert.Equal(t, 1, primary.logins)
	assert.Equal(t, 1, primary.invalidations)
	assert.False(t, primary.session)

	// Next cycle: exactly one fresh login precedes the retried
	// mutation.
	primary.result = pihole.Confirmed
	primary.setErr = nil
	ctrl.runCycle(context.Background())
	assert.Equal(t, 2, primary.logins)
	assert.Equal(t, 1, primary.invalidations)
	assert.Equal(t, []bool{true, true}, primary.applied)
}

func TestTransientFailureKeepsSession(t *testing.T) {
	primary := &fakeNode{reachable: true, result: pihole.Failed, setErr: fmt.Errorf("timeout")}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	ctrl.runCycle(context.Background())
	ctrl.runCycle(context.Background())

	// Non-auth failures never clear the session, so there is only
	// the initial login.
	assert.Equal(t, 0, primary.invalidations)
	assert.Equal(t, 1, primary.logins)
	assert.Equal(t, []bool{true, true}, primary.applied)
}

func TestLoginFailureAbortsNodeNotCycle(t *testing.T) {
	primary := &fakeNode{reachable: true, loginErr: fmt.Errorf("bad password")}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	ctrl.runCycle(context.Background())

	// The failed node gets no mutation this cycle; the other node is
	// still converged.
	assert.Empty(t, primary.applied)
	assert.Equal(t, []bool{false}, secondary.applied)
}

func TestConvergeOutcomes(t *testing.T) {
	tests := []struct {
		desc string
		node *fakeNode
		want Outcome
	}{
		{desc: "confirmed", node: &fakeNode{reachable: true, result: pihole.Confirmed}, want: Applied},
		{desc: "unconfirmed", node: &fakeNode{reachable: true, result: pihole.Unconfirmed}, want: Unconfirmed},
		{desc: "rejected", node: &fakeNode{reachable: true, result: pihole.Rejected, setErr: fmt.Errorf("401")}, want: SessionRejected},
		{desc: "failed", node: &fakeNode{reachable: true, result: pihole.Failed, setErr: fmt.Errorf("boom")}, want: Failed},
		{desc: "unreachable", node: &fakeNode{reachable: false}, want: Skipped},
		{desc: "login failure", node: &fakeNode{reachable: true, loginErr: fmt.Errorf("nope")}, want: LoginFailed},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := mustController(t, test.node, &fakeNode{})
			st := ctrl.nodes[0]
			st.reachable = test.node.reachable

			assert.Equal(t, test.want, ctrl.converge(context.Background(), log.NewNopLogger(), st, true))
		})
	}
}

// Re-asserting the same state cycle after cycle reports the same
// outcome; there is no "already correct" special case.
func TestIdempotentReassertion(t *testing.T) {
	primary := &fakeNode{reachable: true, result: pihole.Confirmed}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	for i := 0; i < 3; i++ {
		ctrl.runCycle(context.Background())
	}
	assert.Equal(t, []bool{true, true, true}, primary.applied)
	assert.Equal(t, []bool{false, false, false}, secondary.applied)
}

func TestRunHonorsStop(t *testing.T) {
	primary := &fakeNode{reachable: true, result: pihole.Confirmed}
	secondary := &fakeNode{reachable: true, result: pihole.Confirmed}
	ctrl := mustController(t, primary, secondary)

	stopCh := make(chan struct{})
	close(stopCh)

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(stopCh) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	// The first cycle runs before the stop is honored at the sleep
	// boundary.
	assert.Equal(t, 1, primary.checks)
}
