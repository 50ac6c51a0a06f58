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

// Candidate is one node's standing in an election: its name, its
// static rank, and whether this cycle's probe found it reachable.
type Candidate struct {
	Name      string
	Priority  int
	Reachable bool
}

// Winner returns the name of the reachable candidate with the lowest
// priority ordinal, or "" when no candidate is reachable. The choice
// is a pure function of the candidates passed in: there is no history
// and no hysteresis, so a leader that stays reachable is re-elected
// every cycle and a flapping leader flaps the leadership with it.
//
// Winner scans by the stored Priority value, not by slice position,
// so callers may pass candidates in any order.
func Winner(candidates []Candidate) string {
	winner := ""
	best := 0
	for _, candidate := range candidates {
		if !candidate.Reachable {
			continue
		}
		if winner == "" || candidate.Priority < best {
			winner = candidate.Name
			best = candidate.Priority
		}
	}
	return winner
}
