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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"dhcpguard.io/internal/config"
)

// dialect is how one API generation presents session credentials on a
// request and confirms a DHCP mutation in its response. The dialect is
// chosen once per node at construction, from its configured
// generation, never sniffed per request.
type dialect interface {
	// authorize attaches the session token pair to a state-changing
	// request, in whatever form this generation expects.
	authorize(request *resty.Request, session *Session)

	// confirmed reports whether a 2xx mutation response explicitly
	// confirms that the DHCP flag now matches enabled. An unparseable
	// body is an error; a parseable body without the indicator is
	// merely unconfirmed.
	confirmed(body []byte, enabled bool) (bool, error)
}

func dialectFor(generation string) (dialect, error) {
	switch generation {
	case config.GenerationV6:
		return v6Dialect{}, nil
	case config.GenerationV5:
		return v5Dialect{}, nil
	}
	return nil, fmt.Errorf("unknown api generation %q", generation)
}

// v6Dialect speaks the current API: both tokens travel as request
// headers, and a mutation response carries a boolean "success" field.
type v6Dialect struct{}

func (v6Dialect) authorize(request *resty.Request, session *Session) {
	request.SetHeader("sid", session.SID)
	request.SetHeader("X-CSRF-Token", session.CSRF)
}

func (v6Dialect) confirmed(body []byte, _ bool) (bool, error) {
	var reply struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return false, fmt.Errorf("decoding mutation response: %w", err)
	}
	return reply.Success, nil
}

// v5Dialect speaks the legacy API: the session token travels as a
// cookie with the anti-forgery token still in a header, and a mutation
// response reports a status string of the form "dhcp_enabled" or
// "dhcp_disabled".
type v5Dialect struct{}

func (v5Dialect) authorize(request *resty.Request, session *Session) {
	request.SetCookie(&http.Cookie{Name: "sid", Value: session.SID})
	request.SetHeader("X-CSRF-Token", session.CSRF)
}

func (v5Dialect) confirmed(body []byte, enabled bool) (bool, error) {
	var reply struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return false, fmt.Errorf("decoding mutation response: %w", err)
	}

	want := "dhcp_disabled"
	if enabled {
		want = "dhcp_enabled"
	}
	return reply.Status == want, nil
}
