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

// Package pihole is the HTTP client for one managed Pi-hole node. It
// owns the node's authenticated session, answers reachability checks,
// and drives the node's DHCP server flag through the configuration
// API.
package pihole

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"

	"dhcpguard.io/internal/config"
)

// Session is the token pair obtained from a successful login. The API
// requires both values together on every state-changing call, so a
// Session is only ever stored complete.
type Session struct {
	SID  string
	CSRF string
}

// Result classifies the node's answer to one DHCP mutation request.
type Result int

const (
	// Confirmed means the node accepted the change and its response
	// carried the explicit success indicator.
	Confirmed Result = iota

	// Unconfirmed means the node accepted the call but its response
	// did not confirm the change. The next cycle re-asserts it.
	Unconfirmed

	// Rejected means the node refused the session credentials. The
	// session is stale and the caller must invalidate it.
	Rejected

	// Failed means the request did not complete or the node answered
	// with an unexpected status. The session is still presumed valid.
	Failed
)

func (r Result) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case Unconfirmed:
		return "unconfirmed"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

type authRequest struct {
	Password string `json:"password"`
}

type authResponse struct {
	Session struct {
		SID  string `json:"sid"`
		CSRF string `json:"csrf"`
	} `json:"session"`
}

// configPatch is the partial update for the DHCP flag: exactly one
// field, never a full configuration replace.
type configPatch struct {
	Config configSection `json:"config"`
}

type configSection struct {
	DHCP dhcpSection `json:"dhcp"`
}

type dhcpSection struct {
	Active bool `json:"active"`
}

// Client talks to one node's management API. A Client belongs to the
// enforcement loop's single control thread and is not safe for
// concurrent use.
type Client struct {
	node    config.Node
	http    *resty.Client
	dialect dialect

	// session is nil while unauthenticated. Set only by a successful
	// login, cleared only by InvalidateSession.
	session *Session

	probeTimeout          time.Duration
	loginTimeout          time.Duration
	applyTimeout          time.Duration
	invalidateOnForbidden bool
}

// NewClient builds the API client for one node. The node's API
// generation selects the request/response dialect here, once.
func NewClient(node config.Node, api config.APIConfig) (*Client, error) {
	d, err := dialectFor(node.API)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", node.Name, err)
	}

	r := resty.New().
		SetHostURL(node.Address).
		SetHeaders(map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"Referer":      node.Address + "/",
		})
	if api.InsecureSkipVerify {
		r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		node:                  node,
		http:                  r,
		dialect:               d,
		probeTimeout:          api.ProbeTimeout,
		loginTimeout:          api.LoginTimeout,
		applyTimeout:          api.ApplyTimeout,
		invalidateOnForbidden: api.InvalidateOnForbidden,
	}, nil
}

// Check reports whether the node's management interface is currently
// serving. Any response below the server-error class counts: an
// endpoint that exists but refuses the request still proves the host
// is up. Check is side-effect-free on the node, never returns an
// error, and never touches the session.
func (c *Client) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	response, err := c.http.R().
		SetContext(ctx).
		Get("/admin/")

	up := err == nil && response.StatusCode() < http.StatusInternalServerError
	RecordProbe(c.node.Name, up)
	return up
}

// EnsureSession returns without traffic when a session is already
// held; otherwise it logs in and stores the token pair. The pair is
// stored whole or not at all: a login answer missing either token is
// an authentication failure and installs nothing.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.session != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()

	var auth authResponse
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(authRequest{Password: c.node.Password}).
		SetResult(&auth).
		Post("/api/auth")
	if err != nil {
		RecordLogin(c.node.Name, false)
		return fmt.Errorf("logging in: %w", err)
	}
	if response.IsError() {
		RecordLogin(c.node.Name, false)
		return fmt.Errorf("login response code %d status %q", response.StatusCode(), response.Status())
	}
	if auth.Session.SID == "" || auth.Session.CSRF == "" {
		RecordLogin(c.node.Name, false)
		return fmt.Errorf("login response carries no usable session")
	}

	c.session = &Session{SID: auth.Session.SID, CSRF: auth.Session.CSRF}
	RecordLogin(c.node.Name, true)
	return nil
}

// HasSession reports whether a token pair is currently held.
func (c *Client) HasSession() bool {
	return c.session != nil
}

// InvalidateSession drops the token pair and the cookie jar.
// Invalidating an empty session is a no-op.
func (c *Client) InvalidateSession() {
	c.session = nil

	// Stale cookies would resurrect the dead session on the next
	// login, so the jar goes too.
	jar, _ := cookiejar.New(nil)
	c.http.SetCookieJar(jar)
}

// SetDHCP drives the node's DHCP server flag to enabled, asking the
// node to restart its DHCP service as part of applying the change.
// SetDHCP itself never alters the session: on Rejected the caller
// owns the invalidation, and on Failed the session is deliberately
// kept so the next cycle can retry without a fresh login.
func (c *Client) SetDHCP(ctx context.Context, enabled bool) (Result, error) {
	if c.session == nil {
		return Failed, fmt.Errorf("no session")
	}

	ctx, cancel := context.WithTimeout(ctx, c.applyTimeout)
	defer cancel()

	request := c.http.R().
		SetContext(ctx).
		SetQueryParam("restart", "true").
		SetBody(configPatch{Config: configSection{DHCP: dhcpSection{Active: enabled}}})
	c.dialect.authorize(request, c.session)

	response, err := request.Patch("/api/config")
	if err != nil {
		return Failed, fmt.Errorf("applying dhcp change: %w", err)
	}

	switch code := response.StatusCode(); {
	case code == http.StatusUnauthorized,
		code == http.StatusForbidden && c.invalidateOnForbidden:
		return Rejected, fmt.Errorf("session rejected with code %d status %q", code, response.Status())
	case response.IsError():
		return Failed, fmt.Errorf("response code %d status %q", code, response.Status())
	}

	confirmed, err := c.dialect.confirmed(response.Body(), enabled)
	if err != nil {
		return Failed, fmt.Errorf("reading response: %w", err)
	}
	if !confirmed {
		return Unconfirmed, nil
	}
	return Confirmed, nil
}
