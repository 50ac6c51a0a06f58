// Copyright 2025 Acnodal Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package "config" provides code for loading and validating
// configuration data.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// API generations understood by the node client. The generation decides
// how session credentials are presented on a request and how a mutation
// response is confirmed, so it is fixed per node at configuration time
// rather than detected per request.
const (
	GenerationV6 = "v6"
	GenerationV5 = "v5"
)

// Node is one managed Pi-hole appliance.
type Node struct {
	// Name identifies the node in logs and metrics.
	Name string `mapstructure:"name"`

	// Address is the base URL of the node's management interface. A
	// bare host[:port] is normalized to an http:// URL with no
	// trailing slash.
	Address string `mapstructure:"address"`

	// Password is the web interface password used to establish a
	// session. It is a credential, not a long-lived API key.
	Password string `mapstructure:"password"`

	// API selects the node's API generation, "v6" (default) or "v5".
	API string `mapstructure:"api"`

	// Priority is the node's election rank, assigned from its position
	// in the configured list. Lower is preferred.
	Priority int `mapstructure:"-"`
}

// APIConfig tunes how dhcpguard talks to the nodes' HTTP APIs.
type APIConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
	ApplyTimeout time.Duration `mapstructure:"apply_timeout"`

	// InvalidateOnForbidden controls whether a 403 clears a node's
	// session the way a 401 does. Appliance firmware drifts on which
	// status it returns for a stale session, so this is configuration
	// rather than a hard-coded contract.
	InvalidateOnForbidden bool `mapstructure:"invalidate_on_forbidden"`

	// InsecureSkipVerify disables TLS certificate checks for nodes
	// that serve self-signed certificates.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config is a parsed and validated dhcpguard configuration.
type Config struct {
	// Nodes are the managed appliances, most preferred first. At least
	// two are required.
	Nodes []Node `mapstructure:"nodes"`

	// Interval is how long the enforcement loop sleeps between cycles.
	Interval time.Duration `mapstructure:"interval"`

	API     APIConfig     `mapstructure:"api"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads the configuration file at path (or from the default
// search locations when path is empty), applies DHCPGUARD_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("dhcpguard")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dhcpguard")
	}

	setDefaults(v)

	v.SetEnvPrefix("DHCPGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Tolerate a missing file on the search path; validation
		// reports the absent node list either way.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", 60*time.Second)
	v.SetDefault("api.probe_timeout", 5*time.Second)
	v.SetDefault("api.login_timeout", 10*time.Second)
	v.SetDefault("api.apply_timeout", 15*time.Second)
	v.SetDefault("api.invalidate_on_forbidden", true)
	v.SetDefault("api.insecure_skip_verify", false)
	v.SetDefault("metrics.host", "")
	v.SetDefault("metrics.port", 7472)
}

func (c *Config) validate() error {
	if len(c.Nodes) < 2 {
		return fmt.Errorf("at least two nodes are required, got %d", len(c.Nodes))
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.API.ProbeTimeout <= 0 || c.API.LoginTimeout <= 0 || c.API.ApplyTimeout <= 0 {
		return fmt.Errorf("api timeouts must be positive")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}

	seen := map[string]bool{}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		if err := validateNode(node); err != nil {
			return fmt.Errorf("parsing node #%d: %w", i+1, err)
		}

		if seen[node.Name] {
			return fmt.Errorf("duplicate definition of node %q", node.Name)
		}
		seen[node.Name] = true

		node.Priority = i
	}

	return nil
}

func validateNode(node *Node) error {
	if node.Name == "" {
		return fmt.Errorf("name is required")
	}
	if node.Address == "" {
		return fmt.Errorf("node %q: address is required", node.Name)
	}
	if node.Password == "" {
		return fmt.Errorf("node %q: password is required", node.Name)
	}

	addr, err := normalizeAddress(node.Address)
	if err != nil {
		return fmt.Errorf("node %q: %w", node.Name, err)
	}
	node.Address = addr

	switch node.API {
	case "":
		node.API = GenerationV6
	case GenerationV6, GenerationV5:
	default:
		return fmt.Errorf("node %q: unknown api generation %q", node.Name, node.API)
	}

	return nil
}

// normalizeAddress ensures the address carries a scheme and no
// trailing slash, so endpoint paths can be appended verbatim.
func normalizeAddress(addr string) (string, error) {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid address %q: missing host", addr)
	}
	return strings.TrimRight(addr, "/"), nil
}
