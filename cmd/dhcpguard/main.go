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

package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"dhcpguard.io/internal/config"
	"dhcpguard.io/internal/enforcer"
	"dhcpguard.io/internal/logging"
	"dhcpguard.io/internal/pihole"
)

func main() {
	logger := logging.Init()

	var (
		configPath = flag.String("config", os.Getenv("DHCPGUARD_CONFIG"), "path to the configuration file")
		host       = flag.String("metrics-host", os.Getenv("DHCPGUARD_METRICS_HOST"), "HTTP host address for Prometheus metrics")
		port       = flag.Int("metrics-port", 0, "HTTP listening port for Prometheus metrics")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error(logger, "op", "startup", "error", err, "msg", "invalid configuration")
		os.Exit(1)
	}
	if *host != "" {
		cfg.Metrics.Host = *host
	}
	if *port != 0 {
		cfg.Metrics.Port = *port
	}

	logging.Info(logger, "op", "startup", "msg", "configured", "nodes", len(cfg.Nodes), "interval", cfg.Interval)

	clients := make([]enforcer.NodeClient, len(cfg.Nodes))
	for i, node := range cfg.Nodes {
		client, err := pihole.NewClient(node, cfg.API)
		if err != nil {
			logging.Error(logger, "op", "startup", "error", err, "msg", "failed to create node client")
			os.Exit(1)
		}
		clients[i] = client
	}

	ctrl, err := enforcer.NewController(logger, cfg, clients)
	if err != nil {
		logging.Error(logger, "op", "startup", "error", err, "msg", "failed to create controller")
		os.Exit(1)
	}

	stopCh := make(chan struct{})
	go func() {
		c1 := make(chan os.Signal, 1)
		signal.Notify(c1, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
		<-c1
		logging.Info(logger, "op", "shutdown", "msg", "signal received, initiating shutdown")
		signal.Stop(c1)
		close(stopCh)
	}()

	go enforcer.RunMetrics(cfg.Metrics.Host, cfg.Metrics.Port)

	if err := ctrl.Run(stopCh); err != nil {
		logging.Error(logger, "op", "run", "error", err, "msg", "enforcement loop exited with error")
		os.Exit(1)
	}

	logging.Info(logger, "op", "shutdown", "msg", "shutdown complete")
}
