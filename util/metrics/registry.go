// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-clockwork
//
// go-clockwork is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-clockwork is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-clockwork.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the agent's collectors in a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	runs     *prometheus.CounterVec
	enforced prometheus.Gauge
	failures prometheus.Gauge
	phases   *prometheus.GaugeVec
	lastRun  prometheus.Gauge
	master   prometheus.Gauge
	mesh     *prometheus.CounterVec
}

// NewRegistry creates and registers the agent collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg:      prometheus.NewRegistry(),
		runs:     counterVec(CFMRunsTotal, "outcome"),
		enforced: gauge(CFMResourcesEnforced),
		failures: gauge(CFMResourceFailures),
		phases:   gaugeVec(CFMPhaseSeconds, "phase"),
		lastRun:  gauge(CFMLastRunTimestamp),
		master:   gauge(CFMMasterIndex),
		mesh:     counterVec(MeshCommandsTotal, "reply"),
	}
	r.reg.MustRegister(r.runs, r.enforced, r.failures, r.phases, r.lastRun, r.master, r.mesh)
	return r
}

// Run is what one configuration run reports.
type Run struct {
	Outcome  string
	Enforced int
	Failed   int
	// Master is the ring index of the master used, or -1 when offline.
	Master   int
	PhasesMS map[string]int64
	Finished time.Time
}

// ObserveRun records a finished configuration run.
func (r *Registry) ObserveRun(run Run) {
	r.runs.WithLabelValues(run.Outcome).Inc()
	r.enforced.Set(float64(run.Enforced))
	r.failures.Set(float64(run.Failed))
	r.master.Set(float64(run.Master))
	for phase, ms := range run.PhasesMS {
		r.phases.WithLabelValues(phase).Set(float64(ms) / 1000)
	}
	r.lastRun.Set(float64(run.Finished.UnixNano()) / 1e9)
}

// ObserveMesh counts a handled mesh command by the type of reply sent.
func (r *Registry) ObserveMesh(reply string) {
	r.mesh.WithLabelValues(reply).Inc()
}

// Gatherer exposes the registry, for tests and HTTP handlers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes all metrics to path in the text exposition format,
// atomically, for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
