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

// Package metrics exposes cogd run and mesh statistics as Prometheus
// collectors, written out as a node_exporter textfile after every run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cogd"

// MetricName describes the name and description of a single metric
type MetricName struct {
	Name        string
	Description string
}

var (
	// CFMRunsTotal counts configuration runs by outcome
	CFMRunsTotal = MetricName{Name: "cfm_runs_total", Description: "Configuration runs by outcome"}
	// CFMResourcesEnforced is the number of resources the last run enforced
	CFMResourcesEnforced = MetricName{Name: "cfm_resources_enforced", Description: "Resources enforced by the last configuration run"}
	// CFMResourceFailures is the number of resources the last run failed to converge
	CFMResourceFailures = MetricName{Name: "cfm_resource_failures", Description: "Resources the last configuration run failed to converge"}
	// CFMPhaseSeconds is the duration of each phase of the last run
	CFMPhaseSeconds = MetricName{Name: "cfm_phase_seconds", Description: "Duration of each phase of the last configuration run"}
	// CFMLastRunTimestamp is when the last run finished
	CFMLastRunTimestamp = MetricName{Name: "cfm_last_run_timestamp_seconds", Description: "Unix time the last configuration run finished"}
	// CFMMasterIndex is the ring position of the master the last run used
	CFMMasterIndex = MetricName{Name: "cfm_master_index", Description: "Index of the master the last connected run used"}
	// MeshCommandsTotal counts mesh broadcasts by reply type
	MeshCommandsTotal = MetricName{Name: "mesh_commands_total", Description: "Mesh commands handled, by reply"}
)

func counterVec(m MetricName, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: m.Name, Help: m.Description}, labels)
}

func gauge(m MetricName) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: m.Name, Help: m.Description})
}

func gaugeVec(m MetricName, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: m.Name, Help: m.Description}, labels)
}
