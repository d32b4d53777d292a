/*
 * metrics.go, part of goMMVT
 *
 *
 * Copyright 2026 Raul Mera <rmera{at}usach(dot)cl>
 *
 *
 *  This program is free software; you can redistribute it and/or modify
 *  it under the terms of the GNU General Public License as published by
 *  the Free Software Foundation; either version 2 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License along
 *  with this program; if not, write to the Free Software Foundation, Inc.,
 *  51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 *
 *
 */

// Package metrics holds the Prometheus instruments of a single MMVT run.
// Each replica gets its own registry, so nothing is shared between runs.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mmvt"

// Run groups the counters updated by the integrator.
type Run struct {
	Registry *prometheus.Registry

	Steps      prometheus.Counter
	Crossings  *prometheus.CounterVec
	Bounces    *prometheus.CounterVec
	Deferrals  *prometheus.CounterVec
	SimTime    prometheus.Gauge
	AppendSecs prometheus.Histogram
}

// New creates and registers the instruments for one replica.
func New(replica string) *Run {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"replica": replica}
	r := &Run{
		Registry: reg,
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "steps_total",
			Help:        "Completed integration steps.",
			ConstLabels: constLabels,
		}),
		Crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "crossings_total",
			Help:        "Milestone crossings detected, by milestone.",
			ConstLabels: constLabels,
		}, []string{"milestone"}),
		Bounces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bounces_total",
			Help:        "Reflective corrections applied, by milestone.",
			ConstLabels: constLabels,
		}, []string{"milestone"}),
		Deferrals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "boundary_deferrals_total",
			Help:        "Steps where a milestone value sat exactly on its bound.",
			ConstLabels: constLabels,
		}, []string{"milestone"}),
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "simulation_time_ps",
			Help:        "Elapsed simulation time in picoseconds.",
			ConstLabels: constLabels,
		}),
		AppendSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "record_append_seconds",
			Help:        "Latency of durable appends to the crossing log.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
	reg.MustRegister(r.Steps, r.Crossings, r.Bounces, r.Deferrals, r.SimTime, r.AppendSecs)
	return r
}

// Label formats a milestone id for use as a label value.
func Label(id int) string {
	return strconv.Itoa(id)
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
