// Copyright 2021 Matrix Origin
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

package v2

import "github.com/prometheus/client_golang/prometheus"

var (
	queryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total number of distributed queries by outcome.",
		}, []string{"type"})
	QueryStartedCounter  = queryCounter.WithLabelValues("started")
	QueryFinishedCounter = queryCounter.WithLabelValues("finished")
	QueryFailedCounter   = queryCounter.WithLabelValues("failed")
	QueryStoppedCounter  = queryCounter.WithLabelValues("stopped")

	QueryDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mo",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of query duration on the coordinator.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.0, 20),
		})

	schedTaskCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "sched",
			Name:      "task_run_total",
			Help:      "Total number of fragment task runs.",
		}, []string{"type"})
	TaskRunCounter   = schedTaskCounter.WithLabelValues("run")
	TaskYieldCounter = schedTaskCounter.WithLabelValues("yield")
)
