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
	exchangeBatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "exchange",
			Name:      "batch_total",
			Help:      "Total number of row batches moved through mailboxes.",
		}, []string{"type", "kind"})

	exchangeRowsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "exchange",
			Name:      "rows_total",
			Help:      "Total number of rows moved through mailboxes.",
		}, []string{"type", "kind"})

	exchangeBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "exchange",
			Name:      "bytes_total",
			Help:      "Total estimated bytes moved through mailboxes.",
		}, []string{"type", "kind"})

	FlowControlGrantCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "exchange",
			Name:      "flow_control_grant_total",
			Help:      "Total number of credit grants sent by inboxes.",
		})

	CreditStallCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "exchange",
			Name:      "credit_stall_total",
			Help:      "Total number of times an outbox ran out of credit with rows pending.",
		})

	DroppedMessageCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "exchange",
			Name:      "dropped_message_total",
			Help:      "Total number of messages for unknown mailboxes.",
		})
)

// edge kinds
const (
	KindSingle  = "single"
	KindStriped = "striped"
	KindOutbox  = "outbox"
)

func SentBatchCounter(kind string) prometheus.Counter {
	return exchangeBatchCounter.WithLabelValues("sent", kind)
}

func ReceivedBatchCounter(kind string) prometheus.Counter {
	return exchangeBatchCounter.WithLabelValues("received", kind)
}

func SentRowsCounter(kind string) prometheus.Counter {
	return exchangeRowsCounter.WithLabelValues("sent", kind)
}

func ReceivedRowsCounter(kind string) prometheus.Counter {
	return exchangeRowsCounter.WithLabelValues("received", kind)
}

func SentBytesCounter(kind string) prometheus.Counter {
	return exchangeBytesCounter.WithLabelValues("sent", kind)
}

func ReceivedBytesCounter(kind string) prometheus.Counter {
	return exchangeBytesCounter.WithLabelValues("received", kind)
}
