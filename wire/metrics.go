// Copyright 2025 The framed Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/framed/framed/common"
)

var (
	framesEncodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_frames_encoded_total",
			Help:      "frames encoded into write buffers total",
		},
		[]string{"opcode"},
	)

	framesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_frames_decoded_total",
			Help:      "frames decoded from byte streams total",
		},
		[]string{"opcode"},
	)

	decodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_decode_errors_total",
			Help:      "frame decode errors total",
		},
	)

	bytesInTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_bytes_received_total",
			Help:      "bytes fed into decoders total",
		},
	)

	bytesOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_bytes_consumed_total",
			Help:      "write buffer bytes consumed by transports total",
		},
	)

	bufferCompactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_buffer_compactions_total",
			Help:      "write buffer prefix compactions total",
		},
	)

	bufferReleasesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "wire_buffer_releases_total",
			Help:      "buffers released after exceeding the big-alloc threshold total",
		},
	)
)
