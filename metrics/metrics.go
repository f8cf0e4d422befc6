// Copyright 2025 The packetd Authors
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

// Package metrics 汇总 stream 包上报的 Prometheus 指标
//
// 这里只声明计数器/仪表 不涉及任何 SPEAD 解析逻辑 供 stream.Stream 在关键
// 事件上调用
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ska-sa/go-spead2/common"
)

var (
	// HeapsCompleted 累计组装完成的堆数量 所有 stream 共用这一个计数器
	HeapsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Subsystem: "heap",
		Name:      "completed_total",
		Help:      "number of heaps fully assembled and emitted",
	})

	// HeapsEvicted 因超出 max_heaps 而被强制发出的(可能不完整的)堆数量
	HeapsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Subsystem: "heap",
		Name:      "evicted_total",
		Help:      "number of heaps evicted incomplete due to max_heaps",
	})

	// PacketsMalformed 被解析器拒绝的数据包数量
	PacketsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Subsystem: "packet",
		Name:      "malformed_total",
		Help:      "number of packets dropped for failing to parse",
	})

	// PacketsDropped closed stream 或者 bad heap 导致被丢弃的数据包数量
	PacketsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Subsystem: "packet",
		Name:      "dropped_total",
		Help:      "number of packets dropped after a closed stream or bad heap",
	})

	// HeapsDroppedLossy lossy 模式下因环形队列已满而被丢弃的已完成堆数量
	HeapsDroppedLossy = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Subsystem: "ring",
		Name:      "dropped_total",
		Help:      "number of completed heaps dropped from a full lossy ring",
	})

	// RingDepth 当前环形队列中待消费的堆数量
	RingDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: common.App,
		Subsystem: "ring",
		Name:      "depth",
		Help:      "number of completed heaps currently queued per stream",
	}, []string{"stream"})

	// LiveHeaps 当前正在组装中的堆数量
	LiveHeaps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: common.App,
		Subsystem: "heap",
		Name:      "live",
		Help:      "number of heaps currently being assembled per stream",
	}, []string{"stream"})
)
