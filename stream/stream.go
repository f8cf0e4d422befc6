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

// Package stream 把解析好的数据包并入 heap.Assembler 并通过一个有界 Ring
// 把完成的堆交给消费者
//
// Stream 是生产者(Reader)与消费者之间唯一的并发边界: add_packet 只会短暂
// 持有 Assembler 的互斥锁 消费者在 Ring 为空时阻塞 直到堆到达或 Stream 关闭
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/common"
	"github.com/ska-sa/go-spead2/flavour"
	"github.com/ska-sa/go-spead2/heap"
	"github.com/ska-sa/go-spead2/logger"
	"github.com/ska-sa/go-spead2/metrics"
	"github.com/ska-sa/go-spead2/packet"
)

// ErrClosed Stream 已经关闭 不再接受新的数据包
var ErrClosed = errors.New("stream: closed")

// Config 描述一个 Stream 的创建参数
type Config struct {
	// Flavour 编码参数 HeapAddressBits 必须是 40 或 48
	Flavour flavour.Flavour

	// RingCapacity Ring 的容量 <=0 时使用 common.DefaultRingCapacity
	RingCapacity int

	// MaxHeaps 同时在途的堆上限 <=0 时使用 heap.DefaultMaxHeaps
	MaxHeaps int

	// Lossy 为 true 时 Ring 已满会丢弃最旧的已完成堆 而不是阻塞生产者
	Lossy bool

	// Name 用于区分 metrics 标签 的 stream 名称 可留空
	Name string
}

// Stream 拥有一个 Assembler 一个完成堆的 Ring 以及绑定到它的若干 Reader
type Stream struct {
	name      string
	flavour   flavour.Flavour
	assembler *heap.Assembler
	ring      *Ring

	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建一个 Stream
func New(cfg Config) *Stream {
	ringCap := cfg.RingCapacity
	if ringCap <= 0 {
		ringCap = common.DefaultRingCapacity
	}
	return &Stream{
		name:      cfg.Name,
		flavour:   cfg.Flavour,
		assembler: heap.NewAssembler(cfg.Flavour, cfg.MaxHeaps),
		ring:      NewRing(ringCap, cfg.Lossy),
	}
}

// BugCompat 返回该 Stream 的 bug-compat 标志位
func (s *Stream) BugCompat() flavour.BugCompat {
	return s.flavour.BugCompat
}

// Flavour 返回该 Stream 的编码参数
func (s *Stream) Flavour() flavour.Flavour {
	return s.flavour
}

// AddPacket 解析一段字节并把它并入 Assembler
//
// Stream 关闭之后调用会返回 ErrClosed 调用方(Reader)应当把这视为丢包并记录日志
// 解析失败(MalformedPacket)或装配失败(BadHeap)都不会向上传播 仅计入 metrics 并被
// 丢弃 生产者侧的错误永远不会让消费者看到
func (s *Stream) AddPacket(buf []byte) error {
	if s.closed.Load() {
		metrics.PacketsDropped.Inc()
		return ErrClosed
	}

	pkt, err := packet.Parse(buf)
	if err != nil {
		metrics.PacketsMalformed.Inc()
		logger.Warnf("stream[%s]: dropping malformed packet: %v", s.name, err)
		return nil
	}

	completed, evicted, err := s.assembler.AddPacket(pkt)
	if err != nil {
		metrics.PacketsDropped.Inc()
		logger.Warnf("stream[%s]: dropping packet: %v", s.name, err)
		return nil
	}

	ctx := context.Background()
	for _, h := range evicted {
		metrics.HeapsEvicted.Inc()
		if s.ring.Push(ctx, h) {
			metrics.HeapsDroppedLossy.Inc()
		}
	}
	if completed != nil {
		metrics.HeapsCompleted.Inc()
		if s.ring.Push(ctx, completed) {
			metrics.HeapsDroppedLossy.Inc()
		}
	}

	if val, ok := pkt.StreamCtrl(); ok && val == packet.StreamCtrlStreamStop {
		s.Close()
	}

	metrics.LiveHeaps.WithLabelValues(s.name).Set(float64(s.assembler.LiveCount()))
	metrics.RingDepth.WithLabelValues(s.name).Set(float64(s.ring.Depth()))
	return nil
}

// Next 阻塞直到下一个完成的堆到达 ctx 被取消 或 Stream 关闭且已排空
//
// 返回的顺序是 Assembler 完成/驱逐堆的顺序 不保证是 heap_cnt 顺序
func (s *Stream) Next(ctx context.Context) (*heap.Heap, bool) {
	v, ok := s.ring.Next(ctx)
	if !ok {
		return nil, false
	}
	return v.(*heap.Heap), true
}

// TryNext 非阻塞地尝试取出下一个完成的堆 用于单 goroutine 的同步消费场景
// (例如一次性离线回放) 没有堆在等待时立即返回 ok=false
func (s *Stream) TryNext() (*heap.Heap, bool) {
	v, ok := s.ring.TryNext()
	if !ok {
		return nil, false
	}
	return v.(*heap.Heap), true
}

// Close 原子地: 拒绝新数据包 把剩余在途堆 flush 到 Ring 再标记 Ring 为关闭
//
// 多次调用是安全的 只有第一次调用会真正执行 flush
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		for _, h := range s.assembler.Flush() {
			s.ring.Push(context.Background(), h)
		}
		s.ring.Close()
	})
}

// Closed 报告 Stream 是否已经关闭(不代表 Ring 已排空)
func (s *Stream) Closed() bool {
	return s.closed.Load()
}

// Name 返回创建时指定的 stream 名称
func (s *Stream) Name() string {
	return s.name
}

// Stats 返回一份适合 server.StatsFunc 使用的快照
func (s *Stream) Stats() map[string]any {
	return map[string]any{
		"name":       s.name,
		"ring_depth": s.ring.Depth(),
		"live_heaps": s.assembler.LiveCount(),
		"closed":     s.closed.Load(),
	}
}
