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

package heap

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/ska-sa/go-spead2/flavour"
	"github.com/ska-sa/go-spead2/internal/fasttime"
	"github.com/ska-sa/go-spead2/logger"
	"github.com/ska-sa/go-spead2/packet"
)

// DefaultMaxHeaps 与原始实现一致: 一个 Stream 同一时刻最多保留 4 个在途堆
const DefaultMaxHeaps = 4

// byteRange 是 payload 中一段已写入的字节区间 [start, end)
type byteRange struct {
	start, end int
}

// liveHeap 是 Assembler 内部持有的可变重组状态
type liveHeap struct {
	heapCnt     uint64
	totalLength int
	buf         *bytebufferpool.ByteBuffer
	received    []byteRange
	pointers    []packet.ItemPointer
	seenIDs     map[uint64]bool
	firstSeen   int64
	seq         int64
}

var heapBufferPool bytebufferpool.Pool

func newLiveHeap(heapCnt uint64, totalLength int, seq int64) *liveHeap {
	buf := heapBufferPool.Get()
	buf.B = append(buf.B[:0], make([]byte, totalLength)...)
	return &liveHeap{
		heapCnt:     heapCnt,
		totalLength: totalLength,
		buf:         buf,
		pointers:    nil,
		seenIDs:     make(map[uint64]bool),
		firstSeen:   fasttime.UnixTimestamp(),
		seq:         seq,
	}
}

// grow 扩大 payload 缓冲区到 newTotal 字节 保留之前写入的内容
func (lh *liveHeap) grow(newTotal int) {
	if newTotal <= lh.totalLength {
		return
	}
	old := lh.buf.B
	lh.buf.B = append(old[:len(old):len(old)], make([]byte, newTotal-len(old))...)
	lh.totalLength = newTotal
}

// addRange 记录一段已写入区间 与已有区间合并 返回这段区间此前是否已被完整覆盖
// (用于识别重复包)
func (lh *liveHeap) addRange(start, end int) (alreadyCovered bool) {
	if start >= end {
		return true
	}
	for _, r := range lh.received {
		if start >= r.start && end <= r.end {
			return true
		}
	}
	merged := append(lh.received, byteRange{start, end})
	sort.Slice(merged, func(i, j int) bool { return merged[i].start < merged[j].start })
	out := merged[:0]
	for _, r := range merged {
		if len(out) > 0 && r.start <= out[len(out)-1].end {
			if r.end > out[len(out)-1].end {
				out[len(out)-1].end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	lh.received = out
	return false
}

// isComplete 判断已写入区间是否恰好覆盖 [0, totalLength)
func (lh *liveHeap) isComplete() bool {
	if lh.totalLength == 0 {
		return true
	}
	return len(lh.received) == 1 && lh.received[0].start == 0 && lh.received[0].end == lh.totalLength
}

func (lh *liveHeap) recordPointer(p packet.ItemPointer) {
	if lh.seenIDs[p.ID] {
		return
	}
	lh.seenIDs[p.ID] = true
	lh.pointers = append(lh.pointers, p)
}

func (lh *liveHeap) emit(fl flavour.Flavour, complete bool) *Heap {
	payload := append([]byte(nil), lh.buf.B...)
	heapBufferPool.Put(lh.buf)
	return &Heap{
		HeapCnt:  lh.heapCnt,
		Flavour:  fl,
		Complete: complete,
		pointers: lh.pointers,
		payload:  payload,
	}
}

// Assembler 按 heap_cnt 把数据包重组为堆
//
// 一个 Assembler 只服务于一个 Stream 其内部状态用互斥锁串行化 以支持多个
// Reader 并发调用 AddPacket
type Assembler struct {
	mu       sync.Mutex
	flavour  flavour.Flavour
	maxHeaps int
	live     map[uint64]*liveHeap
	nextSeq  int64
}

// NewAssembler 创建一个绑定指定 flavour 的 Assembler maxHeaps<=0 时使用默认值
func NewAssembler(fl flavour.Flavour, maxHeaps int) *Assembler {
	if maxHeaps <= 0 {
		maxHeaps = DefaultMaxHeaps
	}
	return &Assembler{
		flavour:  fl,
		maxHeaps: maxHeaps,
		live:     make(map[uint64]*liveHeap),
	}
}

// AddPacket 把一个已解析的数据包并入对应的堆
//
// completed 非 nil 表示这个包恰好补全了它所属的堆 evicted 是因为超出 maxHeaps
// 而被强制发出的堆(可能不完整) 二者互不冲突 可能同时非空
func (a *Assembler) AddPacket(pkt *packet.Packet) (completed *Heap, evicted []*Heap, err error) {
	heapCnt, heapLength, payloadOffset, payloadLength, ok := pkt.Mandatory()
	if !ok {
		return nil, nil, errors.Wrap(ErrBadHeap, "packet missing mandatory immediates")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lh, exists := a.live[heapCnt]
	if !exists {
		lh = newLiveHeap(heapCnt, int(heapLength), a.nextSeq)
		a.nextSeq++
		a.live[heapCnt] = lh
	} else if int(heapLength) > lh.totalLength {
		lh.grow(int(heapLength))
	}

	offset := int(payloadOffset)
	length := int(payloadLength)
	if offset < 0 || length < 0 || offset+length > lh.totalLength || length > len(pkt.Payload) {
		logger.Warnf("heap: dropping packet for heap_cnt=%d: payload [%d,%d) out of bounds for total_length=%d",
			heapCnt, offset, offset+length, lh.totalLength)
		return nil, a.evictOverflow(), nil
	}

	if !lh.addRange(offset, offset+length) {
		copy(lh.buf.B[offset:offset+length], pkt.Payload[:length])
	}

	for _, p := range pkt.Pointers {
		switch p.ID {
		case packet.IDHeapCnt, packet.IDHeapLength, packet.IDPayloadOffset, packet.IDPayloadLength:
			continue
		}
		lh.recordPointer(p)
	}

	evicted = a.evictOverflow()

	if lh.isComplete() {
		delete(a.live, heapCnt)
		completed = lh.emit(a.flavour, true)
	}

	return completed, evicted, nil
}

// evictOverflow 在持有锁期间检查是否超出 maxHeaps 必要时驱逐最旧的在途堆
//
// 调用方必须已经持有 a.mu
func (a *Assembler) evictOverflow() []*Heap {
	var out []*Heap
	for len(a.live) > a.maxHeaps {
		var oldestCnt uint64
		var oldest *liveHeap
		for cnt, lh := range a.live {
			if oldest == nil || lh.firstSeen < oldest.firstSeen ||
				(lh.firstSeen == oldest.firstSeen && lh.seq < oldest.seq) {
				oldest = lh
				oldestCnt = cnt
			}
		}
		delete(a.live, oldestCnt)
		logger.Warnf("heap: evicting incomplete heap_cnt=%d (max_heaps=%d exceeded)", oldestCnt, a.maxHeaps)
		out = append(out, oldest.emit(a.flavour, false))
	}
	return out
}

// Flush 强制发出所有在途堆 标记为不完整 用于 Reader 耗尽或 Stream 关闭时排空
func (a *Assembler) Flush() []*Heap {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*Heap, 0, len(a.live))
	for cnt, lh := range a.live {
		out = append(out, lh.emit(a.flavour, lh.isComplete()))
		delete(a.live, cnt)
	}
	return out
}

// LiveCount 返回当前正在组装中的堆数量 用于上报 metrics.LiveHeaps
func (a *Assembler) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.live)
}
