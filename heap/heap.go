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

// Package heap 把乱序到达的 SPEAD 数据包重组为完整的堆 并解析其描述符
//
// Assembler 负责按 heap_cnt 分组字节 Heap 是组装完成(或被驱逐)后对外暴露的
// 不可变快照 Descriptor 由 DESCRIPTOR item 的子堆解码而来
package heap

import (
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/flavour"
	"github.com/ska-sa/go-spead2/packet"
)

// ErrBadHeap 对应 BadHeap: Assembler.AddPacket 在数据包缺失四个必需 immediate 字段时
// 返回它 载荷越界的数据包只记录日志并丢弃 不返回错误
var ErrBadHeap = errors.New("heap: malformed heap")

// RawItem 是 Heap.GetItems 返回的一个未解码 item: 要么是内联数值 要么是指向
// 堆 payload 的字节切片
type RawItem struct {
	ID        uint64
	Immediate bool
	Value     uint64
	Bytes     []byte
}

// Heap 是组装完成(complete=true)或被驱逐(complete=false)后发出的不可变快照
//
// 发出之后 Pointers 和 payload 都不再被 Assembler 修改 与 Item 共享同一段
// payload 字节 直到两者都不再引用它
type Heap struct {
	HeapCnt  uint64
	Flavour  flavour.Flavour
	Complete bool

	pointers []packet.ItemPointer
	payload  []byte
}

// GetDescriptors 解析堆中所有 DESCRIPTOR item 对应的子堆
func (h *Heap) GetDescriptors() ([]*Descriptor, error) {
	slices := packet.ResolveValueSlices(h.pointers, h.payload, len(h.payload))
	var out []*Descriptor
	for _, p := range h.pointers {
		if p.ID != packet.IDDescriptor || p.Immediate {
			continue
		}
		raw := slices[int(p.Value)]
		d, err := BuildDescriptor(h.Flavour, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// GetItems 返回堆中除 DESCRIPTOR 外的全部原始 item
func (h *Heap) GetItems() []RawItem {
	slices := packet.ResolveValueSlices(h.pointers, h.payload, len(h.payload))
	out := make([]RawItem, 0, len(h.pointers))
	for _, p := range h.pointers {
		if p.ID == packet.IDDescriptor {
			continue
		}
		if p.Immediate {
			out = append(out, RawItem{ID: p.ID, Immediate: true, Value: p.Value})
			continue
		}
		out = append(out, RawItem{ID: p.ID, Bytes: slices[int(p.Value)]})
	}
	return out
}
