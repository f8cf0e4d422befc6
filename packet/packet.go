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

// Package packet 负责解析单个 SPEAD 数据包: 固定头部 + 变长 item pointer 列表 + payload
//
// Parser 只负责分类 item pointer 是 immediate 还是 addressed 并不解释其含义
// 值的归档和 payload 切片由上层 heap.Assembler 完成
package packet

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/flavour"
)

const (
	magicByte  = 0x53
	versionNum = 0x04

	// headerSize 固定头部长度: magic(1) + version(1) + item-pointer-width(1) +
	// heap-address-width(1) + reserved(2) + number-of-items(2)
	headerSize = 8

	// pointerSize 单个 item pointer 的编码长度 恒为 8 字节 (64-bit word)
	pointerSize = 8
)

// Standard item ids 保留的标准 item 标识
const (
	IDHeapCnt        uint64 = 0x01
	IDHeapLength     uint64 = 0x02
	IDPayloadOffset  uint64 = 0x03
	IDPayloadLength  uint64 = 0x04
	IDDescriptor     uint64 = 0x05
	IDStreamCtrl     uint64 = 0x06
)

// Descriptor 子堆中携带描述符字段的 sub-id
const (
	IDName        uint64 = 0x10
	IDDescription uint64 = 0x11
	IDShape       uint64 = 0x12
	IDFormat      uint64 = 0x13
	IDItemRef     uint64 = 0x14 // 指向被描述 item 的 id
	IDDtype       uint64 = 0x15
)

// StreamCtrlStreamStop STREAM_CTRL 子值 标记流结束
const StreamCtrlStreamStop uint64 = 0x02

// ErrMalformedPacket 包头或 item pointer 列表不满足 wire 格式约束
var ErrMalformedPacket = errors.New("packet: malformed packet")

// ItemPointer 代表一个 64-bit item pointer 解析后的结果
//
// Immediate 为 true 时 Value 是内联的原始数值
// Immediate 为 false 时 Value 是该 item 在堆 payload 中的字节偏移量
type ItemPointer struct {
	ID        uint64
	Immediate bool
	Value     uint64
}

// Packet 是单个 SPEAD 数据包的解析结果
type Packet struct {
	Flavour  flavour.Flavour
	Pointers []ItemPointer
	Payload  []byte
}

// Mandatory 在 Pointers 中查找四个标准的 immediate 字段
//
// ok 为 false 表示缺失任意一个 留给 heap.Assembler 判定为 BadHeap
func (p *Packet) Mandatory() (heapCnt, heapLength, payloadOffset, payloadLength uint64, ok bool) {
	var gotCnt, gotLen, gotOff, gotPLen bool
	for _, ptr := range p.Pointers {
		if !ptr.Immediate {
			continue
		}
		switch ptr.ID {
		case IDHeapCnt:
			heapCnt, gotCnt = ptr.Value, true
		case IDHeapLength:
			heapLength, gotLen = ptr.Value, true
		case IDPayloadOffset:
			payloadOffset, gotOff = ptr.Value, true
		case IDPayloadLength:
			payloadLength, gotPLen = ptr.Value, true
		}
	}
	ok = gotCnt && gotLen && gotOff && gotPLen
	return
}

// StreamCtrl 在 Pointers 中查找 STREAM_CTRL 字段
func (p *Packet) StreamCtrl() (value uint64, ok bool) {
	for _, ptr := range p.Pointers {
		if ptr.Immediate && ptr.ID == IDStreamCtrl {
			return ptr.Value, true
		}
	}
	return 0, false
}

// Parse 解析一个完整的 SPEAD 数据包
//
// 校验顺序: magic -> version -> item-pointer-width+heap-address-width==8 (推导 flavour)
// -> number-of-items 是否越界 指针列表之后的剩余字节即 payload 其长度不在此处校验
func Parse(buf []byte) (*Packet, error) {
	if len(buf) < headerSize {
		return nil, errors.Wrapf(ErrMalformedPacket, "buffer too short: %d bytes", len(buf))
	}
	if buf[0] != magicByte {
		return nil, errors.Wrapf(ErrMalformedPacket, "bad magic byte 0x%02x", buf[0])
	}
	if buf[1] != versionNum {
		return nil, errors.Wrapf(ErrMalformedPacket, "unsupported version 0x%02x", buf[1])
	}

	itemPtrWidth := int(buf[2])
	heapAddrWidth := int(buf[3])
	if itemPtrWidth+heapAddrWidth != 8 {
		return nil, errors.Wrapf(ErrMalformedPacket,
			"item-pointer-width (%d) + heap-address-width (%d) != 8", itemPtrWidth, heapAddrWidth)
	}

	fl, err := flavour.New(heapAddrWidth*8, 0)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedPacket, err.Error())
	}

	n := int(binary.BigEndian.Uint16(buf[6:8]))
	need := headerSize + pointerSize*n
	if need > len(buf) {
		return nil, errors.Wrapf(ErrMalformedPacket,
			"need %d bytes for %d item pointers, have %d", need, n, len(buf))
	}

	pointers := make([]ItemPointer, n)
	for i := 0; i < n; i++ {
		raw := binary.BigEndian.Uint64(buf[headerSize+i*pointerSize : headerSize+(i+1)*pointerSize])
		pointers[i] = decodePointer(raw, fl.HeapAddressBits)
	}

	return &Packet{
		Flavour:  fl,
		Pointers: pointers,
		Payload:  buf[need:],
	}, nil
}

// SplitNext 从一段可能拼接了多个数据包的连续内存中切出下一个完整数据包
//
// 用于 bufreader.BufferReader 这类没有独立分帧信息的内存源: 先读出头部与指针
// 列表以获得 PAYLOAD_LENGTH 从而算出这个包的总长度 返回这个包自身的字节切片
// 以及缓冲区中剩余的字节 报文缺少 PAYLOAD_LENGTH 时无法确定边界 视为畸形
func SplitNext(buf []byte) (pktBuf []byte, rest []byte, err error) {
	if len(buf) < headerSize {
		return nil, nil, errors.Wrapf(ErrMalformedPacket, "buffer too short: %d bytes", len(buf))
	}
	if buf[0] != magicByte {
		return nil, nil, errors.Wrapf(ErrMalformedPacket, "bad magic byte 0x%02x", buf[0])
	}
	if buf[1] != versionNum {
		return nil, nil, errors.Wrapf(ErrMalformedPacket, "unsupported version 0x%02x", buf[1])
	}

	itemPtrWidth := int(buf[2])
	heapAddrWidth := int(buf[3])
	if itemPtrWidth+heapAddrWidth != 8 {
		return nil, nil, errors.Wrapf(ErrMalformedPacket,
			"item-pointer-width (%d) + heap-address-width (%d) != 8", itemPtrWidth, heapAddrWidth)
	}
	fl, err := flavour.New(heapAddrWidth*8, 0)
	if err != nil {
		return nil, nil, errors.Wrap(ErrMalformedPacket, err.Error())
	}

	n := int(binary.BigEndian.Uint16(buf[6:8]))
	need := headerSize + pointerSize*n
	if need > len(buf) {
		return nil, nil, errors.Wrapf(ErrMalformedPacket,
			"need %d bytes for %d item pointers, have %d", need, n, len(buf))
	}

	var payloadLength uint64
	var gotPLen bool
	for i := 0; i < n; i++ {
		raw := binary.BigEndian.Uint64(buf[headerSize+i*pointerSize : headerSize+(i+1)*pointerSize])
		ptr := decodePointer(raw, fl.HeapAddressBits)
		if ptr.Immediate && ptr.ID == IDPayloadLength {
			payloadLength, gotPLen = ptr.Value, true
		}
	}
	if !gotPLen {
		return nil, nil, errors.Wrap(ErrMalformedPacket, "cannot determine packet boundary: missing PAYLOAD_LENGTH")
	}

	total := need + int(payloadLength)
	if total > len(buf) {
		return nil, nil, errors.Wrapf(ErrMalformedPacket, "need %d bytes for full packet, have %d", total, len(buf))
	}
	return buf[:total], buf[total:], nil
}

// decodePointer 按 flavour 拆分一个 64-bit item pointer
//
// bit63 为 mode 标志 (1=immediate) 其余 63 bit 中高位是 item id 低 heap_address_bits 位
// 是 immediate 原始值或 payload 偏移量
func decodePointer(raw uint64, heapAddressBits int) ItemPointer {
	const modeBit = uint64(1) << 63
	immediate := raw&modeBit != 0
	low := raw &^ modeBit
	id := low >> uint(heapAddressBits)
	value := low & ((uint64(1) << uint(heapAddressBits)) - 1)
	return ItemPointer{ID: id, Immediate: immediate, Value: value}
}

// ParsePointerList 解析一段不带包头的 item pointer 列表: 2 字节数量 + N*8 字节指针 + payload
//
// 用于解析 DESCRIPTOR item 的子堆载荷 其编码方式与数据包的指针列表段一致 只是没有
// magic/version/宽度字段 数量直接以大端 16-bit 给出
func ParsePointerList(fl flavour.Flavour, buf []byte) ([]ItemPointer, []byte, error) {
	if len(buf) < 2 {
		return nil, nil, errors.Wrap(ErrMalformedPacket, "descriptor heap: buffer too short for count")
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	need := 2 + pointerSize*n
	if need > len(buf) {
		return nil, nil, errors.Wrapf(ErrMalformedPacket,
			"descriptor heap: need %d bytes for %d item pointers, have %d", need, n, len(buf))
	}

	pointers := make([]ItemPointer, n)
	for i := 0; i < n; i++ {
		raw := binary.BigEndian.Uint64(buf[2+i*pointerSize : 2+(i+1)*pointerSize])
		pointers[i] = decodePointer(raw, fl.HeapAddressBits)
	}
	return pointers, buf[need:], nil
}

// ResolveValueSlices 把 addressed item pointer 的 Value (payload 内偏移量) 映射为
// 该 item 的原始字节切片
//
// 区间边界由偏移量排序后与下一个更大的偏移量 (或 payloadLen) 之间的距离决定 这与
// heap.Assembler 对完整堆 payload 的切片规则完全一致 因此 DESCRIPTOR 子堆内的
// NAME/DESCRIPTION/SHAPE/FORMAT/DTYPE 字段也复用同一套解析逻辑
func ResolveValueSlices(pointers []ItemPointer, payload []byte, payloadLen int) map[int][]byte {
	seen := make(map[int]bool)
	offsets := make([]int, 0, len(pointers))
	for _, p := range pointers {
		if p.Immediate {
			continue
		}
		off := int(p.Value)
		if !seen[off] {
			seen[off] = true
			offsets = append(offsets, off)
		}
	}
	sort.Ints(offsets)

	result := make(map[int][]byte, len(offsets))
	for i, off := range offsets {
		end := payloadLen
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if off > len(payload) {
			off = len(payload)
		}
		if end > len(payload) {
			end = len(payload)
		}
		if end < off {
			end = off
		}
		result[off] = payload[off:end]
	}
	return result
}
