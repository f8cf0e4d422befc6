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

package item

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ska-sa/go-spead2/flavour"
	"github.com/ska-sa/go-spead2/heap"
	"github.com/ska-sa/go-spead2/packet"
)

const testHeapAddressBits = 48

func encodePointer(id uint64, immediate bool, value uint64) uint64 {
	var raw uint64
	if immediate {
		raw = uint64(1) << 63
	}
	raw |= id << testHeapAddressBits
	raw |= value & ((uint64(1) << testHeapAddressBits) - 1)
	return raw
}

// buildDescriptorBytes 构造一个只含 NAME/FORMAT/SHAPE/ID 的 descriptor 子堆载荷
func buildDescriptorBytes(t *testing.T, fl flavour.Flavour, itemID uint64, name string, format []heap.FormatField, shape []int) []byte {
	t.Helper()

	encodeShape := func() []byte {
		width := fl.DescriptorShapeFieldWidth()
		out := make([]byte, width*len(shape))
		marker := fl.ShapeVariableMarker()
		for i, d := range shape {
			chunk := out[i*width : (i+1)*width]
			if d < 0 {
				chunk[0] = marker
				continue
			}
			v := uint64(d)
			for b := width - 1; b >= 1; b-- {
				chunk[b] = byte(v)
				v >>= 8
			}
		}
		return out
	}
	encodeFormat := func() []byte {
		width := fl.DescriptorFormatFieldWidth()
		out := make([]byte, width*len(format))
		for i, f := range format {
			chunk := out[i*width : (i+1)*width]
			chunk[0] = f.Code
			v := uint64(f.Bits)
			for b := width - 1; b >= 1; b-- {
				chunk[b] = byte(v)
				v >>= 8
			}
		}
		return out
	}

	type field struct {
		id  uint64
		val []byte
	}
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, itemID)
	fields := []field{
		{packet.IDItemRef, idBytes},
		{packet.IDName, []byte(name)},
		{packet.IDFormat, encodeFormat()},
		{packet.IDShape, encodeShape()},
	}

	var pointers []packet.ItemPointer
	var payload []byte
	for _, f := range fields {
		pointers = append(pointers, packet.ItemPointer{ID: f.id, Value: uint64(len(payload))})
		payload = append(payload, f.val...)
	}

	buf := make([]byte, 2+len(pointers)*8+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(pointers)))
	for i, p := range pointers {
		binary.BigEndian.PutUint64(buf[2+i*8:2+(i+1)*8], encodePointer(p.ID, false, p.Value))
	}
	copy(buf[2+len(pointers)*8:], payload)
	return buf
}

// buildPacketWithDescriptorAndValue 构造单个数据包 同时携带一个 DESCRIPTOR
// item 和它所描述的值 item 验证 ItemGroup.Update 的"描述符先于取值"顺序
func buildPacketWithDescriptorAndValue(t *testing.T, fl flavour.Flavour, itemID uint64, descriptorPayload, valuePayload []byte) []byte {
	t.Helper()

	mandatory := []packet.ItemPointer{
		{ID: packet.IDHeapCnt, Immediate: true, Value: 1},
	}
	var payload []byte
	var pointers []packet.ItemPointer
	pointers = append(pointers, packet.ItemPointer{ID: packet.IDDescriptor, Value: 0})
	payload = append(payload, descriptorPayload...)
	pointers = append(pointers, packet.ItemPointer{ID: itemID, Value: uint64(len(payload))})
	payload = append(payload, valuePayload...)

	mandatory = append(mandatory,
		packet.ItemPointer{ID: packet.IDHeapLength, Immediate: true, Value: uint64(len(payload))},
		packet.ItemPointer{ID: packet.IDPayloadOffset, Immediate: true, Value: 0},
		packet.ItemPointer{ID: packet.IDPayloadLength, Immediate: true, Value: uint64(len(payload))},
	)
	all := append(mandatory, pointers...)

	buf := make([]byte, 8+len(all)*8+len(payload))
	buf[0] = 0x53
	buf[1] = 0x04
	buf[2] = byte((64 - testHeapAddressBits) / 8)
	buf[3] = byte(testHeapAddressBits / 8)
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(all)))
	for i, p := range all {
		binary.BigEndian.PutUint64(buf[8+i*8:8+(i+1)*8], encodePointer(p.ID, p.Immediate, p.Value))
	}
	copy(buf[8+len(all)*8:], payload)
	return buf
}

func TestItemGroup_UpdateEndToEnd(t *testing.T) {
	fl, err := flavour.New(48, 0)
	require.NoError(t, err)

	descBytes := buildDescriptorBytes(t, fl, 0x2000, "scale", []heap.FormatField{{Code: 'u', Bits: 32}}, nil)
	valueBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(valueBytes, 42)

	buf := buildPacketWithDescriptorAndValue(t, fl, 0x2000, descBytes, valueBytes)
	pkt, err := packet.Parse(buf)
	require.NoError(t, err)

	asm := heap.NewAssembler(fl, heap.DefaultMaxHeaps)
	completed, _, err := asm.AddPacket(pkt)
	require.NoError(t, err)
	require.NotNil(t, completed)

	g := NewItemGroup()
	require.NoError(t, g.Update(completed))

	it, ok := g.Get(0x2000)
	require.True(t, ok)
	assert.Equal(t, "scale", it.Descriptor.Name)
	assert.Equal(t, uint32(42), it.Value)
}

func TestItemGroup_EmptyHeapUpdateIsNoop(t *testing.T) {
	fl, err := flavour.New(48, 0)
	require.NoError(t, err)

	h := &heap.Heap{Flavour: fl, Complete: true}
	g := NewItemGroup()
	// heap.Heap 的内部字段是未导出的 这里通过一个没有描述符的空堆验证 Update
	// 在没有任何 item 时不会报错
	require.NoError(t, g.Update(h))
	assert.Empty(t, g.Items())
}
