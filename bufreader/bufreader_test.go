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

package bufreader

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func buildPacket(heapCnt uint64, payload []byte) []byte {
	all := []packet.ItemPointer{
		{ID: packet.IDHeapCnt, Immediate: true, Value: heapCnt},
		{ID: packet.IDHeapLength, Immediate: true, Value: uint64(len(payload))},
		{ID: packet.IDPayloadOffset, Immediate: true, Value: 0},
		{ID: packet.IDPayloadLength, Immediate: true, Value: uint64(len(payload))},
	}
	buf := make([]byte, 8+len(all)*8+len(payload))
	buf[0] = 0x53
	buf[1] = 0x04
	buf[2] = (64 - testHeapAddressBits) / 8
	buf[3] = testHeapAddressBits / 8
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(all)))
	for i, ptr := range all {
		binary.BigEndian.PutUint64(buf[8+i*8:8+(i+1)*8], encodePointer(ptr.ID, ptr.Immediate, ptr.Value))
	}
	copy(buf[8+len(all)*8:], payload)
	return buf
}

func TestBufferReader_SplitsBackToBackPackets(t *testing.T) {
	p1 := buildPacket(1, []byte("aaaa"))
	p2 := buildPacket(2, []byte("bbbbbb"))
	span := append(append([]byte{}, p1...), p2...)

	r := New(span)
	got1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, p1, got1)
	assert.Equal(t, len(p2), r.Remaining())

	got2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, p2, got2)
	assert.Equal(t, 0, r.Remaining())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBufferReader_ID_StableForSameContent(t *testing.T) {
	data := buildPacket(1, []byte("x"))
	r1 := New(append([]byte{}, data...))
	r2 := New(append([]byte{}, data...))
	assert.Equal(t, r1.ID(), r2.ID())
}

func TestBufferReader_MalformedTailIsReportedAsError(t *testing.T) {
	r := New([]byte{0x00, 0x01})
	_, err := r.Next()
	assert.ErrorIs(t, err, packet.ErrMalformedPacket)
	assert.Equal(t, 0, r.Remaining())
}
