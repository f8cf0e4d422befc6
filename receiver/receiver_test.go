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

package receiver

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ska-sa/go-spead2/flavour"
	"github.com/ska-sa/go-spead2/packet"
	"github.com/ska-sa/go-spead2/stream"
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

func newTestStream() *stream.Stream {
	return stream.New(stream.Config{Flavour: flavour.Default(), Name: "test"})
}

func TestReceiver_SingleReader_FlushesOnEOF(t *testing.T) {
	st := newTestStream()
	data := append(buildPacket(1, []byte("aaaa")), buildPacket(2, []byte("bbbb"))...)

	r := New()
	r.AddBufferReader(st, data)
	require.NoError(t, r.Start())
	require.NoError(t, r.Stop())

	assert.True(t, st.Closed())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		h, ok := st.Next(ctx)
		require.True(t, ok)
		seen[h.HeapCnt] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}

func TestReceiver_MultipleReaders_FlushesOnlyAfterLast(t *testing.T) {
	st := newTestStream()
	r := New()
	r.AddBufferReader(st, buildPacket(1, []byte("aaaa")))
	r.AddBufferReader(st, buildPacket(2, []byte("bbbb")))

	require.NoError(t, r.Start())
	require.NoError(t, r.Stop())

	assert.True(t, st.Closed())
}

func TestReceiver_DoubleStart_ReturnsErrAlreadyStarted(t *testing.T) {
	st := newTestStream()
	r := New()
	r.AddBufferReader(st, buildPacket(1, []byte("x")))
	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.Start(), ErrAlreadyStarted)
	require.NoError(t, r.Stop())
}

// failingReader 总是返回一个非 EOF 错误 用于验证 Stop 聚合 worker 错误
type failingReader struct{}

func (failingReader) ID() string            { return "failing" }
func (failingReader) Next() ([]byte, error) { return nil, assertErr }

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestReceiver_Stop_AggregatesWorkerErrors(t *testing.T) {
	st := newTestStream()
	r := New()
	r.AddReader(st, failingReader{})

	require.NoError(t, r.Start())
	err := r.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestReceiver_RestartAfterStop(t *testing.T) {
	st := newTestStream()
	r := New()
	r.AddBufferReader(st, buildPacket(1, []byte("x")))
	require.NoError(t, r.Start())
	require.NoError(t, r.Stop())

	st2 := newTestStream()
	r.AddBufferReader(st2, buildPacket(1, []byte("y")))
	require.NoError(t, r.Start())
	require.NoError(t, r.Stop())
}
