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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ska-sa/go-spead2/heap"
)

const testHeapAddressBits = 48

func mustDType(t *testing.T, fields []heap.FormatField) *heap.DType {
	t.Helper()
	dt, ok := heap.ParseFormat(fields)
	require.True(t, ok)
	return dt
}

// Scenario 1: scalar int, addressed.
func TestDecode_ScalarIntAddressed(t *testing.T) {
	d := &heap.Descriptor{ID: 1, Shape: nil, DType: mustDType(t, []heap.FormatField{{Code: 'i', Bits: 32}})}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(int32(-123456789)))

	val, err := Decode(d, heap.RawItem{ID: 1, Bytes: payload}, testHeapAddressBits)
	require.NoError(t, err)
	assert.Equal(t, int32(-123456789), val)
}

// Scenario 2: scalar int, immediate. An immediate item pointer's Value field
// holds the value left-justified in the heap_address_bits-wide low half of
// the wire word, the same way decodePointer extracts it; Decode must shift it
// back down by the dtype's width to recover the original number.
func TestDecode_ScalarIntImmediate(t *testing.T) {
	d := &heap.Descriptor{ID: 2, Shape: nil, DType: mustDType(t, []heap.FormatField{{Code: 'u', Bits: 32}})}

	wireValue := uint64(0x12345678) << (testHeapAddressBits - 32)
	val, err := Decode(d, heap.RawItem{ID: 2, Immediate: true, Value: wireValue}, testHeapAddressBits)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12345678), val)
}

// Scenario 3: byte string.
func TestDecode_ByteString(t *testing.T) {
	d := &heap.Descriptor{ID: 3, Shape: []int{-1}, DType: mustDType(t, []heap.FormatField{{Code: 'c', Bits: 8}})}

	val, err := Decode(d, heap.RawItem{ID: 3, Bytes: []byte("Hello world")}, testHeapAddressBits)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", val)
}

// Scenario 4: 2-D float array.
func TestDecode_2DFloatArray(t *testing.T) {
	d := &heap.Descriptor{ID: 4, Shape: []int{3, 2}, DType: mustDType(t, []heap.FormatField{{Code: 'f', Bits: 32}})}
	floats := []float32{1.5, 2.5, 3.5, 4.5, 5.5, 6.5}
	payload := make([]byte, 4*len(floats))
	for i, f := range floats {
		binary.BigEndian.PutUint32(payload[i*4:], math.Float32bits(f))
	}

	val, err := Decode(d, heap.RawItem{ID: 4, Bytes: payload}, testHeapAddressBits)
	require.NoError(t, err)

	want := []any{
		[]any{float32(1.5), float32(2.5)},
		[]any{float32(3.5), float32(4.5)},
		[]any{float32(5.5), float32(6.5)},
	}
	assert.Equal(t, want, val)
}

// Scenario 5: structured array with two fields.
func TestDecode_StructuredArray(t *testing.T) {
	d := &heap.Descriptor{ID: 5, Shape: []int{3}, DType: mustDType(t, []heap.FormatField{{Code: 'f', Bits: 32}, {Code: 'i', Bits: 8}})}

	type rec struct {
		f float32
		i int8
	}
	records := []rec{{1.5, 1}, {2.5, 2}, {4.5, -4}}
	payload := make([]byte, 5*len(records))
	for i, r := range records {
		binary.BigEndian.PutUint32(payload[i*5:], math.Float32bits(r.f))
		payload[i*5+4] = byte(r.i)
	}

	val, err := Decode(d, heap.RawItem{ID: 5, Bytes: payload}, testHeapAddressBits)
	require.NoError(t, err)

	want := []any{
		[]any{float32(1.5), int8(1)},
		[]any{float32(2.5), int8(2)},
		[]any{float32(4.5), int8(-4)},
	}
	assert.Equal(t, want, val)
}

// Scenario 6: size mismatch.
func TestDecode_SizeMismatch(t *testing.T) {
	d := &heap.Descriptor{ID: 6, Shape: []int{5, 5}, DType: mustDType(t, []heap.FormatField{{Code: 'u', Bits: 32}})}
	payload := make([]byte, 99)

	_, err := Decode(d, heap.RawItem{ID: 6, Bytes: payload}, testHeapAddressBits)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrType)
}

// Scenario 7: object dtype rejection.
func TestDecode_ObjectDtypeRejected(t *testing.T) {
	d := &heap.Descriptor{
		ID:    7,
		Shape: []int{1},
		DType: &heap.DType{Fields: []heap.Field{{Name: "f0", Kind: 'O'}}},
	}

	_, err := Decode(d, heap.RawItem{ID: 7, Bytes: []byte{0}}, testHeapAddressBits)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrType)
}

func TestDecode_DtypeNilReturnsRawBytes(t *testing.T) {
	d := &heap.Descriptor{ID: 8}
	val, err := Decode(d, heap.RawItem{ID: 8, Bytes: []byte{1, 2, 3}}, testHeapAddressBits)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, val)
}

// An immediate item with no descriptor dtype has no width to shift by, so it
// is returned exactly as carried in the pointer's Value field.
func TestDecode_ImmediateNilDtypeReturnsRawValue(t *testing.T) {
	d := &heap.Descriptor{ID: 9}
	val, err := Decode(d, heap.RawItem{ID: 9, Immediate: true, Value: 0x12345678}, testHeapAddressBits)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12345678), val)
}

func TestDynamicShape(t *testing.T) {
	tests := []struct {
		name        string
		shape       []int
		maxElements int
		want        []int
		wantErr     bool
	}{
		{"no unknown", []int{3, 2}, 6, []int{3, 2}, false},
		{"one unknown", []int{-1, 2}, 10, []int{5, 2}, false},
		{"unknown with zero sibling", []int{-1, 0}, 10, []int{0, 0}, false},
		{"two unknowns", []int{-1, -1}, 10, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dynamicShape(tt.shape, tt.maxElements)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
