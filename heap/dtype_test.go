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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormat_FastPath(t *testing.T) {
	tests := []struct {
		name     string
		fields   []FormatField
		wantBits []int
		wantKind []byte
	}{
		{"u32", []FormatField{{Code: 'u', Bits: 32}}, []int{32}, []byte{'u'}},
		{"i8", []FormatField{{Code: 'i', Bits: 8}}, []int{8}, []byte{'i'}},
		{"f32f64", []FormatField{{Code: 'f', Bits: 32}, {Code: 'f', Bits: 64}}, []int{32, 64}, []byte{'f', 'f'}},
		{"b8", []FormatField{{Code: 'b', Bits: 8}}, []int{8}, []byte{'b'}},
		{"c8", []FormatField{{Code: 'c', Bits: 8}}, []int{8}, []byte{'S'}},
		{"structured", []FormatField{{Code: 'f', Bits: 32}, {Code: 'i', Bits: 8}}, []int{32, 8}, []byte{'f', 'i'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, ok := ParseFormat(tt.fields)
			assert.True(t, ok)
			require := assert.New(t)
			require.Len(dt.Fields, len(tt.wantBits))
			for i, f := range dt.Fields {
				require.Equal(tt.wantBits[i], f.Bits)
				require.Equal(tt.wantKind[i], f.Kind)
			}
			assert.True(t, dt.BigEndian)
		})
	}
}

func TestParseFormat_UnsupportedFallsBackToNull(t *testing.T) {
	tests := []struct {
		name   string
		fields []FormatField
	}{
		{"non-byte-aligned width", []FormatField{{Code: 'u', Bits: 12}}},
		{"unknown code", []FormatField{{Code: 'x', Bits: 8}}},
		{"bad float width", []FormatField{{Code: 'f', Bits: 16}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseFormat(tt.fields)
			assert.False(t, ok)
		})
	}
}

func TestDType_ItemSizeAndObjectField(t *testing.T) {
	dt := &DType{Fields: []Field{{Name: "f0", Kind: 'u', Bits: 32}, {Name: "f1", Kind: 'i', Bits: 8}}}
	assert.Equal(t, 5, dt.ItemSize())
	assert.False(t, dt.HasObjectField())

	dt2 := &DType{Fields: []Field{{Name: "f0", Kind: 'O'}}}
	assert.True(t, dt2.HasObjectField())
}

func TestDType_Newbyteorder(t *testing.T) {
	dt := &DType{Fields: []Field{{Name: "f0", Kind: 'u', Bits: 32}}, BigEndian: true}
	swapped := dt.Newbyteorder()
	assert.False(t, swapped.BigEndian)
	assert.True(t, dt.BigEndian, "original must not be mutated")
}
