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
	"math"
	"strings"

	"github.com/ska-sa/go-spead2/heap"
)

// unpackUint 把 bits 位宽的字节序列解释为 uint64 byteOrder 由 dtype 声明
func unpackUint(b []byte, bigEndian bool) uint64 {
	var v uint64
	if bigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
	} else {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
	}
	return v
}

// decodeScalarField 把一个字段的原始字节解析为对应 Kind 的 Go 原生值
func decodeScalarField(f heap.Field, bigEndian bool, b []byte) any {
	switch f.Kind {
	case 'u':
		v := unpackUint(b, bigEndian)
		switch f.Bits {
		case 8:
			return uint8(v)
		case 16:
			return uint16(v)
		case 32:
			return uint32(v)
		default:
			return v
		}
	case 'i':
		v := unpackUint(b, bigEndian)
		switch f.Bits {
		case 8:
			return int8(v)
		case 16:
			return int16(v)
		case 32:
			return int32(v)
		default:
			return int64(v)
		}
	case 'f':
		v := unpackUint(b, bigEndian)
		if f.Bits == 32 {
			return math.Float32frombits(uint32(v))
		}
		return math.Float64frombits(v)
	case 'b':
		return b[0] != 0
	case 'S':
		return string(b)
	default:
		return append([]byte(nil), b...)
	}
}

// decodeFlat 把 payload 的前 required 个元素解码为一个 Go 值切片
//
// dtype 只有一个字段时每个元素是该字段的原生标量 多个字段时每个元素是按字段
// 顺序排列的 []any 记录
func decodeFlat(dt *heap.DType, payload []byte, required int) []any {
	itemSize := dt.ItemSize()
	flat := make([]any, required)
	for i := 0; i < required; i++ {
		rec := payload[i*itemSize : (i+1)*itemSize]
		if len(dt.Fields) == 1 {
			flat[i] = decodeScalarField(dt.Fields[0], dt.BigEndian, rec)
			continue
		}
		fields := make([]any, len(dt.Fields))
		off := 0
		for j, f := range dt.Fields {
			width := f.Bits / 8
			fields[j] = decodeScalarField(f, dt.BigEndian, rec[off:off+width])
			off += width
		}
		flat[i] = fields
	}
	return flat
}

// computeStrides 返回每个维度前进一步时 flat 索引应当移动的步长
func computeStrides(shape []int, fortranOrder bool) []int {
	n := len(shape)
	strides := make([]int, n)
	if fortranOrder {
		stride := 1
		for i := 0; i < n; i++ {
			strides[i] = stride
			stride *= shape[i]
		}
	} else {
		stride := 1
		for i := n - 1; i >= 0; i-- {
			strides[i] = stride
			stride *= shape[i]
		}
	}
	return strides
}

func buildDim(flat []any, shape, strides []int, dim, base int) any {
	out := make([]any, shape[dim])
	if dim == len(shape)-1 {
		for i := 0; i < shape[dim]; i++ {
			out[i] = flat[base+i*strides[dim]]
		}
		return out
	}
	for i := 0; i < shape[dim]; i++ {
		out[i] = buildDim(flat, shape, strides, dim+1, base+i*strides[dim])
	}
	return out
}

// reshape 把一个按 fortranOrder 编排的扁平元素序列重排为嵌套 shape
//
// shape 为空时返回 flat[0] 本身(标量) 这是 4.6 节描述的后处理规则之一
func reshape(flat []any, shape []int, fortranOrder bool) any {
	if len(shape) == 0 {
		if len(flat) == 0 {
			return nil
		}
		return flat[0]
	}
	if shapeProduct(shape) == 0 {
		return buildDim(flat, shape, computeStrides(shape, fortranOrder), 0, 0)
	}
	strides := computeStrides(shape, fortranOrder)
	return buildDim(flat, shape, strides, 0, 0)
}

// isByteString 判断一个一维 dtype 是否应当按 ASCII 字符串后处理 (c8/S1 规则)
func isByteString(dt *heap.DType, shape []int) bool {
	return len(shape) == 1 && len(dt.Fields) == 1 && dt.Fields[0].Kind == 'S' && dt.Fields[0].Bits == 8
}

// joinByteString 把逐元素解码出的单字符字符串拼接为一个 ASCII 字符串
func joinByteString(flat []any) string {
	var b strings.Builder
	for _, v := range flat {
		s, ok := v.(string)
		if !ok {
			continue
		}
		b.WriteString(s)
	}
	return b.String()
}
