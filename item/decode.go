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

// Package item 把堆中的描述符 + 原始字节解码为带形状和类型的值
package item

import (
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/heap"
)

// Decode 按 4.6 节算法把一个原始 item 解码为它的值
//
// immediate 取值按下文规则右移后返回 dtype 为空的字节片段原样返回 否则按 shape/dtype 构造
// 定型的标量/字符串/数组值 dtype 含 object 字段或字节数不足以填满声明形状时
// 返回 ErrType
//
// heapAddressBits 是该 item 所属堆的编码参数 immediate 取值在线上是左对齐在
// heap_address_bits 宽的字段里的(例如 heap_address_bits=48 时一个 4 字节的值
// v 编码为 v<<16) 必须按 dtype 的字节宽度右移才能还原出原始取值
func Decode(d *heap.Descriptor, raw heap.RawItem, heapAddressBits int) (any, error) {
	if raw.Immediate {
		return decodeImmediate(d, raw.Value, heapAddressBits), nil
	}
	if d.DType == nil {
		return raw.Bytes, nil
	}

	if d.DType.HasObjectField() {
		return nil, errors.Wrapf(ErrType, "item 0x%x: dtype contains an object field", d.ID)
	}

	itemSize := d.DType.ItemSize()
	if itemSize == 0 {
		return nil, errors.Wrapf(ErrType, "item 0x%x: dtype has zero itemsize", d.ID)
	}

	maxElements := len(raw.Bytes) / itemSize
	shape, err := dynamicShape(d.Shape, maxElements)
	if err != nil {
		return nil, errors.Wrapf(ErrType, "item 0x%x: %s", d.ID, err.Error())
	}

	required := shapeProduct(shape)
	if required > maxElements {
		return nil, errors.Wrapf(ErrType, "item 0x%x: Item has too few elements for shape (%d < %d)",
			d.ID, maxElements, required)
	}

	flat := decodeFlat(d.DType, raw.Bytes, required)

	if isByteString(d.DType, shape) {
		return joinByteString(flat), nil
	}

	return reshape(flat, shape, d.FortranOrder), nil
}

// decodeImmediate 把一个左对齐在 heap_address_bits 宽字段里的内联取值右移回它
// 本来的宽度 dtype 缺失或声明宽度覆盖不小于整个字段时原样返回
func decodeImmediate(d *heap.Descriptor, value uint64, heapAddressBits int) uint64 {
	if d.DType == nil {
		return value
	}
	itemSize := d.DType.ItemSize()
	if itemSize <= 0 {
		return value
	}
	shift := heapAddressBits - itemSize*8
	if shift <= 0 {
		return value
	}
	return value >> uint(shift)
}
