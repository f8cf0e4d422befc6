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

// Package flavour 定义了 SPEAD 协议的编码参数对 (heap_address_bits, bug_compat)
//
// 所有 Wire 格式的尺寸字段都由 heap_address_bits 推导 bug_compat 则用于兼容
// 一些历史发送端实现的编码缺陷
package flavour

import "github.com/pkg/errors"

// BugCompat 用于兼容历史 SPEAD 发送端实现的编码缺陷 可以多个标志位组合
type BugCompat uint32

const (
	// BugCompatDescriptorWidths Descriptor 的 FORMAT/SHAPE 字段使用固定的 7/8 字节宽度
	BugCompatDescriptorWidths BugCompat = 1 << iota

	// BugCompatShapeBit1 SHAPE 字段中标记可变维度的字节取值为 2 而非 1
	BugCompatShapeBit1

	// BugCompatSwapEndian numpy header 中声明的 native 字节序 dtype 需要被反转
	BugCompatSwapEndian
)

// Has 判断是否包含指定标志位
func (b BugCompat) Has(flag BugCompat) bool {
	return b&flag != 0
}

// Flavour 描述了一条 SPEAD 数据流的编码参数
type Flavour struct {
	// HeapAddressBits 堆内寻址位宽 仅支持 40 或 48
	HeapAddressBits int

	// BugCompat 历史发送端缺陷兼容标志位
	BugCompat BugCompat
}

// Default 返回 SPEAD 默认的编码参数 (heap_address_bits=48, bug_compat=0)
func Default() Flavour {
	return Flavour{HeapAddressBits: 48}
}

// New 创建并校验 Flavour 实例
func New(heapAddressBits int, bugCompat BugCompat) (Flavour, error) {
	f := Flavour{HeapAddressBits: heapAddressBits, BugCompat: bugCompat}
	if err := f.Validate(); err != nil {
		return Flavour{}, err
	}
	return f, nil
}

// Validate 校验 heap_address_bits 是否为受支持的取值
func (f Flavour) Validate() error {
	if f.HeapAddressBits != 40 && f.HeapAddressBits != 48 {
		return errors.Errorf("flavour: unsupported heap_address_bits %d (want 40 or 48)", f.HeapAddressBits)
	}
	return nil
}

// HeapAddressWidthBytes 返回 heap_address_bits 对应的字节数
func (f Flavour) HeapAddressWidthBytes() int {
	return f.HeapAddressBits / 8
}

// ItemPointerWidthBytes 返回 item id 部分所占的字节数 恰好与 heap_address_bits 互补至 8 字节
func (f Flavour) ItemPointerWidthBytes() int {
	return (64 - f.HeapAddressBits) / 8
}

// DescriptorShapeFieldWidth 返回 Descriptor SHAPE 字段单个元素的编码宽度 (marker + 整数)
//
// BugCompatDescriptorWidths 会强制使用固定的 8 字节宽度 而非由 heap_address_bits 推导
func (f Flavour) DescriptorShapeFieldWidth() int {
	if f.BugCompat.Has(BugCompatDescriptorWidths) {
		return 8
	}
	return f.HeapAddressWidthBytes() + 1
}

// DescriptorFormatFieldWidth 返回 Descriptor FORMAT 字段单个元素的编码宽度 (code + 长度)
//
// BugCompatDescriptorWidths 会强制使用固定的 7 字节宽度
func (f Flavour) DescriptorFormatFieldWidth() int {
	if f.BugCompat.Has(BugCompatDescriptorWidths) {
		return 7
	}
	return f.ItemPointerWidthBytes()
}

// ShapeVariableMarker 返回 SHAPE 字段中标记可变维度的字节取值
func (f Flavour) ShapeVariableMarker() byte {
	if f.BugCompat.Has(BugCompatShapeBit1) {
		return 2
	}
	return 1
}
