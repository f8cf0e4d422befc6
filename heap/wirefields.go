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
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/flavour"
)

// beUint 把任意长度的大端字节串解释为 uint64 长度超过 8 字节时高位被丢弃
func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// decodeFormatField 解析 Descriptor FORMAT item 的原始字节
//
// 每个字段宽度为 flavour.DescriptorFormatFieldWidth(): 首字节是 code 其余字节
// 是大端编码的位宽
func decodeFormatField(fl flavour.Flavour, raw []byte) ([]FormatField, error) {
	width := fl.DescriptorFormatFieldWidth()
	if width <= 1 || len(raw)%width != 0 {
		return nil, errors.Errorf("heap: FORMAT field length %d not a multiple of width %d", len(raw), width)
	}
	n := len(raw) / width
	out := make([]FormatField, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*width : (i+1)*width]
		out[i] = FormatField{Code: chunk[0], Bits: int(beUint(chunk[1:]))}
	}
	return out, nil
}

// decodeShapeField 解析 Descriptor SHAPE item 的原始字节
//
// 每个字段宽度为 flavour.DescriptorShapeFieldWidth(): 首字节是标记位 (等于
// flavour.ShapeVariableMarker() 时代表该维是可变维 -1) 其余字节是大端编码的维度大小
func decodeShapeField(fl flavour.Flavour, raw []byte) ([]int, error) {
	width := fl.DescriptorShapeFieldWidth()
	if width <= 1 || len(raw)%width != 0 {
		return nil, errors.Errorf("heap: SHAPE field length %d not a multiple of width %d", len(raw), width)
	}
	n := len(raw) / width
	marker := fl.ShapeVariableMarker()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*width : (i+1)*width]
		if chunk[0] == marker {
			out[i] = -1
			continue
		}
		out[i] = int(beUint(chunk[1:]))
	}
	return out, nil
}
