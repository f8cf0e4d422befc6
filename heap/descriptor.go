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
	"github.com/ska-sa/go-spead2/internal/bufbytes"
	"github.com/ska-sa/go-spead2/packet"
)

// Descriptor 描述一个 item 的名称/形状/格式/dtype
//
// 发送端可以用两种互不排斥的方式描述取值类型: SHAPE+FORMAT 子项 或者一份
// numpy 风格的 DTYPE 文本头部 二者都存在时以 DTYPE 为准 这与原始实现一致
type Descriptor struct {
	ID           uint64
	Name         string
	Description  string
	Shape        []int
	Format       []FormatField
	FortranOrder bool
	DType        *DType
}

// decodeCString 把 NAME/DESCRIPTION 的原始字节转换为字符串 部分发送端会在
// 字段末尾附带一个多余的 NUL 终止符 借用 bufbytes 统一裁剪掉它
func decodeCString(val []byte) string {
	b := bufbytes.New(len(val))
	b.Write(val)
	return b.TrimCStringText()
}

// BuildDescriptor 解析一个 DESCRIPTOR item 的子堆载荷
//
// 子堆的指针列表编码与数据包指针列表完全相同(见 packet.ParsePointerList) 只是
// 缺少 8 字节包头 每个子项的取值按 packet.ResolveValueSlices 的偏移区间规则解析
func BuildDescriptor(fl flavour.Flavour, raw []byte) (*Descriptor, error) {
	pointers, payload, err := packet.ParsePointerList(fl, raw)
	if err != nil {
		return nil, errors.Wrap(err, "heap: descriptor sub-heap")
	}
	slices := packet.ResolveValueSlices(pointers, payload, len(payload))

	d := &Descriptor{}
	var (
		shapeRaw, formatRaw []byte
		dtypeRaw            []byte
		haveDType           bool
	)

	for _, p := range pointers {
		var val []byte
		if !p.Immediate {
			val = slices[int(p.Value)]
		}
		switch p.ID {
		case packet.IDItemRef:
			if p.Immediate {
				d.ID = p.Value
			} else {
				d.ID = beUint(val)
			}
		case packet.IDName:
			d.Name = decodeCString(val)
		case packet.IDDescription:
			d.Description = decodeCString(val)
		case packet.IDShape:
			shapeRaw = val
		case packet.IDFormat:
			formatRaw = val
		case packet.IDDtype:
			dtypeRaw = val
			haveDType = true
		}
	}

	if len(shapeRaw) > 0 {
		shape, err := decodeShapeField(fl, shapeRaw)
		if err != nil {
			return nil, errors.Wrap(err, "heap: descriptor shape")
		}
		d.Shape = shape
	}
	if len(formatRaw) > 0 {
		format, err := decodeFormatField(fl, formatRaw)
		if err != nil {
			return nil, errors.Wrap(err, "heap: descriptor format")
		}
		d.Format = format
	}

	if haveDType {
		shape, fortranOrder, dtype, err := ParseNumpyHeader(string(dtypeRaw))
		if err != nil {
			return nil, err
		}
		if fl.BugCompat.Has(flavour.BugCompatSwapEndian) {
			dtype = dtype.Newbyteorder()
		}
		d.Shape = shape
		d.FortranOrder = fortranOrder
		d.DType = dtype
	} else if d.Format != nil {
		if dtype, ok := ParseFormat(d.Format); ok {
			d.DType = dtype
		}
		// 映射失败时 DType 保持 nil item.Decode 会把取值当作原始字节返回
	}

	return d, nil
}
