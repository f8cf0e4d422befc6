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

import "fmt"

// Field 是结构化 dtype 中的一个字段
//
// Kind 取值 'u'/'i'/'f'/'b' 为数值类型 'S' 为定长字节串(numpy 的 S/c) 'O' 为
// object 字段 —— object 字段永远无法被安全解码 item.Decode 会在看到它时拒绝
type Field struct {
	Name string
	Kind byte
	Bits int
}

// DType 描述一个(可能是结构化的) item 值类型
type DType struct {
	Fields    []Field
	BigEndian bool
}

// ItemSize 返回单个元素占用的字节数
func (d *DType) ItemSize() int {
	n := 0
	for _, f := range d.Fields {
		n += f.Bits / 8
	}
	return n
}

// HasObjectField 报告是否包含无法解码的 object 字段
func (d *DType) HasObjectField() bool {
	for _, f := range d.Fields {
		if f.Kind == 'O' {
			return true
		}
	}
	return false
}

// Newbyteorder 返回一个字节序取反的副本 用于原生化 decode
func (d *DType) Newbyteorder() *DType {
	nd := *d
	nd.Fields = append([]Field(nil), d.Fields...)
	nd.BigEndian = !d.BigEndian
	return &nd
}

func isFastWidth(bits int) bool {
	return bits == 8 || bits == 16 || bits == 32 || bits == 64
}

// FormatField 是 SPEAD FORMAT 字段解出的一个 (code, length-in-bits) 对
type FormatField struct {
	Code byte
	Bits int
}

// ParseFormat 把 SPEAD FORMAT 规格映射为 DType
//
// 只支持 spec 中列出的快速路径编码: u/i 的 8/16/32/64 位 f 的 32/64 位 b8 c8
// 任何其它组合(包括非字节对齐的位宽 如 u12)返回 ok=false 调用方应将 dtype
// 留空 —— item 的值退化为原始字节 不做数组视图 这与"映射失败时 dtype 置空"
// 的约定一致 不在此处实现逐 bit 的慢速解码
func ParseFormat(fields []FormatField) (*DType, bool) {
	out := make([]Field, 0, len(fields))
	for i, f := range fields {
		name := fmt.Sprintf("f%d", i)
		switch f.Code {
		case 'u', 'i':
			if !isFastWidth(f.Bits) {
				return nil, false
			}
			out = append(out, Field{Name: name, Kind: f.Code, Bits: f.Bits})
		case 'f':
			if f.Bits != 32 && f.Bits != 64 {
				return nil, false
			}
			out = append(out, Field{Name: name, Kind: 'f', Bits: f.Bits})
		case 'b':
			if f.Bits != 8 {
				return nil, false
			}
			out = append(out, Field{Name: name, Kind: 'b', Bits: 8})
		case 'c':
			if f.Bits != 8 {
				return nil, false
			}
			out = append(out, Field{Name: name, Kind: 'S', Bits: 8})
		default:
			return nil, false
		}
	}
	return &DType{Fields: out, BigEndian: true}, true
}
