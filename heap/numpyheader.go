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
	"encoding/binary"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// hostBigEndian 记录本机原生字节序 用于解释 numpy descr 字符串里的 '=' 前缀
var hostBigEndian = func() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 0x0001)
	return buf[0] == 0x00
}()

// ErrValue 对应 ValueError: descriptor 的文本内容语法正确但语义无效
//
// 没有第三方库能解析这种类 Python 字面量(单引号字典 元组 True/False) 这是
// numpy .npy 头部格式本身的写法 因此手写一个最小递归下降解析器 这是唯一
// 判定需要标准库独自实现的部分 其余解码都复用 pkg/errors 等既有依赖
var ErrValue = errors.New("heap: invalid descriptor value")

// npyLiteral 是一个极小的 Python 字面量解析器 仅支持 numpy 头部出现的子集:
// dict/list/tuple/string/bool/None/int
type npyLiteral struct {
	s   string
	pos int
}

func (p *npyLiteral) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *npyLiteral) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *npyLiteral) parseValue() (any, error) {
	p.skipSpace()
	switch p.peek() {
	case 0:
		return nil, errors.New("unexpected end of input")
	case '{':
		return p.parseDict()
	case '[':
		return p.parseSeq(']')
	case '(':
		return p.parseSeq(')')
	case '\'', '"':
		return p.parseString()
	default:
		return p.parseAtom()
	}
}

func (p *npyLiteral) parseDict() (map[string]any, error) {
	p.pos++
	m := map[string]any{}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}
		keyAny, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		key, ok := keyAny.(string)
		if !ok {
			return nil, errors.New("dict key is not a string")
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, errors.New("expected ':' in dict")
		}
		p.pos++
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		m[key] = val
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return m, nil
		default:
			return nil, errors.New("expected ',' or '}' in dict")
		}
	}
}

func (p *npyLiteral) parseSeq(end byte) ([]any, error) {
	p.pos++
	var items []any
	for {
		p.skipSpace()
		if p.peek() == end {
			p.pos++
			return items, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case end:
			p.pos++
			return items, nil
		default:
			return nil, errors.Errorf("expected ',' or '%c'", end)
		}
	}
}

func (p *npyLiteral) parseString() (string, error) {
	quote := p.peek()
	p.pos++
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.s) {
		return "", errors.New("unterminated string literal")
	}
	s := p.s[start:p.pos]
	p.pos++
	return s, nil
}

func (p *npyLiteral) parseAtom() (any, error) {
	start := p.pos
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ',', ')', ']', '}', ':', ' ', '\t', '\n', '\r':
			goto done
		}
		p.pos++
	}
done:
	tok := p.s[start:p.pos]
	switch tok {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n, nil
	}
	return nil, errors.Errorf("unrecognized token %q", tok)
}

func parseNumpyHeaderLiteral(header string) (map[string]any, error) {
	p := &npyLiteral{s: header}
	v, err := p.parseValue()
	if err != nil {
		return nil, errors.Wrap(ErrValue, err.Error())
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Wrap(ErrValue, "descriptor is not a dict")
	}
	return m, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseNumpyHeader 解析 DTYPE item 携带的 numpy 风格头部字面量
//
// 形如 "{'descr': '>f4', 'fortran_order': False, 'shape': (3, 2)}"
// 只接受恰好包含 descr/fortran_order/shape 三个键的字典 任何偏离都返回 ErrValue
func ParseNumpyHeader(header string) (shape []int, fortranOrder bool, dtype *DType, err error) {
	m, err := parseNumpyHeaderLiteral(header)
	if err != nil {
		return nil, false, nil, err
	}
	if len(m) != 3 {
		return nil, false, nil, errors.Wrapf(ErrValue, "unexpected keys %v", sortedKeys(m))
	}
	descrAny, ok1 := m["descr"]
	fortranAny, ok2 := m["fortran_order"]
	shapeAny, ok3 := m["shape"]
	if !ok1 || !ok2 || !ok3 {
		return nil, false, nil, errors.Wrap(ErrValue, "missing descr/fortran_order/shape")
	}

	shapeList, ok := shapeAny.([]any)
	if !ok {
		return nil, false, nil, errors.Wrapf(ErrValue, "shape is not a tuple: %v", shapeAny)
	}
	shape = make([]int, len(shapeList))
	for i, v := range shapeList {
		n, ok := v.(int64)
		if !ok || n < 0 {
			return nil, false, nil, errors.Wrapf(ErrValue, "shape element is not a non-negative int: %v", v)
		}
		shape[i] = int(n)
	}

	fortranOrder, ok = fortranAny.(bool)
	if !ok {
		return nil, false, nil, errors.Wrapf(ErrValue, "fortran_order is not a bool: %v", fortranAny)
	}

	dtype, err = parseDtypeDescr(descrAny)
	if err != nil {
		return nil, false, nil, errors.Wrap(ErrValue, err.Error())
	}
	return shape, fortranOrder, dtype, nil
}

func parseDtypeDescr(descrAny any) (*DType, error) {
	switch v := descrAny.(type) {
	case string:
		f, bigEndian, err := parseDtypeString(v)
		if err != nil {
			return nil, err
		}
		f.Name = "f0"
		return &DType{Fields: []Field{f}, BigEndian: bigEndian}, nil
	case []any:
		fields := make([]Field, 0, len(v))
		bigEndian := true
		for i, el := range v {
			pair, ok := el.([]any)
			if !ok || len(pair) < 2 {
				return nil, errors.New("structured descr entry is not a [name, type] pair")
			}
			name, ok := pair[0].(string)
			if !ok {
				return nil, errors.New("structured descr field name is not a string")
			}
			typeStr, ok := pair[1].(string)
			if !ok {
				return nil, errors.New("structured descr field type is not a string")
			}
			f, be, err := parseDtypeString(typeStr)
			if err != nil {
				return nil, err
			}
			f.Name = name
			if i == 0 {
				bigEndian = be
			}
			fields = append(fields, f)
		}
		return &DType{Fields: fields, BigEndian: bigEndian}, nil
	default:
		return nil, errors.Errorf("unsupported descr value: %v", descrAny)
	}
}

// parseDtypeString 解析单个 numpy dtype 字符串 如 ">f4" "<i4" "|u1" "S10" "|O"
func parseDtypeString(s string) (Field, bool, error) {
	if s == "" {
		return Field{}, true, errors.New("empty dtype string")
	}
	i := 0
	bigEndian := true
	switch s[0] {
	case '>':
		bigEndian = true
		i = 1
	case '<':
		bigEndian = false
		i = 1
	case '=':
		// native 字节序 按本机实际字节序解释 而不是当作大端
		bigEndian = hostBigEndian
		i = 1
	case '|':
		// 字节序不适用(单字节类型) 取值无关紧要 留作默认值
		i = 1
	}
	if i >= len(s) {
		return Field{}, true, errors.Errorf("invalid dtype string %q", s)
	}
	kind := s[i]
	rest := s[i+1:]

	switch kind {
	case 'O':
		return Field{Kind: 'O'}, bigEndian, nil
	case 'u', 'i', 'f', 'b':
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Field{}, true, errors.Errorf("invalid dtype string %q", s)
		}
		return Field{Kind: kind, Bits: n * 8}, bigEndian, nil
	case 'S':
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Field{}, true, errors.Errorf("invalid dtype string %q", s)
		}
		return Field{Kind: 'S', Bits: n * 8}, bigEndian, nil
	default:
		return Field{}, true, errors.Errorf("invalid dtype string %q", s)
	}
}
