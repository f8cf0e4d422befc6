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

// Package bufreader 实现 stream.Reader 最简单的落地: 一段连续内存中背靠背
// 排列的 SPEAD 数据包
package bufreader

import (
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/ska-sa/go-spead2/packet"
)

// BufferReader 从一段连续内存中按 SPEAD 包头自描述的长度逐个切出数据包
//
// 不拷贝输入: 每次 Next 返回的切片都是原始 span 的子切片 调用方(以及它喂给的
// Stream)不得修改这段内存
type BufferReader struct {
	id   string
	rest []byte
}

// New 创建一个绑定给定内存块的 BufferReader
//
// id 取内容的 xxhash 摘要 而不是一个随机值: 同一份字节重复提交时日志里能
// 看出这是"同一个" Reader 而不是巧合碰上的不同 Reader
func New(span []byte) *BufferReader {
	return &BufferReader{
		id:   strconv.FormatUint(xxhash.Sum64(span), 16),
		rest: span,
	}
}

// ID 实现 stream.Reader
func (r *BufferReader) ID() string {
	return r.id
}

// Next 实现 stream.Reader 切出下一个完整数据包
//
// 内部复用 packet.SplitNext 来确定包边界(依赖包内的 PAYLOAD_LENGTH) 返回的
// 切片和收窄后的剩余 span 都指向同一段底层数组 不发生分配
func (r *BufferReader) Next() ([]byte, error) {
	if len(r.rest) == 0 {
		return nil, io.EOF
	}

	pktBuf, rest, err := packet.SplitNext(r.rest)
	if err != nil {
		// 边界都无法确定 整段剩余数据都不可用 丢弃并结束
		r.rest = nil
		return nil, err
	}
	r.rest = rest
	return pktBuf, nil
}

// Remaining 返回尚未切出的剩余字节数 主要供测试和诊断使用
func (r *BufferReader) Remaining() int {
	return len(r.rest)
}
