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

// Package pcapreader 是 stream.Reader 的一个离线实现 从 pcap 文件中重放
// UDP 数据报 除了数据来源不同 它与 bufreader.BufferReader 完全一样 通过
// stream.Stream.AddPacket 喂入数据 不享有任何特殊待遇
package pcapreader

import (
	"io"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/internal/zerocopy"
)

// Reader 从一个 pcap 文件中顺序回放目的端口匹配的 UDP 载荷
//
// 只做离线文件重放 不做实时抓包 也不编译 BPF 过滤表达式 —— 目的端口过滤
// 直接在 Go 里完成
type Reader struct {
	id      string
	handle  *pcap.Handle
	src     *gopacket.PacketSource
	dstPort uint16
	all     bool
}

// New 打开一个 pcap 文件 dstPort==0 时不按目的端口过滤 只回放 UDP 载荷
func New(path string, dstPort uint16) (*Reader, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pcapreader: open %s", path)
	}

	return &Reader{
		id:      path,
		handle:  handle,
		src:     gopacket.NewPacketSource(handle, handle.LinkType()),
		dstPort: dstPort,
		all:     dstPort == 0,
	}, nil
}

// ID 实现 stream.Reader
func (r *Reader) ID() string {
	return r.id
}

// Next 实现 stream.Reader 扫描下一个匹配目的端口的 UDP 数据报载荷
//
// 每个载荷都被当成恰好一个完整的 SPEAD 数据包 这是 UDP 传输下的通常约定:
// 借助 zerocopy.Buffer 的 Write/Read/Close 生命周期 把它从 gopacket 的内部
// 缓冲区中"读出"一次 再交给调用方 不做任何额外拷贝
func (r *Reader) Next() ([]byte, error) {
	for {
		pkt, err := r.src.NextPacket()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrap(err, "pcapreader: decode packet")
		}

		udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if !r.all && uint16(udp.DstPort) != r.dstPort {
			continue
		}

		buf := zerocopy.NewBuffer(udp.Payload)
		defer buf.Close()
		payload, err := buf.Read(len(udp.Payload))
		if err != nil {
			continue
		}
		return payload, nil
	}
}

// Close 释放底层的 pcap 句柄
func (r *Reader) Close() {
	r.handle.Close()
}
