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

package confengine

import (
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/flavour"
)

// ReceiverConfig 描述 cmd receive 子命令启动一个 Receiver 所需的全部参数
type ReceiverConfig struct {
	// HeapAddressBits 40 或 48 默认 48
	HeapAddressBits int `config:"heapAddressBits"`

	// BugCompat 按位或组合: descriptorWidths/shapeBit1/swapEndian
	BugCompat struct {
		DescriptorWidths bool `config:"descriptorWidths"`
		ShapeBit1        bool `config:"shapeBit1"`
		SwapEndian       bool `config:"swapEndian"`
	} `config:"bugCompat"`

	// RingCapacity 完成堆环形队列容量 默认 common.DefaultRingCapacity
	RingCapacity int `config:"ringCapacity"`

	// MaxHeaps 同时在途的堆上限 默认 heap.DefaultMaxHeaps
	MaxHeaps int `config:"maxHeaps"`

	// Lossy 环形队列已满时丢弃最旧堆而不是阻塞
	Lossy bool `config:"lossy"`

	// Sources 要回放的 pcap 文件路径列表
	Sources []string `config:"sources"`

	// DstPort 从 Sources 中回放时按 UDP 目的端口过滤 0 表示不过滤
	DstPort uint16 `config:"dstPort"`
}

// Flavour 把解析出的位宽/兼容标志转换为 flavour.Flavour
func (c ReceiverConfig) Flavour() (flavour.Flavour, error) {
	bits := c.HeapAddressBits
	if bits == 0 {
		bits = 48
	}

	var bc flavour.BugCompat
	if c.BugCompat.DescriptorWidths {
		bc |= flavour.BugCompatDescriptorWidths
	}
	if c.BugCompat.ShapeBit1 {
		bc |= flavour.BugCompatShapeBit1
	}
	if c.BugCompat.SwapEndian {
		bc |= flavour.BugCompatSwapEndian
	}

	fl, err := flavour.New(bits, bc)
	if err != nil {
		return flavour.Flavour{}, errors.Wrap(err, "confengine: receiver")
	}
	return fl, nil
}
