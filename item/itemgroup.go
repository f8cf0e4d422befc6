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
	"github.com/ska-sa/go-spead2/heap"
	"github.com/ska-sa/go-spead2/logger"
)

// Item 是一个描述符加上从堆中解码出的当前取值
type Item struct {
	Descriptor *heap.Descriptor
	Value      any
}

// ItemGroup 是 item id 到 Item 的状态化映射 由单一消费者驱动
type ItemGroup struct {
	items map[uint64]*Item
}

// NewItemGroup 创建一个空的 ItemGroup
func NewItemGroup() *ItemGroup {
	return &ItemGroup{items: make(map[uint64]*Item)}
}

// Items 返回当前已知的全部 item 调用方不应修改返回的 map
func (g *ItemGroup) Items() map[uint64]*Item {
	return g.items
}

// Get 按 id 查找一个 item
func (g *ItemGroup) Get(id uint64) (*Item, bool) {
	it, ok := g.items[id]
	return it, ok
}

// Update 用一个新组装完成的堆刷新该组的状态
//
// 先安装/替换堆内全部描述符对应的 Item 再解码堆内全部原始值 —— 这样一个堆
// 同时引入并设置一个 item 的情况会被正确处理 未知 id 被跳过而不是报错 其余
// 解码错误(ValueError/TypeError)会同步返回给调用方
func (g *ItemGroup) Update(h *heap.Heap) error {
	descriptors, err := h.GetDescriptors()
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		g.items[d.ID] = &Item{Descriptor: d}
	}

	for _, raw := range h.GetItems() {
		it, ok := g.items[raw.ID]
		if !ok {
			logger.Debugf("item: skipping unknown item id 0x%x", raw.ID)
			continue
		}
		val, err := Decode(it.Descriptor, raw, h.Flavour.HeapAddressBits)
		if err != nil {
			return err
		}
		it.Value = val
	}
	return nil
}
