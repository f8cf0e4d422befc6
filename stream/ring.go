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

package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ska-sa/go-spead2/internal/pubsub"
)

// popPollInterval 是 Ring.Next 在阻塞等待时反复检查关闭状态的周期
const popPollInterval = 200 * time.Millisecond

// Ring 是完成堆的有界 FIFO 用于解耦生产者(Reader)与消费者
//
// 容量在创建时固定 非 lossy 模式下 Push 在队列已满时阻塞 lossy 模式下改为
// 丢弃队列中最旧的一个元素 腾出空位 两种模式共用 internal/pubsub 的单一订阅队列
type Ring struct {
	q      pubsub.Queue
	lossy  bool
	closed atomic.Bool
}

// NewRing 创建一个容量为 capacity 的 Ring capacity<=0 时容量为 1
func NewRing(capacity int, lossy bool) *Ring {
	ps := pubsub.New()
	return &Ring{
		q:     ps.Subscribe(capacity),
		lossy: lossy,
	}
}

// Push 推送一个已完成的堆 非 lossy 模式会阻塞直到有空位或 ctx 被取消
// Close 不会唤醒已经阻塞在满队列上的 Push
//
// dropped 仅在 lossy 模式下有意义: 报告这次推送是否因为队列已满而丢弃了一个
// 更旧的堆
func (r *Ring) Push(ctx context.Context, v any) (dropped bool) {
	if r.closed.Load() {
		return false
	}
	if r.lossy {
		return r.q.PushDropOldest(v)
	}
	_ = r.q.PushWait(ctx, v)
	return false
}

// Next 弹出下一个完成的堆 在 Ring 已关闭且排空之后返回 ok=false
func (r *Ring) Next(ctx context.Context) (any, bool) {
	for {
		v, ok := r.q.PopTimeout(popPollInterval)
		if ok {
			return v, true
		}
		if r.closed.Load() {
			// 关闭之后再做最后一次非阻塞尝试 防止并发 Close 与 Push 之间的竞争丢掉元素
			return r.q.PopTimeout(time.Millisecond)
		}
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
	}
}

// TryNext 非阻塞地尝试弹出下一个完成的堆 没有堆在等待时立即返回 ok=false
func (r *Ring) TryNext() (any, bool) {
	return r.q.TryPop()
}

// Close 标记 Ring 为关闭状态 Next 在排空剩余元素后返回 ok=false
func (r *Ring) Close() {
	r.closed.Store(true)
}

// Depth 返回队列当前积压的已完成堆数 仅用于观测
func (r *Ring) Depth() int {
	return r.q.Len()
}
