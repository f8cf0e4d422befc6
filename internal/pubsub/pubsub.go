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

package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Queue PubSub 返回的订阅队列实例
type Queue interface {
	// ID 队列唯一标识
	ID() string

	// PopTimeout 从队列中弹出一个元素 操作会 block 直到有元素或者超时
	PopTimeout(timeout time.Duration) (any, bool)

	// TryPop 非阻塞地尝试弹出一个元素 队列为空时立即返回 ok=false
	TryPop() (any, bool)

	// Push 推送一个元素至队列中 队列已满时直接丢弃
	Push(data any)

	// PushWait 推送一个元素至队列中 队列已满时阻塞直到有空位或 ctx 被取消
	PushWait(ctx context.Context, data any) error

	// PushDropOldest 推送一个元素 队列已满时丢弃最旧的一个元素腾出空位
	// dropped 报告这次推送是否真的丢弃了一个旧元素
	PushDropOldest(data any) (dropped bool)

	// Len 队列当前积压的元素数
	Len() int

	// Close 关闭并清理队列
	Close()
}

// ErrClosed 队列已经处于关闭状态
var ErrClosed = errors.New("pubsub: queue closed")

// channel 为 Queue 的一种实现
type channel struct {
	id     string
	ch     chan any
	closed atomic.Bool
}

func newChannel(size int) Queue {
	if size <= 0 {
		size = 1
	}

	return &channel{
		id: uuid.New().String(),
		ch: make(chan any, size),
	}
}

func (ch *channel) ID() string {
	return ch.id
}

func (ch *channel) PopTimeout(timeout time.Duration) (any, bool) {
	if ch.closed.Load() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case data, ok := <-ch.ch:
		return data, ok

	case <-ctx.Done():
		return nil, false
	}
}

// TryPop 非阻塞地尝试弹出一个元素 没有元素或队列已关闭时立即返回 ok=false
func (ch *channel) TryPop() (any, bool) {
	if ch.closed.Load() {
		return nil, false
	}

	select {
	case data, ok := <-ch.ch:
		return data, ok
	default:
		return nil, false
	}
}

func (ch *channel) Push(data any) {
	if ch.closed.Load() {
		return
	}

	select {
	case ch.ch <- data:
	default:
	}
}

// PushWait 阻塞式推送 在队列已满时等待消费者腾出空位或 ctx 被取消
func (ch *channel) PushWait(ctx context.Context, data any) error {
	if ch.closed.Load() {
		return ErrClosed
	}

	select {
	case ch.ch <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PushDropOldest 队列已满时先丢弃队首的一个元素 再把新元素推入 用于 lossy 模式
func (ch *channel) PushDropOldest(data any) (dropped bool) {
	if ch.closed.Load() {
		return false
	}

	for {
		select {
		case ch.ch <- data:
			return dropped
		default:
		}

		select {
		case <-ch.ch:
			dropped = true
		default:
		}
	}
}

// Len 返回队列当前积压的元素数 仅用于观测
func (ch *channel) Len() int {
	return len(ch.ch)
}

func (ch *channel) Close() {
	if ch.closed.CompareAndSwap(false, true) {
		close(ch.ch)
	}
}

type PubSub struct {
	mut    sync.RWMutex
	queues map[string]Queue
}

func New() *PubSub {
	return &PubSub{
		queues: make(map[string]Queue),
	}
}

func (p *PubSub) Num() int {
	p.mut.RLock()
	defer p.mut.RUnlock()

	return len(p.queues)
}

func (p *PubSub) Subscribe(size int) Queue {
	p.mut.Lock()
	defer p.mut.Unlock()

	ch := newChannel(size)
	p.queues[ch.ID()] = ch
	return ch
}

func (p *PubSub) Publish(msg any) {
	p.mut.RLock()
	defer p.mut.RUnlock()

	for _, q := range p.queues {
		q.Push(msg)
	}
}

func (p *PubSub) Unsubscribe(q Queue) {
	p.mut.Lock()
	defer p.mut.Unlock()

	delete(p.queues, q.ID())
}
