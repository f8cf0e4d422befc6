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

// Package receiver 是驱动 stream.Reader 的调度器: 为每个注册的 Reader 启动
// 一个 worker goroutine 把它的数据包喂给所绑定的 Stream 直到耗尽
package receiver

import (
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/bufreader"
	"github.com/ska-sa/go-spead2/internal/rescue"
	"github.com/ska-sa/go-spead2/logger"
	"github.com/ska-sa/go-spead2/stream"
)

// ErrAlreadyStarted Start 不能在一个已经启动且未 Stop 的 Receiver 上重复调用
var ErrAlreadyStarted = errors.New("receiver: already started")

// binding 把一个 Reader 和它应该喂入的 Stream 绑在一起
type binding struct {
	st     *stream.Stream
	reader stream.Reader
}

// Receiver 拥有驱动所有已注册 Reader 的 worker goroutine
//
// 一个 Receiver 可以同时服务多个 Stream 各自的 worker 相互独立 一个 worker
// 发生 panic 只会终止它自己所驱动的那个 Reader 不影响其余 worker 也不会
// 让进程崩溃(通过 internal/rescue.HandleCrash 兜底)
type Receiver struct {
	mu       sync.Mutex
	bindings []binding
	started  bool
	wg       sync.WaitGroup
	errs     chan error
}

// New 创建一个空的 Receiver
func New() *Receiver {
	return &Receiver{}
}

// AddBufferReader 注册一个绑定给定 Stream 的内存缓冲区数据源
//
// 可以在 Start 之前多次调用 为同一个 Stream 注册多个 buffer reader
func (r *Receiver) AddBufferReader(st *stream.Stream, data []byte) {
	r.AddReader(st, bufreader.New(data))
}

// AddReader 注册一个任意实现了 stream.Reader 的数据源(例如 pcapreader)
func (r *Receiver) AddReader(st *stream.Stream, rd stream.Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, binding{st: st, reader: rd})
}

// Start 为每个已注册的 Reader 启动一个 worker 把数据包耗尽之后调用所属
// Stream 的 Flush 行为(通过 Close 实现) Start 不会自动重启已经耗尽的 Reader
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.errs = make(chan error, len(r.bindings))

	// 记录每个 Stream 还剩多少 reader 在跑 最后一个结束的 reader 负责 flush
	remaining := make(map[*stream.Stream]*int)
	for _, b := range r.bindings {
		if _, ok := remaining[b.st]; !ok {
			n := 0
			remaining[b.st] = &n
		}
		*remaining[b.st]++
	}

	var mu sync.Mutex
	for _, b := range r.bindings {
		r.wg.Add(1)
		go r.runWorker(b, remaining, &mu)
	}
	return nil
}

func (r *Receiver) runWorker(b binding, remaining map[*stream.Stream]*int, mu *sync.Mutex) {
	defer r.wg.Done()
	defer rescue.HandleCrash()
	defer closeIfCloser(b.reader)

	var workerErr error
	for {
		pkt, err := b.reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				workerErr = errors.Wrapf(err, "reader %s", b.reader.ID())
				logger.Warnf("receiver: reader %s stopped: %v", b.reader.ID(), err)
			}
			break
		}
		if err := b.st.AddPacket(pkt); err != nil {
			logger.Debugf("receiver: reader %s: %v", b.reader.ID(), err)
		}
	}
	if workerErr != nil {
		r.errs <- workerErr
	}

	mu.Lock()
	left := remaining[b.st]
	*left--
	done := *left == 0
	mu.Unlock()

	if done {
		b.st.Close()
	}
}

// closer 是部分 Reader 实现(例如 pcapreader.Reader)可选支持的资源释放接口
//
// stream.Reader 本身不要求 Close 因为像 bufreader.BufferReader 这样的内存
// 实现没有底层句柄需要释放
type closer interface {
	Close()
}

func closeIfCloser(rd stream.Reader) {
	if c, ok := rd.(closer); ok {
		c.Close()
	}
}

// Stop 等待所有 worker 结束 之后这个 Receiver 可以被重新 Start 用于一批新的 Reader
//
// 若多个 worker 在结束前各自报告了非 EOF 错误 它们会被聚合为一个 multierror 返回
func (r *Receiver) Stop() error {
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	close(r.errs)
	var result *multierror.Error
	for err := range r.errs {
		result = multierror.Append(result, err)
	}

	r.started = false
	r.bindings = nil
	return result.ErrorOrNil()
}
