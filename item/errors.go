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
	"github.com/pkg/errors"

	"github.com/ska-sa/go-spead2/heap"
)

// ErrValue 对应 ValueError 直接复用 heap 包在解析描述符阶段报告的错误 这样
// errors.Is(err, item.ErrValue) 和 errors.Is(err, heap.ErrValue) 都能成立
var ErrValue = heap.ErrValue

// ErrType 对应 TypeError: dtype 含 object 字段 shape 含多个未知维 或 item
// 的字节数不足以填满声明的 shape
var ErrType = errors.New("item: type error")
