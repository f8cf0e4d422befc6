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

// Package common 持有与具体 SPEAD 组件无关的一些全局常量与小工具
package common

const (
	// App 应用程序名称 用作 metrics 命名空间与日志字段
	App = "spead2"

	// Version 应用程序版本
	Version = "v0.0.1"

	// DefaultRingCapacity Stream 默认的完成堆环形队列容量
	DefaultRingCapacity = 4
)
