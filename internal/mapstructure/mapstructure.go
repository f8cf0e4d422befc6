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

// Package mapstructure 把 server 的 /stats 负载从松散的 map[string]any 整形
// 为一个固定字段的响应结构体 再交给 internal/json 编码
package mapstructure

import "github.com/mitchellh/mapstructure"

// Decode 把一个 map[string]any 解码到 out 指向的结构体 字段名按
// mapstructure 默认的大小写不敏感匹配规则
func Decode(in map[string]any, out any) error {
	return mapstructure.Decode(in, out)
}
