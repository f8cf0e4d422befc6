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

package server

import (
	"net/http"

	"github.com/ska-sa/go-spead2/internal/json"
	"github.com/ska-sa/go-spead2/internal/mapstructure"
)

// StreamStats 是 /stats 返回的单个 stream 的统计快照
type StreamStats struct {
	Name      string `mapstructure:"name" json:"name"`
	RingDepth int    `mapstructure:"ring_depth" json:"ring_depth"`
	LiveHeaps int    `mapstructure:"live_heaps" json:"live_heaps"`
	Closed    bool   `mapstructure:"closed" json:"closed"`
}

// StatsFunc 由 cmd 在创建 Stream 之后提供 返回当前每个 stream 的松散统计数据
//
// 用 map[string]any 而不是直接传 StreamStats 是故意的: 调用方(cmd)离
// stream 包更近 用一个通用 map 解耦 server 对 stream 包的依赖 落到
// StreamStats 这一步由 internal/mapstructure 完成
type StatsFunc func() []map[string]any

// RegisterStatsRoute 挂载 /stats 路由 每次请求都会调用 f 取得最新快照
func (s *Server) RegisterStatsRoute(f StatsFunc) {
	s.RegisterGetRoute("/stats", func(w http.ResponseWriter, r *http.Request) {
		raw := f()
		out := make([]StreamStats, 0, len(raw))
		for _, m := range raw {
			var st StreamStats
			if err := mapstructure.Decode(m, &st); err != nil {
				continue
			}
			out = append(out, st)
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	})
}
