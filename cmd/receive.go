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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ska-sa/go-spead2/confengine"
	"github.com/ska-sa/go-spead2/internal/sigs"
	"github.com/ska-sa/go-spead2/item"
	"github.com/ska-sa/go-spead2/logger"
	"github.com/ska-sa/go-spead2/pcapreader"
	"github.com/ska-sa/go-spead2/receiver"
	"github.com/ska-sa/go-spead2/server"
	"github.com/ska-sa/go-spead2/stream"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Assemble SPEAD heaps from one or more pcap sources and log their items",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(receiveConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		if err := runReceive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "receive: %v\n", err)
			os.Exit(1)
		}
	},
	Example: "# spead2 receive --config spead2.yaml",
}

var receiveConfigPath string

func init() {
	receiveCmd.Flags().StringVar(&receiveConfigPath, "config", "spead2.yaml", "Configuration file path")
	rootCmd.AddCommand(receiveCmd)
}

// runReceive 把一份 receiver 配置接入真正的 stream/receiver/server 装配
//
// 每个配置的 source 都是一个 pcap 文件 全部绑定到同一个 Stream 上共享装配状态
// 这与一个 SPEAD 流可能由多个 UDP 源组成的情况(例如冗余网络路径)相符
func runReceive(cfg *confengine.Config) error {
	var rc confengine.ReceiverConfig
	if err := cfg.UnpackChild("receiver", &rc); err != nil {
		return err
	}

	fl, err := rc.Flavour()
	if err != nil {
		return err
	}

	st := stream.New(stream.Config{
		Flavour:      fl,
		RingCapacity: rc.RingCapacity,
		MaxHeaps:     rc.MaxHeaps,
		Lossy:        rc.Lossy,
		Name:         "receive",
	})

	recv, err := buildReceiver(st, rc)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	if srv != nil {
		srv.RegisterStatsRoute(func() []map[string]any {
			return []map[string]any{st.Stats()}
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Warnf("server stopped: %v", err)
			}
		}()
	}

	if err := recv.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go drainHeaps(ctx, st)

	for {
		select {
		case <-sigs.Terminate():
			st.Close()
			if err := recv.Stop(); err != nil {
				logger.Errorf("receiver stopped with errors: %v", err)
			}
			return nil

		case <-sigs.Reload():
			logger.Infof("receive: reload is a no-op for an in-flight stream, restart to pick up new sources")
		}
	}
}

// drainHeaps 持续消费完成的堆并用一个 ItemGroup 维护其解码后的取值 直到
// Stream 关闭且排空
//
// 一个 ItemGroup 贯穿整个 Stream 的生命周期: 描述符在某个堆里出现一次之后
// 后续堆通常只携带取值 复用同一个 ItemGroup 才能正确解码它们
func drainHeaps(ctx context.Context, st *stream.Stream) {
	group := item.NewItemGroup()
	for {
		h, ok := st.Next(ctx)
		if !ok {
			return
		}

		if err := group.Update(h); err != nil {
			logger.Warnf("receive: heap %d: %v", h.HeapCnt, err)
			continue
		}
		logger.Infof("receive: heap %d complete, %d items known", h.HeapCnt, len(group.Items()))
	}
}

// buildReceiver 为配置的每个 pcap source 注册一个 pcapreader 绑定到 st
func buildReceiver(st *stream.Stream, rc confengine.ReceiverConfig) (*receiver.Receiver, error) {
	recv := receiver.New()
	for _, src := range rc.Sources {
		rd, err := pcapreader.New(src, rc.DstPort)
		if err != nil {
			return nil, err
		}
		recv.AddReader(st, rd)
	}
	return recv, nil
}
