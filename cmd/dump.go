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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ska-sa/go-spead2/common"
	"github.com/ska-sa/go-spead2/flavour"
	"github.com/ska-sa/go-spead2/internal/json"
	"github.com/ska-sa/go-spead2/item"
	"github.com/ska-sa/go-spead2/pcapreader"
	"github.com/ska-sa/go-spead2/stream"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <pcap-file>",
	Short: "Decode every heap in a pcap file once and print its items as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := common.NewOptions()
		opts.Merge("heapAddressBits", dumpHeapAddressBits)
		opts.Merge("dstPort", dumpDstPort)

		if err := runDump(args[0], opts); err != nil {
			fmt.Fprintf(os.Stderr, "dump: %v\n", err)
			os.Exit(1)
		}
	},
	Example: "# spead2 dump capture.pcap --dst-port 7148",
}

var (
	dumpHeapAddressBits int
	dumpDstPort         int
)

func init() {
	dumpCmd.Flags().IntVar(&dumpHeapAddressBits, "heap-address-bits", 48, "Heap address bits (40 or 48)")
	dumpCmd.Flags().IntVar(&dumpDstPort, "dst-port", 0, "Filter by UDP destination port, 0 to disable")
	rootCmd.AddCommand(dumpCmd)
}

// dumpRecord 是为每个完成堆打印的一行 JSON
type dumpRecord struct {
	HeapCnt uint64         `json:"heap_cnt"`
	Items   map[string]any `json:"items"`
}

// runDump 同步回放一个 pcap 文件 为其中每个完成的堆打印一行 JSON 到标准输出
//
// 与 receive 子命令不同 dump 不启动任何 goroutine: 读取 组装 解码 打印
// 都发生在调用 goroutine 里 直到 Reader 耗尽 适合一次性的离线检查
func runDump(path string, opts common.Options) error {
	bits, err := opts.GetInt("heapAddressBits")
	if err != nil {
		return err
	}
	dstPort, err := opts.GetInt("dstPort")
	if err != nil {
		return err
	}

	fl, err := flavour.New(bits, 0)
	if err != nil {
		return err
	}

	st := stream.New(stream.Config{Flavour: fl, Name: path})
	rd, err := pcapreader.New(path, uint16(dstPort))
	if err != nil {
		return err
	}
	defer rd.Close()

	group := item.NewItemGroup()
	enc := json.NewEncoder(os.Stdout)
	for {
		pkt, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := st.AddPacket(pkt); err != nil {
			continue
		}

		for {
			h, ok := st.TryNext()
			if !ok {
				break
			}
			if err := group.Update(h); err != nil {
				fmt.Fprintf(os.Stderr, "dump: heap %d: %v\n", h.HeapCnt, err)
				continue
			}
			if err := enc.Encode(renderRecord(h.HeapCnt, group)); err != nil {
				return err
			}
		}
	}

	st.Close()
	for {
		h, ok := st.TryNext()
		if !ok {
			break
		}
		if err := group.Update(h); err != nil {
			fmt.Fprintf(os.Stderr, "dump: heap %d: %v\n", h.HeapCnt, err)
			continue
		}
		if err := enc.Encode(renderRecord(h.HeapCnt, group)); err != nil {
			return err
		}
	}
	return nil
}

func renderRecord(heapCnt uint64, group *item.ItemGroup) dumpRecord {
	values := make(map[string]any, len(group.Items()))
	for _, it := range group.Items() {
		if it.Descriptor == nil || it.Value == nil {
			continue
		}
		values[it.Descriptor.Name] = it.Value
	}
	return dumpRecord{HeapCnt: heapCnt, Items: values}
}
