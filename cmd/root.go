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

// Package cmd 是 go-spead2 的命令行入口 子命令之间只共享 rootCmd 和构建信息
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/ska-sa/go-spead2/common"
)

var rootCmd = &cobra.Command{
	Use:   "spead2",
	Short: "go-spead2 is a receive-side implementation of the SPEAD radio-astronomy wire protocol",
}

// Execute 是 main 包唯一需要调用的入口
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			info := common.GetBuildInfo()
			fmt.Printf("%s %s (%s, built %s)\n", common.App, info.Version, info.GitHash, info.Time)
		},
	})
}
