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

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_GetInt(t *testing.T) {
	opts := NewOptions()
	opts.Merge("bits", "48")
	v, err := opts.GetInt("bits")
	require.NoError(t, err)
	assert.Equal(t, 48, v)
}

func TestOptions_GetBool(t *testing.T) {
	opts := NewOptions()
	opts.Merge("lossy", true)
	v, err := opts.GetBool("lossy")
	require.NoError(t, err)
	assert.True(t, v)
}

func TestOptions_GetStringSlice(t *testing.T) {
	opts := NewOptions()
	opts.Merge("sources", []string{"a.pcap", "b.pcap"})
	v, err := opts.GetStringSlice("sources")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pcap", "b.pcap"}, v)
}

func TestOptions_GetInt_MissingKeyErrors(t *testing.T) {
	opts := NewOptions()
	_, err := opts.GetInt("missing")
	assert.Error(t, err)
}

func TestConcurrency_Positive(t *testing.T) {
	assert.Greater(t, Concurrency(), 0)
}

func TestGetBuildInfo_ReturnsStruct(t *testing.T) {
	info := GetBuildInfo()
	assert.IsType(t, BuildInfo{}, info)
}
