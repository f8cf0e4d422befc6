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

package confengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ska-sa/go-spead2/flavour"
)

func TestReceiverConfig_Flavour_DefaultsTo48Bits(t *testing.T) {
	var rc ReceiverConfig
	fl, err := rc.Flavour()
	require.NoError(t, err)
	assert.Equal(t, 48, fl.HeapAddressBits)
	assert.Equal(t, flavour.BugCompat(0), fl.BugCompat)
}

func TestReceiverConfig_Flavour_BugCompatBitsCombine(t *testing.T) {
	rc := ReceiverConfig{HeapAddressBits: 40}
	rc.BugCompat.DescriptorWidths = true
	rc.BugCompat.SwapEndian = true

	fl, err := rc.Flavour()
	require.NoError(t, err)
	assert.Equal(t, 40, fl.HeapAddressBits)
	assert.True(t, fl.BugCompat.Has(flavour.BugCompatDescriptorWidths))
	assert.True(t, fl.BugCompat.Has(flavour.BugCompatSwapEndian))
	assert.False(t, fl.BugCompat.Has(flavour.BugCompatShapeBit1))
}

func TestReceiverConfig_Flavour_RejectsInvalidBits(t *testing.T) {
	rc := ReceiverConfig{HeapAddressBits: 64}
	_, err := rc.Flavour()
	assert.Error(t, err)
}

func TestLoadContent_ParsesReceiverSection(t *testing.T) {
	yaml := []byte(`
receiver:
  heapAddressBits: 40
  ringCapacity: 8
  maxHeaps: 2
  lossy: true
  sources:
    - a.pcap
    - b.pcap
  dstPort: 7148
`)
	cfg, err := LoadContent(yaml)
	require.NoError(t, err)

	var rc ReceiverConfig
	require.NoError(t, cfg.UnpackChild("receiver", &rc))
	assert.Equal(t, 40, rc.HeapAddressBits)
	assert.Equal(t, 8, rc.RingCapacity)
	assert.Equal(t, 2, rc.MaxHeaps)
	assert.True(t, rc.Lossy)
	assert.Equal(t, []string{"a.pcap", "b.pcap"}, rc.Sources)
	assert.Equal(t, uint16(7148), rc.DstPort)
}
