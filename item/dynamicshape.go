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

import "github.com/pkg/errors"

// dynamicShape 把声明的 shape 中至多一个 -1 维解析为具体大小
//
// 若某个已知维为 0 则未知维也取 0 若有一个以上的 -1 维则返回错误(调用方负责
// 包装为 item.ErrType)
func dynamicShape(shape []int, maxElements int) ([]int, error) {
	out := append([]int(nil), shape...)

	unknown := -1
	product := 1
	hasZero := false
	for i, s := range out {
		if s < 0 {
			if unknown != -1 {
				return nil, errors.New("shape has more than one unknown dimension")
			}
			unknown = i
			continue
		}
		if s == 0 {
			hasZero = true
		}
		product *= s
	}

	if unknown != -1 {
		switch {
		case hasZero || product == 0:
			out[unknown] = 0
		default:
			out[unknown] = maxElements / product
		}
	}
	return out, nil
}

func shapeProduct(shape []int) int {
	p := 1
	for _, s := range shape {
		p *= s
	}
	return p
}
