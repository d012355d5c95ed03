/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package engine

import (
	"math/big"
)

// Values wider than one beat travel least significant beat first:
// value = beat[0] | beat[1] << dataWidth | ...

func beatMask(dataWidth int) uint64 {
	if dataWidth >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(dataWidth) - 1
}

// FitsWidth reports whether v has no bits set at or above width
func FitsWidth(v uint64, width int) bool {
	return width >= 64 || v>>uint(width) == 0
}

// SplitUint64 splits v into stride beats
func SplitUint64(v uint64, stride, dataWidth int) []uint64 {
	beats := make([]uint64, stride)
	m := beatMask(dataWidth)
	for i := range beats {
		beats[i] = v & m
		if dataWidth >= 64 {
			v = 0
		} else {
			v >>= uint(dataWidth)
		}
	}
	return beats
}

// JoinUint64 assembles beats into a value. Bits above 64 are lost, callers
// check the register width first.
func JoinUint64(beats []uint64, dataWidth int) uint64 {
	var v uint64
	m := beatMask(dataWidth)
	for i := len(beats) - 1; i >= 0; i-- {
		if dataWidth < 64 {
			v <<= uint(dataWidth)
		}
		v |= beats[i] & m
	}
	return v
}

func SplitBig(v *big.Int, stride, dataWidth int) []uint64 {
	beats := make([]uint64, stride)
	rest := new(big.Int).Set(v)
	m := new(big.Int).SetUint64(beatMask(dataWidth))
	beat := new(big.Int)
	for i := range beats {
		beats[i] = beat.And(rest, m).Uint64()
		rest.Rsh(rest, uint(dataWidth))
	}
	return beats
}

func JoinBig(beats []uint64, dataWidth int) *big.Int {
	v := new(big.Int)
	m := beatMask(dataWidth)
	for i := len(beats) - 1; i >= 0; i-- {
		v.Lsh(v, uint(dataWidth))
		v.Or(v, new(big.Int).SetUint64(beats[i]&m))
	}
	return v
}
