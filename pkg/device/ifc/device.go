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

package ifc

import (
	"context"
	"math/big"

	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

type Device interface {
	Set(ctx context.Context, ref regmap.Ref, value uint64) error
	Get(ctx context.Context, ref regmap.Ref) (uint64, error)
	SetBig(ctx context.Context, ref regmap.Ref, value *big.Int) error
	GetBig(ctx context.Context, ref regmap.Ref) (*big.Int, error)

	Read(ctx context.Context, ref regmap.Ref, length int) ([]uint64, error)
	ReadInto(ctx context.Context, ref regmap.Ref, buf []uint64) error
	Write(ctx context.Context, ref regmap.Ref, values []uint64) error
	ReadBig(ctx context.Context, ref regmap.Ref, length int) ([]*big.Int, error)
	WriteBig(ctx context.Context, ref regmap.Ref, values []*big.Int) error

	ReadAddr(ctx context.Context, terminal string, addr uint32, n int) ([]uint64, error)
	WriteAddr(ctx context.Context, terminal string, addr uint32, data []uint64) error

	Init(ctx context.Context) error
	Map() *regmap.Map
	Close() error
}
