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

package layers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// TermLayerNum identifies the layer
	TermLayerNum = 1995
	// TermHeaderSize is op word + terminal/status word + address word
	TermHeaderSize = 12
	// TermBeatSize is the encoded size of one beat, beats are up to 64 bits wide
	TermBeatSize = 8
	// TermMaxBeats is the number of beats that fit into a single MLink frame
	TermMaxBeats = (MLinkMaxPayloadSize - TermHeaderSize) / TermBeatSize
)

// Response status words
const (
	TermStatusOK      = 0
	TermStatusFailed  = 1
	TermStatusDropped = 2
)

const (
	termReadBit   = 0x80000000
	termCountMask = 0x0000ffff
)

// TermOp is a terminal transaction as it travels on the wire.
// Requests carry Data only for writes, responses carry Data only for reads.
type TermOp struct {
	Read     bool
	Terminal uint16
	Addr     uint32
	Count    uint16
	// Status is zero in requests and in successful responses
	Status uint16
	Data   []uint64
}

// Size is the number of bytes the serialized op takes
func (op *TermOp) Size() int {
	return TermHeaderSize + TermBeatSize*len(op.Data)
}

type TermLayer struct {
	layers.BaseLayer
	*TermOp
}

var TermLayerType = gopacket.RegisterLayerType(TermLayerNum,
	gopacket.LayerTypeMetadata{Name: "TermLayerType", Decoder: gopacket.DecodeFunc(DecodeTermLayer)})

// LayerType returns the type of the Term layer in the layer catalog
func (term *TermLayer) LayerType() gopacket.LayerType {
	return TermLayerType
}

// Serialize serializes the op to a buffer of at least Size bytes.
// Like for the other MLink payloads the CRC has to be calculated over
// these bytes before the MLink layer is serialized.
func (term *TermLayer) Serialize(buf []byte) {
	word := uint32(term.Count) & termCountMask
	if term.Read {
		word |= termReadBit
	}
	binary.LittleEndian.PutUint32(buf[0:4], word)
	binary.LittleEndian.PutUint16(buf[4:6], term.Terminal)
	binary.LittleEndian.PutUint16(buf[6:8], term.Status)
	binary.LittleEndian.PutUint32(buf[8:12], term.Addr)
	for i, beat := range term.Data {
		offset := TermHeaderSize + i*TermBeatSize
		binary.LittleEndian.PutUint64(buf[offset:offset+TermBeatSize], beat)
	}
}

// SerializeTo serializes the terminal op into bytes and writes the bytes to the SerializeBuffer
func (term *TermLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.AppendBytes(term.Size())
	if err != nil {
		return err
	}
	term.Serialize(bytes)
	return nil
}

func (term *TermLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < TermHeaderSize {
		df.SetTruncated()
		return errors.New("Term packet too short")
	}
	term.BaseLayer = layers.BaseLayer{
		Contents: data[:],
		Payload:  []byte{},
	}
	op := &TermOp{}
	word := binary.LittleEndian.Uint32(data[0:4])
	op.Read = word&termReadBit != 0
	op.Count = uint16(word & termCountMask)
	op.Terminal = binary.LittleEndian.Uint16(data[4:6])
	op.Status = binary.LittleEndian.Uint16(data[6:8])
	op.Addr = binary.LittleEndian.Uint32(data[8:12])

	body := data[TermHeaderSize:]
	if len(body) != 0 && len(body) != int(op.Count)*TermBeatSize {
		return fmt.Errorf("Term payload has %d bytes, expected 0 or %d", len(body), int(op.Count)*TermBeatSize)
	}
	for offset := 0; offset < len(body); offset += TermBeatSize {
		op.Data = append(op.Data, binary.LittleEndian.Uint64(body[offset:offset+TermBeatSize]))
	}
	term.TermOp = op
	return nil
}

func DecodeTermLayer(data []byte, p gopacket.PacketBuilder) error {
	term := &TermLayer{}
	err := term.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(term)
	return nil
}

// TermOpToBytes builds a complete MLink frame carrying the op
func TermOpToBytes(op *TermOp, mlType MLinkType, seq uint16) ([]byte, error) {
	if len(op.Data) > TermMaxBeats {
		return nil, fmt.Errorf("Term op carries %d beats, max %d per frame", len(op.Data), TermMaxBeats)
	}
	ml := &MLinkLayer{}
	ml.Type = mlType
	ml.Sync = MLinkSync
	ml.Len = uint16((MLinkHeaderSize + op.Size() + MLinkCrcSize) / 4)
	ml.Seq = seq
	if mlType == MLinkTypeTermRequest {
		ml.Src = MLinkHostAddr
		ml.Dst = MLinkDeviceAddr
	} else {
		ml.Src = MLinkDeviceAddr
		ml.Dst = MLinkHostAddr
	}

	// Calculate crc32 checksum
	mlHeaderBytes := make([]byte, MLinkHeaderSize)
	ml.SerializeHeader(mlHeaderBytes)

	term := &TermLayer{TermOp: op}
	termBytes := make([]byte, op.Size())
	term.Serialize(termBytes)

	ml.Crc = crc32.ChecksumIEEE(append(mlHeaderBytes, termBytes...))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}
	if err := gopacket.SerializeLayers(buf, opts, ml, term); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResetToBytes builds a payload-less reset frame
func ResetToBytes(seq uint16) ([]byte, error) {
	ml := &MLinkLayer{}
	ml.Type = MLinkTypeTermReset
	ml.Sync = MLinkSync
	ml.Len = uint16((MLinkHeaderSize + MLinkCrcSize) / 4)
	ml.Seq = seq
	ml.Src = MLinkHostAddr
	ml.Dst = MLinkDeviceAddr

	mlHeaderBytes := make([]byte, MLinkHeaderSize)
	ml.SerializeHeader(mlHeaderBytes)
	ml.Crc = crc32.ChecksumIEEE(mlHeaderBytes)

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, ml); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFrame decodes an MLink frame. The op is nil for frames that do not
// carry a terminal transaction.
func DecodeFrame(data []byte) (*MLinkLayer, *TermOp, error) {
	packet := gopacket.NewPacket(data, MLinkLayerType, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, nil, errLayer.Error()
	}
	mlLayer := packet.Layer(MLinkLayerType)
	if mlLayer == nil {
		return nil, nil, errors.New("Not an MLink frame")
	}
	ml := mlLayer.(*MLinkLayer)
	if termLayer := packet.Layer(TermLayerType); termLayer != nil {
		return ml, termLayer.(*TermLayer).TermOp, nil
	}
	return ml, nil, nil
}

// DecodeTermFrame decodes an MLink frame carrying a terminal op
func DecodeTermFrame(data []byte) (*MLinkLayer, *TermOp, error) {
	ml, op, err := DecodeFrame(data)
	if err != nil {
		return nil, nil, err
	}
	if op == nil {
		return nil, nil, fmt.Errorf("Not a terminal frame: %s", ml.Type)
	}
	return ml, op, nil
}
