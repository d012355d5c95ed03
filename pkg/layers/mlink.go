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

	"jinr.ru/greenlab/go-hostif/pkg/log"
)

const (
	MLinkHostAddr   = 1
	MLinkDeviceAddr = 0xfefe
)

const (
	// MLinkLayerNum identifies the layer
	MLinkLayerNum = 1999
	// MLinkSync is a magic number that appears in the beginning of each MLink frame
	MLinkSync = 0x2A50
	// MLinkHeaderSize is the size of MLink header in bytes
	MLinkHeaderSize = 12
	// MLinkCrcSize is the size of the crc32 trailer in bytes
	MLinkCrcSize = 4
	// MLinkMaxFrameSize is the max size of MLink frame including MLink header and CRC
	MLinkMaxFrameSize = 1400
	// MLinkMaxPayloadSize is the max size of Mlink frame payload
	MLinkMaxPayloadSize = MLinkMaxFrameSize - MLinkHeaderSize - MLinkCrcSize
)

type MLinkType uint16

const (
	MLinkTypeTermRequest  MLinkType = 0x0103
	MLinkTypeTermResponse MLinkType = 0x0104
	// MLinkTypeTermReset carries no payload, the device drops pending transactions
	MLinkTypeTermReset MLinkType = 0x0105
)

var mlinkTypeNames = map[MLinkType]string{
	MLinkTypeTermRequest:  "TermRequest",
	MLinkTypeTermResponse: "TermResponse",
	MLinkTypeTermReset:    "TermReset",
}

// LayerType returns the layer type of the frame payload
func (t MLinkType) LayerType() gopacket.LayerType {
	switch t {
	case MLinkTypeTermRequest, MLinkTypeTermResponse:
		return TermLayerType
	}
	return gopacket.LayerTypePayload
}

func (t MLinkType) String() string {
	if name, ok := mlinkTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UnknownMLinkType(0x%04x)", uint16(t))
}

type MLinkHeader struct {
	Type MLinkType
	Sync uint16
	Seq  uint16
	Len  uint16 // length of MLink frame including header, payload and CRC in 4-byte words NOT in bytes
	Src  uint16
	Dst  uint16
}

type MLinkLayer struct {
	layers.BaseLayer
	MLinkHeader
	Crc uint32
}

var MLinkLayerType = gopacket.RegisterLayerType(MLinkLayerNum,
	gopacket.LayerTypeMetadata{Name: "MLinkLayerType", Decoder: gopacket.DecodeFunc(decodeMLinkLayer)})

func (ml *MLinkLayer) LayerType() gopacket.LayerType {
	return MLinkLayerType
}

// SerializeHeader serializes only MLink header (not tail) to a buffer.
// The CRC covers the header and the payload, so it is calculated by the
// caller from the serialized header before the frame is assembled.
func (ml *MLinkLayer) SerializeHeader(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(ml.Type))
	binary.LittleEndian.PutUint16(buf[2:4], ml.Sync)
	binary.LittleEndian.PutUint16(buf[4:6], ml.Seq)
	binary.LittleEndian.PutUint16(buf[6:8], ml.Len)
	binary.LittleEndian.PutUint16(buf[8:10], ml.Src)
	binary.LittleEndian.PutUint16(buf[10:12], ml.Dst)
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (ml *MLinkLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	headerBytes, err := b.PrependBytes(MLinkHeaderSize)
	if err != nil {
		return err
	}
	ml.SerializeHeader(headerBytes)

	tailBytes, err := b.AppendBytes(MLinkCrcSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(tailBytes[0:4], ml.Crc)
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as a MLink frame
func (ml *MLinkLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < MLinkHeaderSize+MLinkCrcSize {
		df.SetTruncated()
		return errors.New("MLink packet too short")
	}

	if binary.LittleEndian.Uint16(data[2:4]) != MLinkSync {
		return fmt.Errorf("Wrong MLink sync. Must be 0x%04x", MLinkSync)
	}

	tail := len(data) - MLinkCrcSize
	ml.BaseLayer = layers.BaseLayer{
		Contents: data[0:MLinkHeaderSize],
		Payload:  data[MLinkHeaderSize:tail],
	}

	ml.Type = MLinkType(binary.LittleEndian.Uint16(data[0:2]))
	ml.Sync = binary.LittleEndian.Uint16(data[2:4])
	ml.Seq = binary.LittleEndian.Uint16(data[4:6])
	ml.Len = binary.LittleEndian.Uint16(data[6:8])
	ml.Src = binary.LittleEndian.Uint16(data[8:10])
	ml.Dst = binary.LittleEndian.Uint16(data[10:12])
	ml.Crc = binary.LittleEndian.Uint32(data[tail:])

	if int(ml.Len)*4 != len(data) {
		return fmt.Errorf("MLink length mismatch: header says %d words, frame has %d bytes", ml.Len, len(data))
	}
	if crc := crc32.ChecksumIEEE(data[:tail]); crc != ml.Crc {
		return fmt.Errorf("MLink checksum mismatch: 0x%08x/0x%08x", ml.Crc, crc)
	}
	return nil
}

func (ml *MLinkLayer) NextLayerType() gopacket.LayerType {
	return ml.Type.LayerType()
}

func decodeMLinkLayer(data []byte, p gopacket.PacketBuilder) error {
	ml := &MLinkLayer{}
	err := ml.DecodeFromBytes(data, p)
	if err != nil {
		log.Debug("Error while decoding mlink layer: %s", err)
		return err
	}
	p.AddLayer(ml)
	return p.NextDecoder(ml.NextLayerType())
}
