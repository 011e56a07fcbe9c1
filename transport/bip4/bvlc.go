// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bip4 implements BACnet/IP (Annex J) over UDP/IPv4: BVLC framing,
// the directly-connected socket, and BBMD/foreign-device registration.
package bip4

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BVLLType is the first octet of every BVLC frame.
const BVLLType = 0x81

// Function is the BVLC function code (Annex J.2).
type Function uint8

const (
	FuncResult                      Function = 0x00
	FuncWriteBDT                    Function = 0x01
	FuncReadBDT                     Function = 0x02
	FuncReadBDTAck                  Function = 0x03
	FuncForwardedNPDU               Function = 0x04
	FuncRegisterForeignDevice       Function = 0x05
	FuncReadFDT                     Function = 0x06
	FuncReadFDTAck                  Function = 0x07
	FuncDeleteFDTEntry              Function = 0x08
	FuncDistributeBroadcastToNetwork Function = 0x09
	FuncOriginalUnicastNPDU         Function = 0x0A
	FuncOriginalBroadcastNPDU       Function = 0x0B
	FuncSecureBVLL                  Function = 0x0C
)

var (
	ErrInvalidBVLC = errors.New("bip4: malformed BVLC frame")
)

// Frame is a decoded BVLC header plus its body.
type Frame struct {
	Function Function
	Body     []byte
}

// Encode serializes function/body into a complete BVLC frame.
func Encode(function Function, body []byte) []byte {
	total := 4 + len(body)
	buf := make([]byte, 4, total)
	buf[0] = BVLLType
	buf[1] = byte(function)
	binary.BigEndian.PutUint16(buf[2:4], uint16(total))
	return append(buf, body...)
}

// Decode parses a BVLC frame, validating the declared length against the
// actual buffer size.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, ErrInvalidBVLC
	}
	if data[0] != BVLLType {
		return nil, fmt.Errorf("%w: unexpected BVLC type %#02x", ErrInvalidBVLC, data[0])
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if int(length) != len(data) {
		return nil, fmt.Errorf("%w: declared length %d, got %d bytes", ErrInvalidBVLC, length, len(data))
	}
	return &Frame{Function: Function(data[1]), Body: data[4:]}, nil
}

// BDTEntry is one Broadcast Distribution Table entry (Annex J.4): the
// member's IPv4:port address and its broadcast distribution mask.
type BDTEntry struct {
	IP   [4]byte
	Port uint16
	Mask [4]byte
}

func EncodeBDT(entries []BDTEntry) []byte {
	buf := make([]byte, 0, 10*len(entries))
	for _, e := range entries {
		buf = append(buf, e.IP[:]...)
		buf = append(buf, byte(e.Port>>8), byte(e.Port))
		buf = append(buf, e.Mask[:]...)
	}
	return buf
}

func DecodeBDT(data []byte) ([]BDTEntry, error) {
	if len(data)%10 != 0 {
		return nil, ErrInvalidBVLC
	}
	n := len(data) / 10
	out := make([]BDTEntry, n)
	for i := 0; i < n; i++ {
		off := i * 10
		copy(out[i].IP[:], data[off:off+4])
		out[i].Port = binary.BigEndian.Uint16(data[off+4 : off+6])
		copy(out[i].Mask[:], data[off+6:off+10])
	}
	return out, nil
}

// FDTEntry is one Foreign Device Table entry (Annex J.5.2): the device's
// IPv4:port, its registered time-to-live, and seconds remaining.
type FDTEntry struct {
	IP            [4]byte
	Port          uint16
	TTLSeconds    uint16
	RemainingSeconds uint16
}

func EncodeFDT(entries []FDTEntry) []byte {
	buf := make([]byte, 0, 10*len(entries))
	for _, e := range entries {
		buf = append(buf, e.IP[:]...)
		buf = append(buf, byte(e.Port>>8), byte(e.Port))
		buf = append(buf, byte(e.TTLSeconds>>8), byte(e.TTLSeconds))
		buf = append(buf, byte(e.RemainingSeconds>>8), byte(e.RemainingSeconds))
	}
	return buf
}

// EncodeRegisterForeignDevice encodes the TTL body of a
// Register-Foreign-Device request.
func EncodeRegisterForeignDevice(ttlSeconds uint16) []byte {
	return []byte{byte(ttlSeconds >> 8), byte(ttlSeconds)}
}

func DecodeRegisterForeignDevice(data []byte) (uint16, error) {
	if len(data) != 2 {
		return 0, ErrInvalidBVLC
	}
	return binary.BigEndian.Uint16(data), nil
}

// ResultCode enumerates BVLC-Result codes (Annex J.2.1).
type ResultCode uint16

const (
	ResultSuccess                      ResultCode = 0x0000
	ResultWriteBDTNAK                  ResultCode = 0x0010
	ResultReadBDTNAK                   ResultCode = 0x0020
	ResultRegisterForeignDeviceNAK     ResultCode = 0x0030
	ResultReadFDTNAK                   ResultCode = 0x0040
	ResultDeleteFDTEntryNAK            ResultCode = 0x0050
	ResultDistributeBroadcastToNetworkNAK ResultCode = 0x0060
)

func EncodeResult(code ResultCode) []byte {
	return []byte{byte(code >> 8), byte(code)}
}

func DecodeResult(data []byte) (ResultCode, error) {
	if len(data) != 2 {
		return 0, ErrInvalidBVLC
	}
	return ResultCode(binary.BigEndian.Uint16(data)), nil
}
