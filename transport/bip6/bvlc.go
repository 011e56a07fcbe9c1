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

// Package bip6 implements BACnet/IPv6 (Annex U) over UDP/IPv6: BVLC
// framing addressed by a 3-byte virtual MAC (VMAC) rather than the
// 6-byte IPv4:port MAC bip4 uses, plus the address-resolution exchange
// Annex U substitutes for bip4's ARP-free IPv4 broadcast model.
package bip6

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BVLLType is the first octet of every BACnet/IPv6 BVLC frame (Annex
// U.1), distinct from bip4's 0x81 so a stray frame on the wrong socket
// is rejected rather than misparsed.
const BVLLType = 0x82

// Function is the BVLC function code (Annex U.2). BACnet/IPv6 defines
// thirteen function codes, the same framing role bip4's Function plays
// but with Virtual-Address-Resolution added for the VMAC-to-IPv6 lookup
// bip4 never needed (IPv4 BACnet addressing is the socket address
// itself).
type Function uint8

const (
	FuncResult                         Function = 0x00
	FuncOriginalUnicastNPDU            Function = 0x01
	FuncOriginalBroadcastNPDU          Function = 0x02
	FuncAddressResolution              Function = 0x03
	FuncForwardedAddressResolution     Function = 0x04
	FuncAddressResolutionAck           Function = 0x05
	FuncVirtualAddressResolution       Function = 0x06
	FuncVirtualAddressResolutionAck    Function = 0x07
	FuncForwardedNPDU                  Function = 0x08
	FuncRegisterForeignDevice          Function = 0x09
	FuncDeleteForeignDeviceTableEntry  Function = 0x0A
	FuncSecureBVLL                     Function = 0x0B
	FuncDistributeBroadcastToNetwork   Function = 0x0C
)

var ErrInvalidBVLC = errors.New("bip6: malformed BVLC frame")

// VMAC is the 3-byte BACnet/IPv6 virtual MAC address (Annex U.1) every
// device on a BACnet/IPv6 network is known by, independent of its
// underlying IPv6 socket address.
type VMAC [3]byte

func (v VMAC) String() string {
	return fmt.Sprintf("%02x%02x%02x", v[0], v[1], v[2])
}

// Frame is a decoded BVLC header plus its body.
type Frame struct {
	Function Function
	Body     []byte
}

// Encode serializes function/body into a complete BVLC frame, matching
// bip4.Encode's 4-byte header layout (type, function, 2-byte total
// length).
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

// EncodeAddressResolution builds the body of an Address-Resolution
// request: the VMAC a device wants the IPv6 socket address for.
func EncodeAddressResolution(target VMAC) []byte {
	return append([]byte(nil), target[:]...)
}

func DecodeAddressResolution(data []byte) (VMAC, error) {
	if len(data) != 3 {
		return VMAC{}, ErrInvalidBVLC
	}
	var v VMAC
	copy(v[:], data)
	return v, nil
}

// EncodeAddressResolutionAck builds the body of an Address-Resolution-Ack:
// the responding device's own VMAC (its IPv6 socket address is read
// directly from the UDP datagram's source, same as bip4 learns a peer's
// IPv4:port from ReadFromUDP rather than from the payload).
func EncodeAddressResolutionAck(self VMAC) []byte {
	return append([]byte(nil), self[:]...)
}

func DecodeAddressResolutionAck(data []byte) (VMAC, error) {
	if len(data) != 3 {
		return VMAC{}, ErrInvalidBVLC
	}
	var v VMAC
	copy(v[:], data)
	return v, nil
}

// EncodeVirtualAddressResolution/Ack carry the same 3-byte VMAC payload
// as Address-Resolution/Ack; Annex U keeps them as distinct function
// codes because Virtual-Address-Resolution is unicast (asking a known
// peer to confirm its own VMAC) where Address-Resolution is broadcast
// (asking the network at large who owns a VMAC).
func EncodeVirtualAddressResolution(self VMAC) []byte {
	return append([]byte(nil), self[:]...)
}

func DecodeVirtualAddressResolution(data []byte) (VMAC, error) {
	if len(data) != 3 {
		return VMAC{}, ErrInvalidBVLC
	}
	var v VMAC
	copy(v[:], data)
	return v, nil
}

func EncodeVirtualAddressResolutionAck(self VMAC) []byte {
	return append([]byte(nil), self[:]...)
}

func DecodeVirtualAddressResolutionAck(data []byte) (VMAC, error) {
	if len(data) != 3 {
		return VMAC{}, ErrInvalidBVLC
	}
	var v VMAC
	copy(v[:], data)
	return v, nil
}

// EncodeForwardedNPDU prefixes the originating VMAC ahead of the NPDU,
// mirroring bip4's Forwarded-NPDU (6-byte IPv4:port prefix) but with a
// 3-byte VMAC since that's BACnet/IPv6's addressing unit.
func EncodeForwardedNPDU(origin VMAC, npdu []byte) []byte {
	buf := make([]byte, 0, 3+len(npdu))
	buf = append(buf, origin[:]...)
	return append(buf, npdu...)
}

func DecodeForwardedNPDU(data []byte) (VMAC, []byte, error) {
	if len(data) < 3 {
		return VMAC{}, nil, ErrInvalidBVLC
	}
	var v VMAC
	copy(v[:], data[:3])
	return v, data[3:], nil
}

// EncodeRegisterForeignDevice mirrors bip4's two-byte TTL body.
func EncodeRegisterForeignDevice(ttlSeconds uint16) []byte {
	return []byte{byte(ttlSeconds >> 8), byte(ttlSeconds)}
}

func DecodeRegisterForeignDevice(data []byte) (uint16, error) {
	if len(data) != 2 {
		return 0, ErrInvalidBVLC
	}
	return binary.BigEndian.Uint16(data), nil
}

// ResultCode enumerates BVLC-Result codes (Annex U.2.1).
type ResultCode uint16

const (
	ResultSuccess                     ResultCode = 0x0000
	ResultAddressResolutionNAK        ResultCode = 0x0030
	ResultVirtualAddressResolutionNAK ResultCode = 0x0040
	ResultRegisterForeignDeviceNAK    ResultCode = 0x0050
	ResultDeleteForeignDeviceNAK      ResultCode = 0x0060
	ResultDistributeBroadcastNAK      ResultCode = 0x0070
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
