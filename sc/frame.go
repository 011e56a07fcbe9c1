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

// Package sc implements BACnet Secure Connect (Annex AB): the BVLC-SC
// frame codec, per-connection state machine, Hub Function, Hub
// Connector, and Node Switch roles, all running over WebSocket-over-TLS.
package sc

import (
	"encoding/binary"
	"errors"
)

// Function enumerates the 13 BVLC-SC function codes (Annex AB.2.4.1).
type Function uint8

const (
	FuncResult                   Function = 0x00
	FuncEncapsulatedNPDU          Function = 0x01
	FuncAddressResolution        Function = 0x02
	FuncAddressResolutionAck     Function = 0x03
	FuncAdvertisement            Function = 0x04
	FuncAdvertisementSolicitation Function = 0x05
	FuncConnectRequest           Function = 0x06
	FuncConnectAccept            Function = 0x07
	FuncDisconnectRequest        Function = 0x08
	FuncDisconnectAck            Function = 0x09
	FuncHeartbeatRequest         Function = 0x0A
	FuncHeartbeatAck             Function = 0x0B
	FuncProprietaryMessage       Function = 0x0C
)

// Control flag bits (Annex AB.2.4).
const (
	FlagDestVMACPresent        uint8 = 1 << 0
	FlagOriginVMACPresent      uint8 = 1 << 1
	FlagReserved               uint8 = 1 << 2
	FlagDataOptionPresent      uint8 = 1 << 3
	FlagDestinationOptionPresent uint8 = 1 << 4
	FlagMoreFollows            uint8 = 1 << 5
	FlagIsNak                  uint8 = 1 << 6
)

var (
	ErrTruncatedFrame   = errors.New("sc: truncated BVLC-SC frame")
	ErrTooManyOptions   = errors.New("sc: too many header options")
	ErrOptionTooLarge   = errors.New("sc: header option data too large")
)

// MaxHeaderOptions and MaxOptionData cap the per-message option list
// (Annex AB.2.4.3, spec §4.6 resource limits).
const (
	MaxHeaderOptions = 32
	MaxOptionData    = 512
	MaxResolutionURIs = 16
)

// VMAC is the 6-byte BACnet/SC virtual MAC address.
type VMAC [6]byte

// HeaderOption is one length-prefixed option in the header option list.
type HeaderOption struct {
	Type byte
	Data []byte
}

// Frame is a decoded BVLC-SC message.
type Frame struct {
	Function    Function
	Flags       uint8
	MessageID   uint16
	OriginVMAC  *VMAC
	DestVMAC    *VMAC
	Options     []HeaderOption
	Payload     []byte
}

// MoreFollows reports whether the more_follows flag is set.
func (f *Frame) MoreFollows() bool { return f.Flags&FlagMoreFollows != 0 }

// IsNak reports whether the is_nack flag is set.
func (f *Frame) IsNak() bool { return f.Flags&FlagIsNak != 0 }

// Encode serializes f into its wire form.
func Encode(f Frame) ([]byte, error) {
	if len(f.Options) > MaxHeaderOptions {
		return nil, ErrTooManyOptions
	}
	flags := f.Flags
	if f.OriginVMAC != nil {
		flags |= FlagOriginVMACPresent
	}
	if f.DestVMAC != nil {
		flags |= FlagDestVMACPresent
	}
	if len(f.Options) > 0 {
		flags |= FlagDataOptionPresent
	}

	buf := make([]byte, 4, 4+32)
	buf[0] = byte(f.Function)
	buf[1] = flags
	binary.BigEndian.PutUint16(buf[2:4], f.MessageID)

	if f.OriginVMAC != nil {
		buf = append(buf, f.OriginVMAC[:]...)
	}
	if f.DestVMAC != nil {
		buf = append(buf, f.DestVMAC[:]...)
	}
	if len(f.Options) > 0 {
		buf = append(buf, byte(len(f.Options)))
		for _, opt := range f.Options {
			if len(opt.Data) > MaxOptionData {
				return nil, ErrOptionTooLarge
			}
			var lenBuf [2]byte
			binary.BigEndian.PutUint16(lenBuf[:], uint16(len(opt.Data)))
			buf = append(buf, opt.Type)
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, opt.Data...)
		}
	}
	buf = append(buf, f.Payload...)
	return buf, nil
}

// Decode parses a raw BVLC-SC message.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, ErrTruncatedFrame
	}
	f := &Frame{
		Function:  Function(data[0]),
		Flags:     data[1],
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}
	pos := 4

	if f.Flags&FlagOriginVMACPresent != 0 {
		if len(data) < pos+6 {
			return nil, ErrTruncatedFrame
		}
		var v VMAC
		copy(v[:], data[pos:pos+6])
		f.OriginVMAC = &v
		pos += 6
	}
	if f.Flags&FlagDestVMACPresent != 0 {
		if len(data) < pos+6 {
			return nil, ErrTruncatedFrame
		}
		var v VMAC
		copy(v[:], data[pos:pos+6])
		f.DestVMAC = &v
		pos += 6
	}
	if f.Flags&FlagDataOptionPresent != 0 {
		if pos >= len(data) {
			return nil, ErrTruncatedFrame
		}
		count := int(data[pos])
		pos++
		if count > MaxHeaderOptions {
			return nil, ErrTooManyOptions
		}
		for i := 0; i < count; i++ {
			if len(data) < pos+3 {
				return nil, ErrTruncatedFrame
			}
			optType := data[pos]
			optLen := int(binary.BigEndian.Uint16(data[pos+1 : pos+3]))
			pos += 3
			if optLen > MaxOptionData {
				return nil, ErrOptionTooLarge
			}
			if len(data) < pos+optLen {
				return nil, ErrTruncatedFrame
			}
			optData := append([]byte(nil), data[pos:pos+optLen]...)
			pos += optLen
			f.Options = append(f.Options, HeaderOption{Type: optType, Data: optData})
		}
	}
	f.Payload = append([]byte(nil), data[pos:]...)
	return f, nil
}
