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

package bip6

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	body := []byte{0x01, 0x02, 0x03}
	frame, err := Decode(Encode(FuncOriginalUnicastNPDU, body))
	if err != nil {
		t.Fatal(err)
	}
	if frame.Function != FuncOriginalUnicastNPDU || !bytes.Equal(frame.Body, body) {
		t.Fatalf("got %+v", frame)
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	buf := Encode(FuncOriginalUnicastNPDU, []byte{0x01})
	_, err := Decode(buf[:len(buf)-1])
	if !errors.Is(err, ErrInvalidBVLC) {
		t.Fatalf("expected ErrInvalidBVLC, got %v", err)
	}
}

func TestDecodeRejectsWrongType(t *testing.T) {
	buf := Encode(FuncOriginalUnicastNPDU, nil)
	buf[0] = 0x81
	_, err := Decode(buf)
	if !errors.Is(err, ErrInvalidBVLC) {
		t.Fatalf("expected ErrInvalidBVLC, got %v", err)
	}
}

// TestVMACWidthRoundTrip exercises every frame type carrying a VMAC,
// confirming the 3-byte address width survives an encode/decode cycle
// exactly, the minimal interoperability property a BACnet/IPv6 stack's
// datalink must hold regardless of what the BVLC function wraps it in.
func TestVMACWidthRoundTrip(t *testing.T) {
	vmac := VMAC{0xAA, 0xBB, 0xCC}
	if len(vmac) != 3 {
		t.Fatalf("VMAC width changed: got %d bytes", len(vmac))
	}

	got, err := DecodeAddressResolution(EncodeAddressResolution(vmac))
	if err != nil || got != vmac {
		t.Fatalf("address-resolution round trip: got %v, %v", got, err)
	}
	got, err = DecodeAddressResolutionAck(EncodeAddressResolutionAck(vmac))
	if err != nil || got != vmac {
		t.Fatalf("address-resolution-ack round trip: got %v, %v", got, err)
	}
	got, err = DecodeVirtualAddressResolution(EncodeVirtualAddressResolution(vmac))
	if err != nil || got != vmac {
		t.Fatalf("virtual-address-resolution round trip: got %v, %v", got, err)
	}
	got, err = DecodeVirtualAddressResolutionAck(EncodeVirtualAddressResolutionAck(vmac))
	if err != nil || got != vmac {
		t.Fatalf("virtual-address-resolution-ack round trip: got %v, %v", got, err)
	}

	npdu := []byte{0x01, 0x20, 0xFF}
	origin, body, err := DecodeForwardedNPDU(EncodeForwardedNPDU(vmac, npdu))
	if err != nil || origin != vmac || !bytes.Equal(body, npdu) {
		t.Fatalf("forwarded-npdu round trip: got %v %v %v", origin, body, err)
	}
}

func TestRegisterForeignDeviceRoundTrip(t *testing.T) {
	got, err := DecodeRegisterForeignDevice(EncodeRegisterForeignDevice(300))
	if err != nil {
		t.Fatal(err)
	}
	if got != 300 {
		t.Fatalf("got %d", got)
	}
}

func TestResultRoundTrip(t *testing.T) {
	got, err := DecodeResult(EncodeResult(ResultRegisterForeignDeviceNAK))
	if err != nil {
		t.Fatal(err)
	}
	if got != ResultRegisterForeignDeviceNAK {
		t.Fatalf("got %v", got)
	}
}

func TestFunctionCodesAreThirteen(t *testing.T) {
	codes := []Function{
		FuncResult, FuncOriginalUnicastNPDU, FuncOriginalBroadcastNPDU,
		FuncAddressResolution, FuncForwardedAddressResolution, FuncAddressResolutionAck,
		FuncVirtualAddressResolution, FuncVirtualAddressResolutionAck, FuncForwardedNPDU,
		FuncRegisterForeignDevice, FuncDeleteForeignDeviceTableEntry, FuncSecureBVLL,
		FuncDistributeBroadcastToNetwork,
	}
	if len(codes) != 13 {
		t.Fatalf("expected 13 BVLL6 function codes, got %d", len(codes))
	}
	seen := make(map[Function]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate function code %#02x", c)
		}
		seen[c] = true
	}
}
