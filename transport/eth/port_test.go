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

package eth

import (
	"bytes"
	"net"
	"testing"

	"github.com/mdlayher/ethernet"
)

func TestFrameRoundTripCarriesNPDUPayload(t *testing.T) {
	src := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dst := net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	payload := []byte{0x01, 0x20, 0xFF, 0x10, 0x08}

	frame := &ethernet.Frame{
		Destination: dst,
		Source:      src,
		EtherType:   EtherType,
		Payload:     payload,
	}
	raw, err := frame.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var got ethernet.Frame
	if err := got.UnmarshalBinary(raw); err != nil {
		t.Fatal(err)
	}
	if got.EtherType != EtherType {
		t.Fatalf("got EtherType %v, want %v", got.EtherType, EtherType)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("got payload %x, want %x", got.Payload, payload)
	}
	if got.Source.String() != src.String() || got.Destination.String() != dst.String() {
		t.Fatalf("got src=%s dst=%s", got.Source, got.Destination)
	}
}

func TestPortSendRejectsShortMAC(t *testing.T) {
	p := NewPort("eth0")
	err := p.Send(nil, []byte{0x01, 0x02, 0x03}, []byte{0xAA})
	if err == nil {
		t.Fatal("expected error for malformed destination MAC")
	}
}

func TestPortOperationsFailWhenUnopened(t *testing.T) {
	p := NewPort("eth0")
	if err := p.Send(nil, net.HardwareAddr{0, 0, 0, 0, 0, 0}, nil); err == nil {
		t.Fatal("expected error sending on unopened port")
	}
	if err := p.Broadcast(nil, nil); err == nil {
		t.Fatal("expected error broadcasting on unopened port")
	}
	if _, _, err := p.Receive(nil); err == nil {
		t.Fatal("expected error receiving on unopened port")
	}
	if addr := p.LocalAddr(); addr != nil {
		t.Fatalf("expected nil local addr before Open, got %x", addr)
	}
}

func TestAddrString(t *testing.T) {
	a := &addr{HardwareAddr: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}}
	if a.Network() != "raw" {
		t.Fatalf("got network %q", a.Network())
	}
	if a.String() != "00:11:22:33:44:55" {
		t.Fatalf("got string %q", a.String())
	}
}
