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
	"context"
	"net"
	"testing"
)

func TestPortOperationsFailWhenUnopened(t *testing.T) {
	p := NewPort("[::1]:0", VMAC{1, 2, 3})
	if err := p.Send(context.Background(), []byte{4, 5, 6}, nil); err == nil {
		t.Fatal("expected error sending on unopened port")
	}
	if err := p.Broadcast(context.Background(), nil); err == nil {
		t.Fatal("expected error broadcasting on unopened port")
	}
	if _, _, err := p.Receive(context.Background()); err == nil {
		t.Fatal("expected error receiving on unopened port")
	}
	if addr := p.LocalAddr(); addr != nil {
		t.Fatalf("expected nil local addr before Open, got %x", addr)
	}
}

func TestSendRejectsWrongVMACWidth(t *testing.T) {
	p := NewPort("[::1]:0", VMAC{1, 2, 3})
	if err := p.Open(context.Background()); err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	defer p.Close()
	if err := p.Send(context.Background(), []byte{1, 2}, nil); err == nil {
		t.Fatal("expected error for malformed destination VMAC")
	}
}

func TestVMACCacheLearnAndLookup(t *testing.T) {
	p := NewPort("[::1]:0", VMAC{1, 2, 3})
	target := VMAC{9, 9, 9}
	addr := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 47808}
	p.learn(target, addr)
	got, ok := p.lookup(target)
	if !ok || got.String() != addr.String() {
		t.Fatalf("got %v, %v", got, ok)
	}
	rev, ok := p.reverseLookup(addr)
	if !ok || rev != target {
		t.Fatalf("reverse lookup got %v, %v", rev, ok)
	}
}

func TestVMACCacheBounded(t *testing.T) {
	p := NewPort("[::1]:0", VMAC{1, 2, 3})
	for i := 0; i < maxVMACCacheEntries+10; i++ {
		vmac := VMAC{byte(i >> 16), byte(i >> 8), byte(i)}
		p.learn(vmac, &net.UDPAddr{IP: net.ParseIP("::1"), Port: 47808 + i})
	}
	if len(p.cache) > maxVMACCacheEntries {
		t.Fatalf("cache grew past bound: %d entries", len(p.cache))
	}
}
