package bip4

import (
	"net"
	"testing"
)

func TestBBMDRegisterForeignDevice(t *testing.T) {
	b := NewBBMD()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 47808}
	frame := &Frame{Function: FuncRegisterForeignDevice, Body: EncodeRegisterForeignDevice(300)}
	resp, respAddr := b.Handle(frame, addr)
	if respAddr != addr {
		t.Fatalf("expected reply to registrant")
	}
	result, err := Decode(resp)
	if err != nil {
		t.Fatal(err)
	}
	code, err := DecodeResult(result.Body)
	if err != nil {
		t.Fatal(err)
	}
	if code != ResultSuccess {
		t.Fatalf("got result %v", code)
	}
	fdt := b.FDT()
	if len(fdt) != 1 || fdt[0].TTLSeconds != 300 {
		t.Fatalf("got %+v", fdt)
	}
}

func TestBBMDRegisterForeignDeviceCapped(t *testing.T) {
	b := NewBBMD()
	for i := 0; i < MaxForeignDevices; i++ {
		addr := &net.UDPAddr{IP: net.IPv4(10, 0, byte(i>>8), byte(i)), Port: 47808}
		frame := &Frame{Function: FuncRegisterForeignDevice, Body: EncodeRegisterForeignDevice(300)}
		b.Handle(frame, addr)
	}
	addr := &net.UDPAddr{IP: net.IPv4(10, 1, 0, 0), Port: 47808}
	frame := &Frame{Function: FuncRegisterForeignDevice, Body: EncodeRegisterForeignDevice(300)}
	resp, _ := b.Handle(frame, addr)
	result, _ := Decode(resp)
	code, _ := DecodeResult(result.Body)
	if code != ResultRegisterForeignDeviceNAK {
		t.Fatalf("expected NAK once table is full, got %v", code)
	}
}

func TestBBMDWriteReadBDT(t *testing.T) {
	b := NewBBMD()
	entries := []BDTEntry{{IP: [4]byte{192, 168, 1, 1}, Port: 47808, Mask: [4]byte{255, 255, 255, 0}}}
	writeFrame := &Frame{Function: FuncWriteBDT, Body: EncodeBDT(entries)}
	b.Handle(writeFrame, &net.UDPAddr{})

	readFrame := &Frame{Function: FuncReadBDT}
	resp, _ := b.Handle(readFrame, &net.UDPAddr{})
	ack, err := Decode(resp)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Function != FuncReadBDTAck {
		t.Fatalf("got function %v", ack.Function)
	}
	got, err := DecodeBDT(ack.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != entries[0] {
		t.Fatalf("got %+v", got)
	}
}

func TestBBMDTargetsExcludesOrigin(t *testing.T) {
	b := NewBBMD()
	origin := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 1), Port: 47808}
	b.SetBDT([]BDTEntry{
		{IP: [4]byte{192, 168, 1, 1}, Port: 47808},
		{IP: [4]byte{192, 168, 1, 2}, Port: 47808},
	})
	targets := b.Targets(origin)
	if len(targets) != 1 || targets[0].IP.String() != "192.168.1.2" {
		t.Fatalf("got %+v", targets)
	}
}
