package app

import (
	"testing"

	"github.com/edgeo/bacnetstack/apdu"
	"github.com/edgeo/bacnetstack/cov"
	"github.com/edgeo/bacnetstack/npdu"
	"github.com/edgeo/bacnetstack/objdb"
	"github.com/edgeo/bacnetstack/tlv"
)

type recordedSend struct {
	dest    string
	service string
	params  []byte
}

type fakeTransmitter struct {
	sent []recordedSend
}

func (f *fakeTransmitter) SendConfirmed(dest string, service apdu.ConfirmedServiceChoice, params []byte) error {
	f.sent = append(f.sent, recordedSend{dest: dest, service: "confirmed", params: params})
	return nil
}

func (f *fakeTransmitter) SendUnconfirmed(dest string, service apdu.UnconfirmedServiceChoice, params []byte) error {
	f.sent = append(f.sent, recordedSend{dest: dest, service: "unconfirmed", params: params})
	return nil
}

func TestApplicationCOVWiringDispatchesOnPropertyWrite(t *testing.T) {
	db := objdb.NewMemoryDatabase()
	a := NewApplication(DefaultConfig(), db, nil)
	tx := &fakeTransmitter{}
	a.SetTransmitter(tx)

	obj := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	db.CreateObject(obj)
	sub := cov.Subscription{Subscriber: cov.Subscriber{Address: "192.0.2.1:47808", ProcessID: 1}, Object: obj}
	if err := a.COV.Subscribe(sub, 0); err != nil {
		t.Fatal(err)
	}

	if err := db.Set(obj, 85, nil, []tlv.Value{{Tag: tlv.TagReal, Real: 72.5}}, nil); err != nil {
		t.Fatal(err)
	}
	if len(tx.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(tx.sent))
	}
}

func TestApplicationDeviceCache(t *testing.T) {
	db := objdb.NewMemoryDatabase()
	a := NewApplication(DefaultConfig(), db, nil)
	a.RecordIAm(npdu.Address{Net: 0, MAC: []byte{192, 0, 2, 1, 0xBA, 0xC0}}, apdu.IAmRequest{DeviceID: tlv.ObjectIdentifier{Type: 8, Instance: 1234}, MaxAPDULength: 1476})
	d, ok := a.Device(1234)
	if !ok || d.MaxAPDULength != 1476 {
		t.Fatalf("got %+v ok=%v", d, ok)
	}
}

func TestCapabilitiesReportsCoreServices(t *testing.T) {
	db := objdb.NewMemoryDatabase()
	a := NewApplication(DefaultConfig(), db, nil)
	caps := a.Capabilities()
	if !caps.Confirmed[apdu.ServiceReadProperty] || !caps.Unconfirmed[apdu.ServiceWhoIs] {
		t.Fatalf("expected core services marked supported")
	}
}
