package objdb

import (
	"errors"
	"testing"

	"github.com/edgeo/bacnetstack/tlv"
)

func TestMemoryDatabaseSetGet(t *testing.T) {
	db := NewMemoryDatabase()
	oid := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	db.CreateObject(oid)

	val := []tlv.Value{{Tag: tlv.TagReal, Real: 72.5}}
	if err := db.Set(oid, 85, nil, val, nil); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get(oid, 85, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Real != 72.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryDatabaseObjectNotFound(t *testing.T) {
	db := NewMemoryDatabase()
	_, err := db.Get(tlv.ObjectIdentifier{Type: 0, Instance: 99}, 85, nil)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryDatabasePropertyNotFound(t *testing.T) {
	db := NewMemoryDatabase()
	oid := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	db.CreateObject(oid)
	_, err := db.Get(oid, 85, nil)
	if !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound, got %v", err)
	}
}

func TestMemoryDatabaseOnChangeNotifies(t *testing.T) {
	db := NewMemoryDatabase()
	oid := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	db.CreateObject(oid)

	var gotObj tlv.ObjectIdentifier
	var gotProp uint32
	db.OnChange(func(obj tlv.ObjectIdentifier, prop uint32, value []tlv.Value) {
		gotObj, gotProp = obj, prop
	})

	val := []tlv.Value{{Tag: tlv.TagReal, Real: 1.0}}
	if err := db.Set(oid, 85, nil, val, nil); err != nil {
		t.Fatal(err)
	}
	if gotObj != oid || gotProp != 85 {
		t.Fatalf("got obj=%+v prop=%d", gotObj, gotProp)
	}
}

func TestMemoryDatabaseObjectsAndList(t *testing.T) {
	db := NewMemoryDatabase()
	oid1 := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	oid2 := tlv.ObjectIdentifier{Type: 0, Instance: 2}
	db.CreateObject(oid1)
	db.CreateObject(oid2)
	db.Set(oid1, 85, nil, []tlv.Value{{Tag: tlv.TagReal, Real: 1.0}}, nil)

	objs := db.Objects()
	if len(objs) != 2 {
		t.Fatalf("got %d objects", len(objs))
	}
	props, err := db.List(oid1)
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 1 || props[0] != 85 {
		t.Fatalf("got %+v", props)
	}
}
