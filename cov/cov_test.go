package cov

import (
	"errors"
	"testing"
	"time"

	"github.com/edgeo/bacnetstack/tlv"
)

func TestSubscribeAndNotifyOnAnyChange(t *testing.T) {
	var notified int
	e := NewEngine(func(sub Subscription, values map[uint32][]tlv.Value, timeRemaining uint32) {
		notified++
	})
	obj := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	sub := Subscription{Subscriber: Subscriber{Address: "dev-1", ProcessID: 1}, Object: obj}
	if err := e.Subscribe(sub, 0); err != nil {
		t.Fatal(err)
	}
	e.OnPropertyChanged(obj, 85, []tlv.Value{{Tag: tlv.TagEnumerated, Uint: 1}})
	if notified != 1 {
		t.Fatalf("got %d notifications", notified)
	}
}

func TestNotifyOnlyAboveIncrement(t *testing.T) {
	var notified int
	e := NewEngine(func(sub Subscription, values map[uint32][]tlv.Value, timeRemaining uint32) {
		notified++
	})
	obj := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	inc := 1.0
	sub := Subscription{Subscriber: Subscriber{Address: "dev-1", ProcessID: 1}, Object: obj, PropertySpecific: true, Property: 85, Increment: &inc}
	if err := e.Subscribe(sub, 0); err != nil {
		t.Fatal(err)
	}
	e.OnPropertyChanged(obj, 85, []tlv.Value{{Tag: tlv.TagReal, Real: 70.0}})
	if notified != 1 {
		t.Fatalf("expected initial notification, got %d", notified)
	}
	e.OnPropertyChanged(obj, 85, []tlv.Value{{Tag: tlv.TagReal, Real: 70.5}})
	if notified != 1 {
		t.Fatalf("expected no notification under increment, got %d", notified)
	}
	e.OnPropertyChanged(obj, 85, []tlv.Value{{Tag: tlv.TagReal, Real: 72.0}})
	if notified != 2 {
		t.Fatalf("expected notification after exceeding increment, got %d", notified)
	}
}

func TestUnsubscribe(t *testing.T) {
	e := NewEngine(nil)
	obj := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	sub := Subscriber{Address: "dev-1", ProcessID: 1}
	if err := e.Subscribe(Subscription{Subscriber: sub, Object: obj}, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.Unsubscribe(sub, obj, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.Unsubscribe(sub, obj, 0); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}

func TestSubscriptionLimitEnforced(t *testing.T) {
	e := NewEngine(nil)
	for i := 0; i < MaxSubscriptions; i++ {
		obj := tlv.ObjectIdentifier{Type: 0, Instance: uint32(i)}
		if err := e.Subscribe(Subscription{Subscriber: Subscriber{Address: "dev-1", ProcessID: uint32(i)}, Object: obj}, 0); err != nil {
			t.Fatal(err)
		}
	}
	obj := tlv.ObjectIdentifier{Type: 0, Instance: 99999}
	err := e.Subscribe(Subscription{Subscriber: Subscriber{Address: "dev-1", ProcessID: 99999}, Object: obj}, 0)
	if !errors.Is(err, ErrTooManySubscriptions) {
		t.Fatalf("expected ErrTooManySubscriptions, got %v", err)
	}
}

func TestExpireStaleRemovesLapsedSubscriptions(t *testing.T) {
	e := NewEngine(nil)
	obj := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	sub := Subscription{Subscriber: Subscriber{Address: "dev-1", ProcessID: 1}, Object: obj}
	if err := e.Subscribe(sub, time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	e.ExpireStale()
	if e.Count() != 0 {
		t.Fatalf("expected subscription expired, got count %d", e.Count())
	}
}
