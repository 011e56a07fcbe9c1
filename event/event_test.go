package event

import (
	"testing"
	"time"

	"github.com/edgeo/bacnetstack/tlv"
)

func TestOutOfRangeTransitionsAndClears(t *testing.T) {
	a := OutOfRange{Params: OutOfRangeParams{HighLimit: 80, LowLimit: 20, Deadband: 2}}
	if got := a.Evaluate(StateNormal, tlv.Value{Tag: tlv.TagReal, Real: 50}); got != StateNormal {
		t.Fatalf("got %v", got)
	}
	if got := a.Evaluate(StateNormal, tlv.Value{Tag: tlv.TagReal, Real: 90}); got != StateHighLimit {
		t.Fatalf("got %v", got)
	}
	if got := a.Evaluate(StateHighLimit, tlv.Value{Tag: tlv.TagReal, Real: 79}); got != StateHighLimit {
		t.Fatalf("expected to stay in high limit within deadband, got %v", got)
	}
	if got := a.Evaluate(StateHighLimit, tlv.Value{Tag: tlv.TagReal, Real: 77}); got != StateNormal {
		t.Fatalf("expected clear below deadband, got %v", got)
	}
}

func TestChangeOfStateMatchesAlarmValues(t *testing.T) {
	a := ChangeOfState{Params: ChangeOfStateParams{AlarmValues: []uint64{2, 3}}}
	if got := a.Evaluate(StateNormal, tlv.Value{Tag: tlv.TagEnumerated, Uint: 1}); got != StateNormal {
		t.Fatalf("got %v", got)
	}
	if got := a.Evaluate(StateNormal, tlv.Value{Tag: tlv.TagEnumerated, Uint: 2}); got != StateOffnormal {
		t.Fatalf("got %v", got)
	}
}

func TestCommandFailureDetectsDisagreement(t *testing.T) {
	a := CommandFailure{Params: CommandFailureParams{FeedbackValue: tlv.Value{Tag: tlv.TagEnumerated, Uint: 1}}}
	if got := a.Evaluate(StateNormal, tlv.Value{Tag: tlv.TagEnumerated, Uint: 1}); got != StateNormal {
		t.Fatalf("got %v", got)
	}
	if got := a.Evaluate(StateNormal, tlv.Value{Tag: tlv.TagEnumerated, Uint: 0}); got != StateOffnormal {
		t.Fatalf("got %v", got)
	}
}

func TestRecipientActiveRespectsDayAndTimeWindow(t *testing.T) {
	r := Recipient{
		FromTime: tlv.Time{Hour: 8},
		ToTime:   tlv.Time{Hour: 17},
	}
	monday := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC) // a Monday
	r.Days[0] = true
	if !r.Active(monday) {
		t.Fatalf("expected active on Monday within window")
	}
	if r.Active(monday.Add(-2 * time.Hour)) {
		t.Fatalf("expected inactive before window")
	}
	tuesday := monday.AddDate(0, 0, 1)
	if r.Active(tuesday) {
		t.Fatalf("expected inactive on a day not enabled")
	}
}

func TestDispatcherEvaluateFansOutToActiveRecipients(t *testing.T) {
	var delivered []Recipient
	d := NewDispatcher(func(r Recipient, c *NotificationClass, obj tlv.ObjectIdentifier, tr Transition) {
		delivered = append(delivered, r)
	})
	obj := tlv.ObjectIdentifier{Type: 0, Instance: 1}
	d.Enroll(Enrollment{
		Object:            obj,
		Algorithm:         OutOfRange{Params: OutOfRangeParams{HighLimit: 80, LowLimit: 20, Deadband: 2}},
		NotificationClass: 7,
	})
	always := Recipient{NotifyOffnormal: true, NotifyNormal: true, NotifyFault: true, ToTime: tlv.Time{Hour: 23, Minute: 59, Second: 59}}
	for i := range always.Days {
		always.Days[i] = true
	}
	d.SetNotificationClass(NotificationClass{ID: 7, Recipients: []Recipient{always}})

	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	d.Evaluate(obj, tlv.Value{Tag: tlv.TagReal, Real: 90}, now)
	if len(delivered) != 1 {
		t.Fatalf("expected one delivery, got %d", len(delivered))
	}
	// No transition this time: stays in high limit, no redundant delivery.
	d.Evaluate(obj, tlv.Value{Tag: tlv.TagReal, Real: 95}, now)
	if len(delivered) != 1 {
		t.Fatalf("expected no additional delivery without a transition, got %d", len(delivered))
	}
}

func TestDispatcherSkipsUnenrolledObject(t *testing.T) {
	called := false
	d := NewDispatcher(func(Recipient, *NotificationClass, tlv.ObjectIdentifier, Transition) { called = true })
	d.Evaluate(tlv.ObjectIdentifier{Type: 0, Instance: 1}, tlv.Value{Tag: tlv.TagReal, Real: 1}, time.Now())
	if called {
		t.Fatalf("expected no delivery for unenrolled object")
	}
}
