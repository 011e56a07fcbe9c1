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

package app

import (
	"github.com/edgeo/bacnetstack/apdu"
	"github.com/edgeo/bacnetstack/cov"
	"github.com/edgeo/bacnetstack/event"
	"github.com/edgeo/bacnetstack/tlv"
)

// Transmitter is the narrow outbound contract the notification glue
// needs: encode an APDU and hand it to whichever transport/router path
// owns the destination address. The application layer doesn't know
// addressing itself, so this is supplied by whoever assembles the
// running device (typically cmd/bacnetctl or a test harness).
type Transmitter interface {
	SendConfirmed(dest string, service apdu.ConfirmedServiceChoice, params []byte) error
	SendUnconfirmed(dest string, service apdu.UnconfirmedServiceChoice, params []byte) error
}

// SetTransmitter installs the outbound path used to deliver COV and
// event notifications. Until one is set, deliveries are logged and
// dropped, which is adequate for tests exercising only the engines.
func (a *Application) SetTransmitter(t Transmitter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tx = t
}

func (a *Application) transmitter() Transmitter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tx
}

func (a *Application) deliverCOVNotification(sub cov.Subscription, values map[uint32][]tlv.Value, timeRemaining uint32) {
	tx := a.transmitter()
	if tx == nil {
		a.logger.Debug("cov notification dropped: no transmitter", "component", "app")
		return
	}

	n := apdu.COVNotification{
		SubscriberProcessID: sub.Subscriber.ProcessID,
		InitiatingDeviceID:  tlv.ObjectIdentifier{Type: 8, Instance: a.cfg.InstanceNumber},
		MonitoredObjectID:   sub.Object,
		TimeRemaining:       timeRemaining,
	}
	for prop, vals := range values {
		n.Values = append(n.Values, apdu.PropertyValue{Property: prop, Value: vals})
	}
	params := apdu.EncodeCOVNotification(n)

	var err error
	if sub.Confirmed {
		err = tx.SendConfirmed(sub.Subscriber.Address, apdu.ServiceConfirmedCOVNotification, params)
	} else {
		err = tx.SendUnconfirmed(sub.Subscriber.Address, apdu.ServiceUnconfirmedCOVNotification, params)
	}
	if err != nil {
		a.logger.Warn("cov notification delivery failed", "component", "app", "subscriber", sub.Subscriber.Address, "error", err)
	}
}

func (a *Application) deliverEventNotification(r event.Recipient, class *event.NotificationClass, obj tlv.ObjectIdentifier, t event.Transition) {
	tx := a.transmitter()
	if tx == nil {
		a.logger.Debug("event notification dropped: no transmitter", "component", "app")
		return
	}

	n := apdu.EventNotification{
		InitiatingDeviceID: tlv.ObjectIdentifier{Type: 8, Instance: a.cfg.InstanceNumber},
		EventObjectID:      obj,
		NotificationClass:  class.ID,
		FromState:          uint32(t.From),
		ToState:            uint32(t.To),
		EventValues:        []tlv.Value{t.Value},
	}
	params := apdu.EncodeEventNotification(n)

	var err error
	if r.Confirmed {
		err = tx.SendConfirmed(r.Address, apdu.ServiceConfirmedEventNotification, params)
	} else {
		err = tx.SendUnconfirmed(r.Address, apdu.ServiceUnconfirmedEventNotification, params)
	}
	if err != nil {
		a.logger.Warn("event notification delivery failed", "component", "app", "recipient", r.Address, "error", err)
	}
}
