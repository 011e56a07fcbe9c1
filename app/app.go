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
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgeo/bacnetstack/apdu"
	"github.com/edgeo/bacnetstack/cov"
	"github.com/edgeo/bacnetstack/event"
	"github.com/edgeo/bacnetstack/npdu"
	"github.com/edgeo/bacnetstack/objdb"
	"github.com/edgeo/bacnetstack/tlv"
	"github.com/edgeo/bacnetstack/transport"
	"github.com/edgeo/bacnetstack/tsm"
)

// DeviceInfo is a cached summary of a remote device, populated from
// received I-Am requests (Clause 16.10).
type DeviceInfo struct {
	InstanceID    uint32
	Address       npdu.Address
	MaxAPDULength uint32
	Segmentation  uint32
	VendorID      uint32
	SeenAt        time.Time
}

// Port pairs a data-link transport with the router port identifier it
// answers to, matching the Config.RouterPorts entries.
type Port struct {
	ID        uint8
	Network   uint16
	Transport transport.Port
}

// Application is a running BACnet device: the object database, COV and
// event engines, the transaction and router caches, and the set of
// data-link ports it speaks on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	DB    objdb.Database
	TSM   *tsm.Manager
	Routes *npdu.RouteCache
	COV   *cov.Engine
	Events *event.Dispatcher

	mu      sync.RWMutex
	devices map[uint32]DeviceInfo
	ports   []Port
	tx      Transmitter

	registry *Registry
}

// Capabilities is the PICS-lite table: which confirmed/unconfirmed
// services this instance answers with a real (non-stub) handler.
type Capabilities struct {
	Confirmed   map[apdu.ConfirmedServiceChoice]bool
	Unconfirmed map[apdu.UnconfirmedServiceChoice]bool
}

// NewApplication wires a fresh Application over db using cfg. logger may
// be nil, in which case slog.Default() is used and a "component"
// attribute names each subsystem, matching the teacher's logging
// convention.
func NewApplication(cfg Config, db objdb.Database, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Application{
		cfg:      cfg,
		logger:   logger,
		DB:       db,
		TSM:      tsm.NewManager(cfg.APDUTimeout(), cfg.APDURetries, 500*time.Millisecond),
		Routes:   npdu.NewRouteCache(),
		devices:  make(map[uint32]DeviceInfo),
		registry: newRegistry(),
	}
	a.COV = cov.NewEngine(a.deliverCOVNotification)
	a.Events = event.NewDispatcher(a.deliverEventNotification)
	db.OnChange(a.onPropertyChanged)
	return a
}

// Capabilities returns the PICS-lite service support table, derived
// directly from the services the registry has a handler for: it can
// never drift from what HandleIncoming actually dispatches.
func (a *Application) Capabilities() Capabilities { return a.registry.Capabilities() }

// AddPort registers a data-link port the application forwards on.
func (a *Application) AddPort(p Port) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ports = append(a.ports, p)
}

// Start opens every configured port concurrently, using an errgroup so a
// single failed bind aborts the rest instead of leaving a partial,
// silently-broken port set.
func (a *Application) Start(ctx context.Context) error {
	a.mu.RLock()
	ports := append([]Port(nil), a.ports...)
	a.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range ports {
		p := p
		g.Go(func() error {
			if err := p.Transport.Open(gctx); err != nil {
				a.logger.Error("port open failed", "component", "app", "port_id", p.ID, "error", err)
				return err
			}
			a.logger.Info("port open", "component", "app", "port_id", p.ID, "network", p.Network)
			return nil
		})
	}
	return g.Wait()
}

// Stop closes every open port, collecting the first error but attempting
// to close all of them regardless.
func (a *Application) Stop() error {
	a.mu.RLock()
	ports := append([]Port(nil), a.ports...)
	a.mu.RUnlock()

	var first error
	for _, p := range ports {
		if err := p.Transport.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordIAm updates the device-info cache from a received I-Am.
func (a *Application) RecordIAm(src npdu.Address, i apdu.IAmRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.devices[i.DeviceID.Instance] = DeviceInfo{
		InstanceID:    i.DeviceID.Instance,
		Address:       src,
		MaxAPDULength: i.MaxAPDULength,
		Segmentation:  i.Segmentation,
		VendorID:      i.VendorID,
		SeenAt:        time.Now(),
	}
}

// Device looks up a cached device by instance number.
func (a *Application) Device(instance uint32) (DeviceInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[instance]
	return d, ok
}

// Devices returns every cached device, newest SeenAt last is not
// guaranteed; callers that need ordering should sort explicitly.
func (a *Application) Devices() []DeviceInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]DeviceInfo, 0, len(a.devices))
	for _, d := range a.devices {
		out = append(out, d)
	}
	return out
}

// onPropertyChanged is the objdb.ChangeFunc registered in
// NewApplication: every successful Set() fans out to the COV engine
// (threshold-based notification) and the event dispatcher (intrinsic
// reporting), so neither engine needs its own write path into the
// database.
func (a *Application) onPropertyChanged(obj tlv.ObjectIdentifier, prop uint32, value []tlv.Value) {
	a.COV.OnPropertyChanged(obj, prop, value)
	if len(value) == 1 {
		a.Events.Evaluate(obj, value[0], time.Now())
	}
}

// Logger returns the application's root logger.
func (a *Application) Logger() *slog.Logger { return a.logger }
