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

// Package objdb defines the object database contract the application,
// COV, and event layers read and write against, plus a minimal in-memory
// implementation used by tests. Real deployments
// plug in their own Database backed by whatever store holds live point
// values; this package deliberately does not prescribe one.
package objdb

import (
	"errors"
	"sync"

	"github.com/edgeo/bacnetstack/tlv"
)

var (
	ErrObjectNotFound   = errors.New("objdb: object not found")
	ErrPropertyNotFound = errors.New("objdb: property not found")
)

// ChangeFunc is invoked whenever a property's value changes via Set,
// letting the COV and event engines observe writes without polling.
type ChangeFunc func(obj tlv.ObjectIdentifier, prop uint32, value []tlv.Value)

// Database is the read/write contract every object store implements.
// Property identifiers and array indices are left as raw uint32s rather
// than a closed enum so vendor-proprietary properties pass through
// unmodified.
type Database interface {
	// Get reads a property's value. index is nil for non-array access or
	// for ALL (array index not applicable).
	Get(obj tlv.ObjectIdentifier, prop uint32, index *uint32) ([]tlv.Value, error)

	// Set writes a property's value at an optional write priority
	// (1-16, nil meaning "no priority array", e.g. non-commandable
	// properties).
	Set(obj tlv.ObjectIdentifier, prop uint32, index *uint32, value []tlv.Value, priority *uint8) error

	// List returns every property identifier present on obj.
	List(obj tlv.ObjectIdentifier) ([]uint32, error)

	// Objects returns every object identifier in the database.
	Objects() []tlv.ObjectIdentifier

	// OnChange registers fn to be called after every successful Set.
	OnChange(fn ChangeFunc)
}

type memObject struct {
	properties map[uint32][]tlv.Value
}

// MemoryDatabase is a process-local, map-backed Database. It has no
// persistence and no priority array commandability beyond last-write-wins;
// it exists to exercise the application layer in tests,
// not as a reference point database implementation.
type MemoryDatabase struct {
	mu      sync.RWMutex
	objects map[tlv.ObjectIdentifier]*memObject
	order   []tlv.ObjectIdentifier
	watchers []ChangeFunc
}

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{objects: make(map[tlv.ObjectIdentifier]*memObject)}
}

// CreateObject adds obj to the database with no properties set.
func (d *MemoryDatabase) CreateObject(obj tlv.ObjectIdentifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.objects[obj]; exists {
		return
	}
	d.objects[obj] = &memObject{properties: make(map[uint32][]tlv.Value)}
	d.order = append(d.order, obj)
}

func (d *MemoryDatabase) Get(obj tlv.ObjectIdentifier, prop uint32, _ *uint32) ([]tlv.Value, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.objects[obj]
	if !ok {
		return nil, ErrObjectNotFound
	}
	v, ok := o.properties[prop]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return v, nil
}

func (d *MemoryDatabase) Set(obj tlv.ObjectIdentifier, prop uint32, _ *uint32, value []tlv.Value, _ *uint8) error {
	d.mu.Lock()
	o, ok := d.objects[obj]
	if !ok {
		d.mu.Unlock()
		return ErrObjectNotFound
	}
	o.properties[prop] = value
	watchers := append([]ChangeFunc(nil), d.watchers...)
	d.mu.Unlock()

	for _, w := range watchers {
		w(obj, prop, value)
	}
	return nil
}

func (d *MemoryDatabase) List(obj tlv.ObjectIdentifier) ([]uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.objects[obj]
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]uint32, 0, len(o.properties))
	for p := range o.properties {
		out = append(out, p)
	}
	return out, nil
}

func (d *MemoryDatabase) Objects() []tlv.ObjectIdentifier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]tlv.ObjectIdentifier, len(d.order))
	copy(out, d.order)
	return out
}

func (d *MemoryDatabase) OnChange(fn ChangeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers = append(d.watchers, fn)
}
