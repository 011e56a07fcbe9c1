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

// Package tsm implements the BACnet Clause 5.4 transaction state machine:
// invoke ID allocation, per-transaction timers, and segmented message
// reassembly/disassembly.
package tsm

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var (
	ErrResourcesBusy  = errors.New("tsm: duplicate transaction for peer/invoke-id")
	ErrTimeout        = errors.New("tsm: transaction timed out")
	ErrCancelled      = errors.New("tsm: transaction cancelled")
	ErrSegmentOutOfWindow = errors.New("tsm: segment sequence number out of window")
	ErrReassemblyTooLarge = errors.New("tsm: reassembled APDU exceeds 1 MiB cap")
)

// MaxReassemblySize caps total bytes accumulated while reassembling a
// segmented message (spec §5 resource limits).
const MaxReassemblySize = 1024 * 1024

// State is a client-transaction lifecycle state (Clause 5.4.5, Figure 5-5).
type State uint8

const (
	StateIdle State = iota
	StateAwaitConfirmation
	StateAwaitResponse
	StateSegmentedRequest
	StateSegmentedConfirmation
)

// peerKey identifies a transaction by remote peer address and invoke ID.
type peerKey struct {
	peer     string
	invokeID uint8
}

// Transaction tracks one in-flight confirmed request/response exchange.
type Transaction struct {
	InvokeID uint8
	Peer     string
	State    State

	mu       sync.Mutex
	response chan result
	segments [][]byte // accumulated segments when reassembling
	segBytes int

	timer   *time.Timer
	retries int
}

type result struct {
	data []byte
	err  error
}

// Manager allocates invoke IDs and tracks outstanding transactions per
// peer, mirroring the client's pending-map pattern but generalized to
// both client and server roles and to segmented exchanges.
type Manager struct {
	mu           sync.Mutex
	transactions map[peerKey]*Transaction
	nextInvoke   map[string]*atomic.Uint32

	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

// NewManager creates a transaction manager with the given per-request
// timeout, retry count, and delay between retries.
func NewManager(timeout time.Duration, retries int, retryDelay time.Duration) *Manager {
	return &Manager{
		transactions: make(map[peerKey]*Transaction),
		nextInvoke:   make(map[string]*atomic.Uint32),
		timeout:      timeout,
		retries:      retries,
		retryDelay:   retryDelay,
	}
}

// NextInvokeID returns the next invoke ID for peer, wrapping modulo 256.
// The per-peer counter itself is lock-free; the manager's mutex only
// guards the first-touch allocation of that counter.
func (m *Manager) NextInvokeID(peer string) uint8 {
	m.mu.Lock()
	counter, ok := m.nextInvoke[peer]
	if !ok {
		counter = atomic.NewUint32(0)
		m.nextInvoke[peer] = counter
	}
	m.mu.Unlock()

	return uint8(counter.Add(1) - 1)
}

// Begin registers a new outstanding transaction for peer/invokeID. It
// returns ErrResourcesBusy if one is already in flight for that key,
// matching the BACnet requirement to reject a duplicate (peer, invoke-id).
func (m *Manager) Begin(peer string, invokeID uint8) (*Transaction, error) {
	key := peerKey{peer: peer, invokeID: invokeID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transactions[key]; exists {
		return nil, ErrResourcesBusy
	}
	tx := &Transaction{
		InvokeID: invokeID,
		Peer:     peer,
		State:    StateAwaitConfirmation,
		response: make(chan result, 1),
	}
	m.transactions[key] = tx
	return tx, nil
}

// End removes the transaction for peer/invokeID, releasing the invoke ID
// for reuse.
func (m *Manager) End(peer string, invokeID uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, peerKey{peer: peer, invokeID: invokeID})
}

// Lookup finds the outstanding transaction for peer/invokeID, if any.
func (m *Manager) Lookup(peer string, invokeID uint8) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[peerKey{peer: peer, invokeID: invokeID}]
	return tx, ok
}

// Complete delivers a final (non-segmented or fully reassembled) response
// to the waiting caller.
func (m *Manager) Complete(peer string, invokeID uint8, data []byte, err error) {
	tx, ok := m.Lookup(peer, invokeID)
	if !ok {
		return
	}
	select {
	case tx.response <- result{data: data, err: err}:
	default:
	}
}

// Wait blocks until the transaction completes, the context is cancelled,
// or the manager's timeout elapses.
func (m *Manager) Wait(ctx context.Context, tx *Transaction) ([]byte, error) {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case res := <-tx.response:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// AppendSegment accumulates a received segment for reassembly, enforcing
// the total-size cap. The caller supplies sequence ordering; this layer
// only tracks byte accounting since proposed-window-size reordering is
// handled by the segment-ack producer upstream.
func (tx *Transaction) AppendSegment(data []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.segBytes+len(data) > MaxReassemblySize {
		return ErrReassemblyTooLarge
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	tx.segments = append(tx.segments, buf)
	tx.segBytes += len(data)
	return nil
}

// Reassembled concatenates all accumulated segments in arrival order.
func (tx *Transaction) Reassembled() []byte {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]byte, 0, tx.segBytes)
	for _, s := range tx.segments {
		out = append(out, s...)
	}
	return out
}

// Retries reports the configured retry count and delay, used by callers
// implementing the retransmission loop around Wait.
func (m *Manager) Retries() (count int, delay time.Duration) { return m.retries, m.retryDelay }
