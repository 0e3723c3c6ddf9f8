/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package endpoint implements framed per-connection I/O over the
// socket/* transport primitives, magic-cookie resync, a send queue with
// timeout, and the globally-interned endpoint-definition table.
package endpoint

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Definition is the interned (ip_address, port, is_reliable, service,
// instance) tuple. It is exclusively referenced — never owns transport
// state — and is immutable except for RemotePort, an atomic scalar set on
// dynamic port learning.
type Definition struct {
	Address    string
	Port       uint16
	Reliable   bool
	Service    uint16
	Instance   uint16
	remotePort atomic.Uint32
}

// RemotePort returns the dynamically-learned remote port, 0 if unset.
func (d *Definition) RemotePort() uint16 { return uint16(d.remotePort.Load()) }

// SetRemotePort records a remote port learned from an SD endpoint option,
// the only field on Definition that may change after construction.
func (d *Definition) SetRemotePort(p uint16) { d.remotePort.Store(uint32(p)) }

func (d *Definition) key() string {
	return fmt.Sprintf("%s:%d:%t:%04x:%04x", d.Address, d.Port, d.Reliable, d.Service, d.Instance)
}

// InternTable returns the same *Definition for every equal tuple, matching
// the "a global table returns the same shared definition for equal
// tuples."
type InternTable struct {
	mu      sync.Mutex
	entries map[string]*Definition
}

func NewInternTable() *InternTable {
	return &InternTable{entries: make(map[string]*Definition)}
}

// Intern returns the shared Definition for the given tuple, creating it on
// first use.
func (t *InternTable) Intern(address string, port uint16, reliable bool, service, instance uint16) *Definition {
	d := &Definition{Address: address, Port: port, Reliable: reliable, Service: service, Instance: instance}
	key := d.key()

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[key]; ok {
		return existing
	}
	t.entries[key] = d
	return d
}

// Len reports how many distinct tuples have been interned, mostly useful
// for tests asserting dedup behavior.
func (t *InternTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
