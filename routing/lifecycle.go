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

package routing

import "sync"

// LocalClientState is the local-client lifecycle machine:
// CONNECTING -> CONNECTED -> ESTABLISHED -> DISCONNECTED.
type LocalClientState int

const (
	LocalClientConnecting LocalClientState = iota
	LocalClientConnected
	LocalClientEstablished
	LocalClientDisconnected
)

func (s LocalClientState) String() string {
	switch s {
	case LocalClientConnecting:
		return "CONNECTING"
	case LocalClientConnected:
		return "CONNECTED"
	case LocalClientEstablished:
		return "ESTABLISHED"
	case LocalClientDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// OfferPhase is the SD-driven offer lifecycle:
// PENDING -> INITIAL_WAIT -> REPETITION(n) -> MAIN.
type OfferPhase int

const (
	OfferPending OfferPhase = iota
	OfferInitialWait
	OfferRepetition
	OfferMain
)

func (p OfferPhase) String() string {
	switch p {
	case OfferPending:
		return "PENDING"
	case OfferInitialWait:
		return "INITIAL_WAIT"
	case OfferRepetition:
		return "REPETITION"
	case OfferMain:
		return "MAIN"
	default:
		return "UNKNOWN"
	}
}

// OfferLifecycle tracks one offered service's SD phase and repetition
// count. The discovery package drives transitions as its timers fire;
// this type only holds the state and the transition rules themselves.
type OfferLifecycle struct {
	mu          sync.Mutex
	phase       OfferPhase
	repetitions int
}

func NewOfferLifecycle() *OfferLifecycle {
	return &OfferLifecycle{phase: OfferPending}
}

func (o *OfferLifecycle) Phase() OfferPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Start moves a pending offer into its initial wait.
func (o *OfferLifecycle) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == OfferPending {
		o.phase = OfferInitialWait
	}
}

// EnterRepetition moves from initial wait into the repetition phase.
func (o *OfferLifecycle) EnterRepetition() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == OfferInitialWait {
		o.phase = OfferRepetition
		o.repetitions = 0
	}
}

// Repeat records one repetition-phase emission and reports the count
// after incrementing.
func (o *OfferLifecycle) Repeat() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repetitions++
	return o.repetitions
}

// EnterMain moves into the steady cyclic-emission phase.
func (o *OfferLifecycle) EnterMain() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phase = OfferMain
}

// StopSilently reports whether stopping the offer now needs no stop-offer
// SD traffic: true while it is pending or in initial wait, since nothing
// was ever announced. It does not change the phase.
func (o *OfferLifecycle) StopSilently() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == OfferPending || o.phase == OfferInitialWait {
		return true
	}
	return false
}
