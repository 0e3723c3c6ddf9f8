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

package eventreg

import (
	"sync"
	"time"
)

// EventID identifies one event within a (service, instance).
type EventID struct {
	Service  uint16
	Instance uint16
	Event    uint16
}

// NotifyFunc delivers event to one client; the registry never touches the
// wire itself, keeping transport out of this package, it only calls
// back into whatever the caller (routing) wired up.
type NotifyFunc func(client uint16, id EventID, payload []byte)

// NotifyAllFunc delivers event to every eligible subscriber of the
// eventgroup(s) the event belongs to, applying each subscriber's debounce
// filter. It is supplied by the Registry once the event is registered.
type NotifyAllFunc func(id EventID, payload []byte)

// Event is a single event or field. Fields retain their last payload and
// deliver it as an initial notification on subscribe (the "Initial
// events on subscribe-ack"); plain events do not retain state across
// is_set transitions other than the pending_ queue.
type Event struct {
	ID        EventID
	Field     bool
	Selective bool

	UpdateOnChange    bool
	ChangeResetsCycle bool
	CyclePeriod       time.Duration

	notifyAll NotifyAllFunc
	direct    NotifyFunc

	mu           sync.Mutex
	payload      []byte
	isSet        bool
	pendingOrder []uint16
	pendingSet   map[uint16]struct{}

	timer     *time.Timer
	timerStop chan struct{}
}

func NewEvent(id EventID, field bool, notifyAll NotifyAllFunc, direct NotifyFunc) *Event {
	return &Event{
		ID:         id,
		Field:      field,
		notifyAll:  notifyAll,
		direct:     direct,
		pendingSet: make(map[uint16]struct{}),
	}
}

// NotifyOne implements the notify_one: deliver the current payload to a
// single client immediately if the event already has one, otherwise queue
// the client into pending_ so it receives the payload from the first
// subsequent SetPayloadNotifyPending call, in the order requests arrived.
func (e *Event) NotifyOne(client uint16) {
	e.mu.Lock()
	if e.isSet {
		payload := e.payload
		e.mu.Unlock()
		if e.direct != nil {
			e.direct(client, e.ID, payload)
		}
		return
	}
	if _, queued := e.pendingSet[client]; !queued {
		e.pendingSet[client] = struct{}{}
		e.pendingOrder = append(e.pendingOrder, client)
	}
	e.mu.Unlock()
}

// IsSet reports whether the event has ever received a payload.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSet
}

// Payload returns the current payload, or nil if unset.
func (e *Event) Payload() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payload
}

// SetPayload implements the set_payload: copies the incoming payload,
// skips unchanged payloads unless force is set or the event is a
// non-zero-cycle field, starts the cyclic timer on the first-ever set, and
// — when UpdateOnChange is true — notifies subscribers, stopping and
// restarting the cyclic timer around the notification when
// ChangeResetsCycle is set.
func (e *Event) SetPayload(payload []byte, force bool) bool {
	e.mu.Lock()

	changed := force || !bytesEqual(e.payload, payload)
	if !changed && !(e.Field && e.CyclePeriod > 0) {
		e.mu.Unlock()
		return false
	}

	e.payload = append([]byte(nil), payload...)
	firstSet := !e.isSet
	e.isSet = true

	if firstSet && e.CyclePeriod > 0 {
		e.startCyclicLocked()
	}

	notify := e.UpdateOnChange
	resetsCycle := e.ChangeResetsCycle && e.CyclePeriod > 0
	cur := e.payload
	e.mu.Unlock()

	if notify {
		if resetsCycle {
			e.stopCyclic()
		}
		if e.notifyAll != nil {
			e.notifyAll(e.ID, cur)
		}
		if resetsCycle {
			e.mu.Lock()
			if e.isSet {
				e.startCyclicLocked()
			}
			e.mu.Unlock()
		}
	}
	return true
}

// SetPayloadNotifyPending performs SetPayload and then flushes pending_
// exactly once, in insertion order, per the "flushed on the first
// set_payload_notify_pending call."
func (e *Event) SetPayloadNotifyPending(payload []byte) bool {
	changed := e.SetPayload(payload, false)

	e.mu.Lock()
	pending := e.pendingOrder
	e.pendingOrder = nil
	e.pendingSet = make(map[uint16]struct{})
	cur := e.payload
	e.mu.Unlock()

	if e.direct != nil {
		for _, client := range pending {
			e.direct(client, e.ID, cur)
		}
	}
	return changed
}

// Resend re-notifies every eligible subscriber with the event's current
// payload if one has ever been set, without restarting the cyclic timer.
// It is a no-op for an event that has never been assigned a payload.
func (e *Event) Resend() {
	e.mu.Lock()
	isSet := e.isSet
	cur := e.payload
	e.mu.Unlock()
	if isSet && e.notifyAll != nil {
		e.notifyAll(e.ID, cur)
	}
}

// startCyclicLocked arms the periodic re-notify timer. Callers must hold
// e.mu. Any previously running timer is stopped first so restarts (e.g.
// after a change-resets-cycle notify) never leak a goroutine.
func (e *Event) startCyclicLocked() {
	e.stopTimerLocked()
	stop := make(chan struct{})
	e.timerStop = stop
	e.timer = time.AfterFunc(e.CyclePeriod, func() {
		e.fireCyclic(stop)
	})
}

func (e *Event) fireCyclic(stop chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}

	e.mu.Lock()
	if e.timerStop != stop || !e.isSet {
		e.mu.Unlock()
		return
	}
	payload := e.payload
	e.mu.Unlock()

	if e.notifyAll != nil {
		e.notifyAll(e.ID, payload)
	}

	e.mu.Lock()
	if e.timerStop == stop {
		e.timer = time.AfterFunc(e.CyclePeriod, func() {
			e.fireCyclic(stop)
		})
	}
	e.mu.Unlock()
}

// stopCyclic disarms the periodic re-notify timer.
func (e *Event) stopCyclic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

func (e *Event) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.timerStop != nil {
		close(e.timerStop)
		e.timerStop = nil
	}
}

// Close stops any running cyclic timer, releasing the event's background
// goroutine. Safe to call more than once.
func (e *Event) Close() {
	e.stopCyclic()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
