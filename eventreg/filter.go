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

// Package eventreg implements the event/eventgroup registry:
// subscriber bookkeeping, the composed change/interval debounce filter,
// cyclic notification timers, the pending-delivery queue for events that
// have not yet received their first payload, and selective eventgroups.
package eventreg

import "time"

// ChangeFilter implements the change predicate: a byte-wise compare of
// old vs. new payload outside a configured ignore mask. IgnoreMask[i] ==
// 0xFF means "ignore this byte entirely"; any other value is a bitmask of
// bits to ignore within that byte. A byte present in only one payload
// counts as a change unless it is wholly ignored.
type ChangeFilter struct {
	IgnoreMask []byte
}

func (f ChangeFilter) maskAt(i int) byte {
	if i < len(f.IgnoreMask) {
		return f.IgnoreMask[i]
	}
	return 0x00
}

// Changed reports whether new differs from old outside the ignore mask.
func (f ChangeFilter) Changed(old, newPayload []byte) bool {
	n := len(old)
	if len(newPayload) > n {
		n = len(newPayload)
	}
	for i := 0; i < n; i++ {
		mask := f.maskAt(i)
		if mask == 0xFF {
			continue
		}
		var ob, nb byte
		present := true
		if i < len(old) {
			ob = old[i]
		} else {
			present = false
		}
		if i < len(newPayload) {
			nb = newPayload[i]
		} else {
			present = false
		}
		if !present {
			return true
		}
		if (ob &^ mask) != (nb &^ mask) {
			return true
		}
	}
	return false
}

// intervalState tracks the last-forwarded instant for the interval
// predicate, per (subscriber, event) pair.
type intervalState struct {
	lastPayload   []byte
	lastForwarded time.Time
	initialized   bool
}

// SubscriberFilter composes the change and interval predicates: the
// composed predicate returns true iff (change allowed) OR (interval
// elapsed). A nil Change field means every payload is considered changed;
// a zero or negative Interval counts as always elapsed, so every payload is
// forwarded.
type SubscriberFilter struct {
	Change                 *ChangeFilter
	Interval               time.Duration
	OnChangeResetsInterval bool

	states map[interface{}]*intervalState
}

func NewSubscriberFilter(change *ChangeFilter, interval time.Duration, onChangeResetsInterval bool) *SubscriberFilter {
	return &SubscriberFilter{
		Change:                 change,
		Interval:               interval,
		OnChangeResetsInterval: onChangeResetsInterval,
		states:                 make(map[interface{}]*intervalState),
	}
}

// Allow evaluates the composed predicate for one event key and payload,
// and re-schedules the interval timer for that key as a side effect when
// the notification is forwarded, so interval-only firing re-arms the
// per-client debounce timer.
func (f *SubscriberFilter) Allow(key interface{}, payload []byte, now time.Time) bool {
	st, ok := f.states[key]
	if !ok {
		st = &intervalState{}
		f.states[key] = st
	}

	changed := true
	if f.Change != nil && st.initialized {
		changed = f.Change.Changed(st.lastPayload, payload)
	}

	elapsed := f.Interval <= 0
	if !elapsed && st.initialized {
		elapsed = now.Sub(st.lastForwarded) >= f.Interval
	} else if !st.initialized {
		elapsed = true
	}

	allow := changed || elapsed
	if allow {
		first := !st.initialized
		st.lastPayload = append([]byte(nil), payload...)
		st.initialized = true
		if first || !changed || f.OnChangeResetsInterval {
			st.lastForwarded = now
		}
	}
	return allow
}
