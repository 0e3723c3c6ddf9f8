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

import "time"

// Subscriber is one client's subscription state against a single
// eventgroup: whether delivery is forced (bypassing the debounce filter,
// e.g. for the initial value), the per-client debounce filter, and —
// for selective eventgroups — the explicit set of client ids this
// subscription's slot is restricted to.
type Subscriber struct {
	ClientID uint16
	Force    bool

	Filter *SubscriberFilter

	Selective    bool
	SelectiveSet map[uint16]struct{}
}

// NewSubscriber builds a plain (non-selective) subscriber entry.
func NewSubscriber(clientID uint16, filter *SubscriberFilter) *Subscriber {
	return &Subscriber{ClientID: clientID, Filter: filter}
}

// NewSelectiveSubscriber builds a subscriber entry carrying an explicit
// client set, per the "selective subscriptions carry an explicit
// client set option."
func NewSelectiveSubscriber(clientID uint16, filter *SubscriberFilter, clients []uint16) *Subscriber {
	set := make(map[uint16]struct{}, len(clients))
	for _, c := range clients {
		set[c] = struct{}{}
	}
	return &Subscriber{
		ClientID:     clientID,
		Filter:       filter,
		Selective:    true,
		SelectiveSet: set,
	}
}

// Eligible reports whether target is allowed to receive this
// subscription's notifications: always true for a plain subscriber, and
// restricted to the explicit client set for a selective one — "no client
// receives another client's slot."
func (s *Subscriber) Eligible(target uint16) bool {
	if !s.Selective {
		return true
	}
	_, ok := s.SelectiveSet[target]
	return ok
}

// Allow evaluates this subscriber's debounce filter for one event,
// bypassing it entirely when Force is set (used for the mandatory initial
// delivery of a field's current value on subscribe-ack).
func (s *Subscriber) Allow(id EventID, payload []byte, now time.Time) bool {
	if s.Force || s.Filter == nil {
		return true
	}
	return s.Filter.Allow(id, payload, now)
}
