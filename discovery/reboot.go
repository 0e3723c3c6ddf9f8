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

package discovery

import (
	"sync"
)

// Direction distinguishes the two channels a peer's SD traffic can arrive
// on; each gets its own independent session/reboot track.
type Direction int

const (
	DirectionMulticast Direction = iota
	DirectionUnicast
)

type peerDirection struct {
	addr string
	dir  Direction
}

type peerSession struct {
	session uint16
	reboot  bool
}

// RebootTracker implements the reboot detection: per remote address,
// per direction, it watches the last (session, reboot_flag) pair and
// declares a reboot when the flag transitions false->true, or stays true
// while the session fails to strictly increase (wraparound already
// accounted for by the peer, so a non-increasing session here means a
// fresh boot, not legitimate wraparound).
type RebootTracker struct {
	mu   sync.Mutex
	last map[peerDirection]peerSession
}

func NewRebootTracker() *RebootTracker {
	return &RebootTracker{last: make(map[peerDirection]peerSession)}
}

// Observe records one inbound SD message's (session, reboot) pair and
// reports whether it constitutes a reboot.
func (r *RebootTracker) Observe(addr string, dir Direction, session uint16, reboot bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := peerDirection{addr: addr, dir: dir}
	prev, known := r.last[key]
	r.last[key] = peerSession{session: session, reboot: reboot}

	if !known {
		return false
	}
	if !prev.reboot && reboot {
		return true
	}
	if prev.reboot && reboot && session <= prev.session {
		return true
	}
	return false
}

// Forget drops tracking state for addr across both directions, used once
// a reboot has been handled and its effects (expiring services and
// subscriptions) have been applied.
func (r *RebootTracker) Forget(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.last, peerDirection{addr: addr, dir: DirectionMulticast})
	delete(r.last, peerDirection{addr: addr, dir: DirectionUnicast})
}

// SessionCounter hands out the monotonic, per-destination 16-bit session
// id and reboot flag: it starts at 1 with reboot=true and flips to
// reboot=false after the first wraparound.
type SessionCounter struct {
	mu      sync.Mutex
	byDest  map[string]*destSession
}

type destSession struct {
	session uint16
	reboot  bool
}

func NewSessionCounter() *SessionCounter {
	return &SessionCounter{byDest: make(map[string]*destSession)}
}

// Next returns the next (session, reboot) pair to stamp onto an outbound
// SD message addressed to dest.
func (s *SessionCounter) Next(dest string) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byDest[dest]
	if !ok {
		d = &destSession{session: 0, reboot: true}
		s.byDest[dest] = d
	}
	d.session++
	if d.session == 0 {
		d.session = 1
		d.reboot = false
	}
	return d.session, d.reboot
}
