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

package endpoint

import (
	"fmt"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
)

// FramerConfig tunes the receive-buffer heuristics used when framing
// incoming TCP data into whole SOME/IP PDUs.
type FramerConfig struct {
	InitialCapacity     int
	MaxMessageSize      int
	MagicCookiesEnabled bool
	ShrinkThreshold     int // capacity beyond which an empty buffer is a shrink candidate
	ShrinkAfterEmpty    int // consecutive fully-consumed reads required before shrinking
}

func DefaultFramerConfig() FramerConfig {
	return FramerConfig{
		InitialCapacity:  4096,
		MaxMessageSize:   128 * 1024,
		ShrinkThreshold:  64 * 1024,
		ShrinkAfterEmpty: 5,
	}
}

// Framer reassembles a TCP byte stream into discrete SOME/IP PDUs,
// implementing the "Framing (TCP only)" rule: read the length field at
// offset 4, total size = length+8; on magic-cookie PDUs, resync instead of
// delivering upward.
type Framer struct {
	cfg   FramerConfig
	buf   []byte
	empty int // consecutive times the buffer fully drained after a Feed/Take cycle
}

func NewFramer(cfg FramerConfig) *Framer {
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = DefaultFramerConfig().InitialCapacity
	}
	return &Framer{cfg: cfg, buf: make([]byte, 0, cfg.InitialCapacity)}
}

// Feed appends newly-read bytes to the internal buffer.
func (f *Framer) Feed(b []byte) {
	f.buf = append(f.buf, b...)
}

// Buffered reports how many unconsumed bytes are currently held.
func (f *Framer) Buffered() int { return len(f.buf) }

// TakeMessages extracts every complete PDU currently available, in order.
// Magic-cookie PDUs are consumed and never returned as messages; each
// cookie found at the head of the buffer adds one entry to cookieErrs. A
// malformed prefix discarded during cookie resync is also reported via
// cookieErrs, one entry per resync.
func (f *Framer) TakeMessages() (messages [][]byte, cookieErrs []error, teardown error) {
	for {
		if len(f.buf) < 8 {
			break
		}

		if f.cfg.MagicCookiesEnabled && len(f.buf) >= libsomeip.HeaderLength && libsomeip.IsMagicCookie(f.buf[:libsomeip.HeaderLength]) {
			f.buf = f.buf[libsomeip.HeaderLength:]
			cookieErrs = append(cookieErrs, liberr.New(liberr.CodeBadMagicCookie, "endpoint: magic cookie encountered in-band"))
			continue
		}

		total, err := libsomeip.TotalLength(f.buf)
		if err != nil {
			teardown = err
			return
		}

		if total > f.cfg.MaxMessageSize {
			if !f.cfg.MagicCookiesEnabled {
				teardown = liberr.New(liberr.CodeMessageTooBig, fmt.Sprintf("endpoint: message of %d bytes exceeds max_message_size %d", total, f.cfg.MaxMessageSize))
				return
			}
			discarded, idx := f.resyncToCookie()
			if discarded > 0 {
				cookieErrs = append(cookieErrs, liberr.New(liberr.CodeBadMagicCookie, fmt.Sprintf("endpoint: discarded %d bytes resyncing on magic cookie", discarded)))
			}
			if idx < 0 {
				// no cookie found yet; wait for more bytes.
				break
			}
			continue
		}

		if total > len(f.buf) {
			// partial message; report the shortfall by growing capacity
			// so the next Feed doesn't repeatedly reallocate.
			if cap(f.buf) < total {
				grown := make([]byte, len(f.buf), total)
				copy(grown, f.buf)
				f.buf = grown
			}
			break
		}

		msg := make([]byte, total)
		copy(msg, f.buf[:total])
		messages = append(messages, msg)
		// shift the remaining bytes to the front so the buffer keeps its
		// capacity for the shrink heuristic.
		n := copy(f.buf, f.buf[total:])
		f.buf = f.buf[:n]
	}

	f.maybeShrink()
	return
}

// resyncToCookie scans for the CLIENT_COOKIE pattern, discarding bytes up
// to (and including) it. idx is -1 if no cookie was found in the buffered
// bytes.
func (f *Framer) resyncToCookie() (discarded int, idx int) {
	for i := 0; i+libsomeip.HeaderLength <= len(f.buf); i++ {
		if libsomeip.IsMagicCookie(f.buf[i : i+libsomeip.HeaderLength]) {
			discarded = i + libsomeip.HeaderLength
			f.buf = f.buf[discarded:]
			return discarded, i
		}
	}
	return 0, -1
}

func (f *Framer) maybeShrink() {
	if len(f.buf) != 0 {
		f.empty = 0
		return
	}
	if cap(f.buf) <= f.cfg.ShrinkThreshold {
		f.empty = 0
		return
	}
	f.empty++
	if f.empty >= f.cfg.ShrinkAfterEmpty {
		f.buf = make([]byte, 0, f.cfg.InitialCapacity)
		f.empty = 0
	}
}

// Capacity exposes the current backing capacity, used by tests asserting
// the shrink heuristic actually fires.
func (f *Framer) Capacity() int { return cap(f.buf) }
