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
	"time"

	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
	"golang.org/x/time/rate"
)

// cookieInterval is the fixed rate: "rate-limited to one every 10 s."
const cookieInterval = 10 * time.Second

// CookieSender decides, per outbound burst, whether a SERVICE_COOKIE PDU
// should be prepended ahead of the payload — throttled so a busy sender
// never injects more than one every ten seconds.
type CookieSender struct {
	enabled bool
	limiter *rate.Limiter
}

func NewCookieSender(enabled bool) *CookieSender {
	return &CookieSender{
		enabled: enabled,
		// burst of 1: the limiter's token bucket holds exactly one permit,
		// refilled once per cookieInterval.
		limiter: rate.NewLimiter(rate.Every(cookieInterval), 1),
	}
}

// Prepare returns the bytes that should precede payload on the wire: the
// magic cookie (if enabled and not rate-limited) followed by payload
// itself, unmodified, otherwise.
func (c *CookieSender) Prepare(payload []byte) []byte {
	if !c.enabled || !c.limiter.Allow() {
		return payload
	}
	out := make([]byte, 0, len(libsomeip.ServiceCookie)+len(payload))
	out = append(out, libsomeip.ServiceCookie...)
	out = append(out, payload...)
	return out
}
