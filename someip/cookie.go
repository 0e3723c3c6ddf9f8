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

package someip

import "encoding/binary"

// Magic cookies are 16-byte sentinel PDUs a TCP endpoint can inject between
// real messages to let the peer resynchronise framing after a parse error.
// They reuse the SOME/IP header shape with fixed, otherwise-impossible
// field values.
const (
	CookieServiceID uint16 = 0xFFFF
	CookieMethodID  uint16 = 0xFFFF
	CookieClientID  uint16 = 0xFFFF
	CookieSessionID uint16 = 0xFFFF
	cookieLength    uint32 = 0x00000008
)

// ServiceCookie is sent by a server endpoint to let a client resync.
var ServiceCookie = buildCookie()

// ClientCookie is identical on the wire to ServiceCookie; the two names
// exist because client and server endpoints inject the cookie from
// opposite ends of the same TCP stream, and the AUTOSAR naming keeps them
// separate (SERVICE_COOKIE / CLIENT_COOKIE).
var ClientCookie = buildCookie()

func buildCookie() []byte {
	buf := make([]byte, HeaderLength)
	binary.BigEndian.PutUint16(buf[0:2], CookieServiceID)
	binary.BigEndian.PutUint16(buf[2:4], CookieMethodID)
	binary.BigEndian.PutUint32(buf[4:8], cookieLength)
	binary.BigEndian.PutUint16(buf[8:10], CookieClientID)
	binary.BigEndian.PutUint16(buf[10:12], CookieSessionID)
	buf[12] = ProtocolVersion
	buf[13] = 0xFF
	buf[14] = 0xFF
	buf[15] = 0xFF
	return buf
}

// IsMagicCookie reports whether b (expected to be exactly HeaderLength
// bytes) is the fixed cookie sentinel rather than a real PDU header.
func IsMagicCookie(b []byte) bool {
	if len(b) != HeaderLength {
		return false
	}
	for i, c := range buildCookie() {
		if b[i] != c {
			return false
		}
	}
	return true
}
