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
	"net"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
)

// Layer-4 protocol bytes an endpoint option may carry: TCP or UDP.
const (
	L4TCP byte = 0x06
	L4UDP byte = 0x11
)

// decodeEndpointOption parses an IPv4/IPv6 endpoint or multicast option's
// payload into an EndpointRef plus whether it named TCP.
func decodeEndpointOption(o libsomeip.Option) (EndpointRef, bool, error) {
	switch o.Type {
	case libsomeip.OptionIPv4Endpoint, libsomeip.OptionIPv4Multicast, libsomeip.OptionIPv4SDEndpoint:
		if len(o.Payload) != 8 {
			return EndpointRef{}, false, liberr.New(liberr.CodeMalformedSDOption, "discovery: malformed IPv4 endpoint option")
		}
		proto := o.Payload[5]
		if proto != L4TCP && proto != L4UDP {
			return EndpointRef{}, false, liberr.New(liberr.CodeMalformedSDOption, "discovery: endpoint option names neither TCP nor UDP")
		}
		port := uint16(o.Payload[6])<<8 | uint16(o.Payload[7])
		addr := net.IPv4(o.Payload[0], o.Payload[1], o.Payload[2], o.Payload[3])
		return EndpointRef{Address: addr, Port: port, Reliable: proto == L4TCP}, proto == L4TCP, nil

	case libsomeip.OptionIPv6Endpoint, libsomeip.OptionIPv6Multicast, libsomeip.OptionIPv6SDEndpoint:
		if len(o.Payload) != 20 {
			return EndpointRef{}, false, liberr.New(liberr.CodeMalformedSDOption, "discovery: malformed IPv6 endpoint option")
		}
		proto := o.Payload[17]
		if proto != L4TCP && proto != L4UDP {
			return EndpointRef{}, false, liberr.New(liberr.CodeMalformedSDOption, "discovery: endpoint option names neither TCP nor UDP")
		}
		port := uint16(o.Payload[18])<<8 | uint16(o.Payload[19])
		addr := net.IP(append([]byte(nil), o.Payload[0:16]...))
		return EndpointRef{Address: addr, Port: port, Reliable: proto == L4TCP}, proto == L4TCP, nil

	default:
		return EndpointRef{}, false, liberr.New(liberr.CodeMalformedSDOption, "discovery: not an endpoint option")
	}
}

// isEndpointOption reports whether o carries a unicast endpoint (not a
// multicast/config/selective option) so the duplicate-protocol and
// own-address checks only see the options they apply to.
func isEndpointOption(o libsomeip.Option) bool {
	switch o.Type {
	case libsomeip.OptionIPv4Endpoint, libsomeip.OptionIPv6Endpoint:
		return true
	default:
		return false
	}
}

// ValidateSubscribeOptions applies the Subscribe option rules: no two
// endpoint options of the same reliability class, and every IPv4 endpoint
// option must avoid both the local unicast address and addresses outside
// the configured subnet.
func ValidateSubscribeOptions(options []libsomeip.Option, ownAddress net.IP, subnet *net.IPNet) error {
	seenReliable := false
	seenUnreliable := false

	for _, o := range options {
		if !isEndpointOption(o) {
			continue
		}
		ref, reliable, err := decodeEndpointOption(o)
		if err != nil {
			return err
		}
		if reliable {
			if seenReliable {
				return liberr.New(liberr.CodeMalformedSDOption, "discovery: duplicate reliable endpoint option")
			}
			seenReliable = true
		} else {
			if seenUnreliable {
				return liberr.New(liberr.CodeMalformedSDOption, "discovery: duplicate unreliable endpoint option")
			}
			seenUnreliable = true
		}

		if o.Type == libsomeip.OptionIPv4Endpoint {
			if ownAddress != nil && ref.Address.Equal(ownAddress) {
				return liberr.New(liberr.CodeMalformedSDOption, "discovery: endpoint option names our own address")
			}
			if subnet != nil && !subnet.Contains(ref.Address) {
				return liberr.New(liberr.CodeMalformedSDOption, "discovery: endpoint option outside configured subnet")
			}
		}
	}
	return nil
}
