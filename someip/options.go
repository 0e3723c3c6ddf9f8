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

import (
	"encoding/binary"
	"fmt"
	"net"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
)

// L4Proto identifies the transport an endpoint option refers to.
type L4Proto uint8

const (
	L4TCP L4Proto = 0x06
	L4UDP L4Proto = 0x11
)

// EndpointOptionData is the decoded payload of an IPv4/IPv6 (SD-)endpoint or
// multicast option (the option records).
type EndpointOptionData struct {
	Address net.IP
	Proto   L4Proto
	Port    uint16
}

// NewIPv4EndpointOption builds an IPv4Endpoint option carrying addr:port
// reachable over proto, used by OFFER_SERVICE entries to advertise where a
// provider listens.
func NewIPv4EndpointOption(addr net.IP, proto L4Proto, port uint16) Option {
	return Option{Type: OptionIPv4Endpoint, Payload: encodeIPv4Endpoint(addr, proto, port)}
}

func NewIPv6EndpointOption(addr net.IP, proto L4Proto, port uint16) Option {
	return Option{Type: OptionIPv6Endpoint, Payload: encodeIPv6Endpoint(addr, proto, port)}
}

func NewIPv4MulticastOption(addr net.IP, proto L4Proto, port uint16) Option {
	return Option{Type: OptionIPv4Multicast, Payload: encodeIPv4Endpoint(addr, proto, port)}
}

func NewIPv6MulticastOption(addr net.IP, proto L4Proto, port uint16) Option {
	return Option{Type: OptionIPv6Multicast, Payload: encodeIPv6Endpoint(addr, proto, port)}
}

func encodeIPv4Endpoint(addr net.IP, proto L4Proto, port uint16) []byte {
	buf := make([]byte, 8)
	copy(buf[0:4], addr.To4())
	buf[4] = 0 // reserved
	buf[5] = byte(proto)
	binary.BigEndian.PutUint16(buf[6:8], port)
	return buf
}

func encodeIPv6Endpoint(addr net.IP, proto L4Proto, port uint16) []byte {
	buf := make([]byte, 20)
	copy(buf[0:16], addr.To16())
	buf[16] = 0 // reserved
	buf[17] = byte(proto)
	binary.BigEndian.PutUint16(buf[18:20], port)
	return buf
}

// DecodeEndpointOption parses the payload of an IPv4/IPv6 endpoint or
// multicast option back into structured fields.
func DecodeEndpointOption(o Option) (EndpointOptionData, error) {
	switch o.Type {
	case OptionIPv4Endpoint, OptionIPv4Multicast, OptionIPv4SDEndpoint:
		if len(o.Payload) != 8 {
			return EndpointOptionData{}, liberr.New(liberr.CodeMalformedSDOption, fmt.Sprintf("someip: IPv4 endpoint option must be 8 bytes, got %d", len(o.Payload)))
		}
		return EndpointOptionData{
			Address: net.IP(append([]byte(nil), o.Payload[0:4]...)),
			Proto:   L4Proto(o.Payload[5]),
			Port:    binary.BigEndian.Uint16(o.Payload[6:8]),
		}, nil
	case OptionIPv6Endpoint, OptionIPv6Multicast, OptionIPv6SDEndpoint:
		if len(o.Payload) != 20 {
			return EndpointOptionData{}, liberr.New(liberr.CodeMalformedSDOption, fmt.Sprintf("someip: IPv6 endpoint option must be 20 bytes, got %d", len(o.Payload)))
		}
		return EndpointOptionData{
			Address: net.IP(append([]byte(nil), o.Payload[0:16]...)),
			Proto:   L4Proto(o.Payload[17]),
			Port:    binary.BigEndian.Uint16(o.Payload[18:20]),
		}, nil
	default:
		return EndpointOptionData{}, liberr.New(liberr.CodeMalformedSDOption, fmt.Sprintf("someip: option type 0x%02x is not an endpoint option", o.Type))
	}
}

// NewConfigurationOption encodes a set of key=value pairs the way vsomeip's
// configuration option carries capability strings (e.g. routing hints),
// each entry length-prefixed by a single byte per the standard format.
func NewConfigurationOption(entries map[string]string) Option {
	buf := make([]byte, 0, len(entries)*8)
	for k, v := range entries {
		kv := k + "=" + v
		buf = append(buf, byte(len(kv)))
		buf = append(buf, kv...)
	}
	return Option{Type: OptionConfiguration, Payload: buf}
}

// DecodeConfigurationOption reverses NewConfigurationOption.
func DecodeConfigurationOption(o Option) (map[string]string, error) {
	out := make(map[string]string)
	b := o.Payload
	for len(b) > 0 {
		n := int(b[0])
		if len(b) < 1+n {
			return nil, liberr.New(liberr.CodeMalformedSDOption, "someip: truncated configuration entry")
		}
		kv := string(b[1 : 1+n])
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
		b = b[1+n:]
	}
	return out, nil
}

// NewSelectiveOption lists the client ids permitted to see a selective
// event's next notification. This option type is not part of the public
// AUTOSAR catalogue; it is local to this implementation's
// SUBSCRIBE_EVENTGROUP_ACK framing.
func NewSelectiveOption(clientIDs []uint16) Option {
	buf := make([]byte, len(clientIDs)*2)
	for i, c := range clientIDs {
		binary.BigEndian.PutUint16(buf[i*2:i*2+2], c)
	}
	return Option{Type: OptionSelective, Payload: buf}
}

func DecodeSelectiveOption(o Option) ([]uint16, error) {
	if len(o.Payload)%2 != 0 {
		return nil, liberr.New(liberr.CodeMalformedSDOption, "someip: selective option payload must be a multiple of 2 bytes")
	}
	out := make([]uint16, len(o.Payload)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(o.Payload[i*2 : i*2+2])
	}
	return out, nil
}
