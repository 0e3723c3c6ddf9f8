/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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
 */

// Package protocol enumerates the transport protocols the endpoint layer
// (C1/C2) can bind, listen or connect with.
package protocol

import "fmt"

// NetworkProtocol classifies a socket's address family and transport.
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkTCP
	NetworkTCP4
	NetworkTCP6
	NetworkUDP
	NetworkUDP4
	NetworkUDP6
	NetworkUnix
	NetworkUnixGram
)

func (n NetworkProtocol) String() string {
	switch n {
	case NetworkTCP:
		return "tcp"
	case NetworkTCP4:
		return "tcp4"
	case NetworkTCP6:
		return "tcp6"
	case NetworkUDP:
		return "udp"
	case NetworkUDP4:
		return "udp4"
	case NetworkUDP6:
		return "udp6"
	case NetworkUnix:
		return "unix"
	case NetworkUnixGram:
		return "unixgram"
	default:
		return ""
	}
}

// IsReliable reports whether the protocol is stream-oriented (TCP/unix
// stream), the is_reliable classification for an endpoint.
func (n NetworkProtocol) IsReliable() bool {
	switch n {
	case NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkUnix:
		return true
	default:
		return false
	}
}

// IsUnixDomain reports whether the protocol addresses a filesystem path
// rather than an (ip, port) tuple.
func (n NetworkProtocol) IsUnixDomain() bool {
	return n == NetworkUnix || n == NetworkUnixGram
}

func Parse(s string) (NetworkProtocol, error) {
	switch s {
	case "", "empty":
		return NetworkEmpty, nil
	case "tcp":
		return NetworkTCP, nil
	case "tcp4":
		return NetworkTCP4, nil
	case "tcp6":
		return NetworkTCP6, nil
	case "udp":
		return NetworkUDP, nil
	case "udp4":
		return NetworkUDP4, nil
	case "udp6":
		return NetworkUDP6, nil
	case "unix":
		return NetworkUnix, nil
	case "unixgram":
		return NetworkUnixGram, nil
	default:
		return NetworkEmpty, fmt.Errorf("protocol: unknown network %q", s)
	}
}

func (n NetworkProtocol) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *NetworkProtocol) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// ReliabilityMode is the eventgroup-level reliability configuration: an
// eventgroup may be fixed to one transport, both, or left to auto-detect
// from the first event/offer observed.
type ReliabilityMode uint8

const (
	ReliabilityAuto ReliabilityMode = iota
	ReliabilityReliable
	ReliabilityUnreliable
	ReliabilityBoth
)

func (r ReliabilityMode) String() string {
	switch r {
	case ReliabilityReliable:
		return "reliable"
	case ReliabilityUnreliable:
		return "unreliable"
	case ReliabilityBoth:
		return "both"
	default:
		return "auto"
	}
}
