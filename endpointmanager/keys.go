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

// Package endpointmanager owns every transport-facing endpoint: server
// endpoints indexed by (port, reliable), remote client endpoints indexed by
// (address, port, reliable, partition), the local routing root, and the
// multicast join/leave worker. It replaces the nested five-level std::map
// and recursive mutex of the original with flat maps keyed by value tuples
// and a plain mutex that is never held across a callback invocation.
package endpointmanager

// ServiceInstance identifies a (service, instance) pair routed through an
// endpoint, used to report availability on connect/disconnect.
type ServiceInstance struct {
	Service  uint16
	Instance uint16
}

// ServerKey indexes server (remote-facing) endpoints; : "Server
// endpoints are indexed by (port, reliable)."
type ServerKey struct {
	Port     uint16
	Reliable bool
}

// ClientKey indexes remote client endpoints; : "Remote client
// endpoints are indexed by (remote_address, remote_port, reliable,
// partition_id). Two distinct (service, instance) pairs sharing the same
// partition reuse the same client endpoint."
type ClientKey struct {
	Address     string
	Port        uint16
	Reliable    bool
	PartitionID uint32
}
