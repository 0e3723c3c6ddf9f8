/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package errors

// Sentinel codes grouped by the error taxonomy: protocol-level,
// policy-level, resource-level, peer-level, fatal. Each is a distinct
// CodeError within its owning component's range so HasCode lets callers
// classify without string matching.
const (
	// Wire / protocol-level (C1, C6)
	CodeMalformedHeader   = MinPkgWire + 1
	CodeTruncatedMessage  = MinPkgWire + 2
	CodeBadMagicCookie    = MinPkgWire + 3
	CodeMalformedSDEntry  = MinPkgWire + 4
	CodeMalformedSDOption = MinPkgWire + 5

	// Endpoint layer (C1) resource-level
	CodeSendTimeout    = MinPkgEndpoint + 1
	CodeSendQueueLimit = MinPkgEndpoint + 2
	CodeMessageTooBig  = MinPkgEndpoint + 3
	CodeConnectionLost = MinPkgEndpoint + 4

	// Endpoint manager (C2) resource-level
	CodeBindConflict       = MinPkgEndpointManager + 1
	CodeNoClientPort       = MinPkgEndpointManager + 2
	CodeUnknownEndpoint    = MinPkgEndpointManager + 3
	CodeEndpointInUse      = MinPkgEndpointManager + 4
	CodeSocketActivation   = MinPkgEndpointManager + 5
	CodeMulticastJoinError = MinPkgEndpointManager + 6

	// Event/eventgroup registry (C3)
	CodeUnknownEvent      = MinPkgEventRegistry + 1
	CodeUnknownEventgroup = MinPkgEventRegistry + 2
	CodeSelectiveConflict = MinPkgEventRegistry + 3

	// Routing host (C4) policy-level / fatal
	CodeAccessDenied       = MinPkgRoutingHost + 1
	CodeRoutingRootExhaust = MinPkgRoutingHost + 2
	CodeUnknownClient      = MinPkgRoutingHost + 3
	CodeServiceUnavailable = MinPkgRoutingHost + 4
	CodeMalformedFrame     = MinPkgRoutingHost + 5

	// Routing client (C5) fatal / resource-level
	CodeAssignClientTimeout = MinPkgRoutingClient + 1
	CodeRegisterTimeout     = MinPkgRoutingClient + 2
	CodeHostLost            = MinPkgRoutingClient + 3
	CodeCredentialsFailed   = MinPkgRoutingClient + 4

	// Service discovery (C6) peer-level
	CodeSubscribeNacked = MinPkgDiscovery + 1
	CodeRebootDetected  = MinPkgDiscovery + 2
	CodeTTLExpired      = MinPkgDiscovery + 3
	CodeSecurityRejectedEndpoint = MinPkgDiscovery + 4

	// Config (ambient)
	CodeInvalidSettings = MinPkgConfig + 1
)
