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

// Package ipc implements the local command-frame codec used between the
// routing host and the per-process routing client stubs that connect to
// it (the command table): a 1-byte command code, a 2-byte sender
// client id, a 4-byte little-endian payload length, then the payload.
package ipc

import (
	"encoding/binary"
	"fmt"
)

// Command identifies one local IPC command code.
type Command uint8

const (
	CmdAssignClient Command = iota + 1
	CmdAssignClientAck
	CmdRegisterApplication
	CmdDeregisterApplication
	CmdRegisteredAck
	CmdRoutingInfo
	CmdPing
	CmdPong
	CmdOfferService
	CmdStopOfferService
	CmdRequestService
	CmdReleaseService
	CmdSend
	CmdNotify
	CmdNotifyOne
	CmdSubscribe
	CmdUnsubscribe
	CmdSubscribeAck
	CmdSubscribeNack
	CmdUnsubscribeAck
	CmdRegisterEvent
	CmdUnregisterEvent
	CmdResendProvidedEvents
	CmdUpdateSecurityPolicy
	CmdUpdateSecurityPolicyInt
	CmdUpdateSecurityPolicyResponse
	CmdRemoveSecurityPolicy
	CmdRemoveSecurityPolicyResponse
	CmdDistributeSecurityPolicies
	CmdUpdateSecurityCredentials
	CmdOfferedServicesRequest
	CmdOfferedServicesResponse
)

// frameHeaderLength is the fixed {type(1), client(2), size(4)} prefix.
const frameHeaderLength = 7

// Frame is one decoded local IPC command frame.
type Frame struct {
	Type    Command
	Client  uint16
	Payload []byte
}

// Encode serialises f into its wire representation.
func Encode(f Frame) []byte {
	buf := make([]byte, frameHeaderLength, frameHeaderLength+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.LittleEndian.PutUint16(buf[1:3], f.Client)
	binary.LittleEndian.PutUint32(buf[3:7], uint32(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return buf
}

// Decode parses a single frame from the head of b, returning the number
// of bytes consumed. It returns (Frame{}, 0, nil) when b does not yet
// hold a complete frame — the caller should read more bytes and retry.
func Decode(b []byte) (Frame, int, error) {
	if len(b) < frameHeaderLength {
		return Frame{}, 0, nil
	}
	size := binary.LittleEndian.Uint32(b[3:7])
	total := frameHeaderLength + int(size)
	if total > len(b) {
		return Frame{}, 0, nil
	}
	f := Frame{
		Type:   Command(b[0]),
		Client: binary.LittleEndian.Uint16(b[1:3]),
	}
	if size > 0 {
		f.Payload = append([]byte(nil), b[frameHeaderLength:total]...)
	}
	return f, total, nil
}

// Extract feeds buf (an accumulating receive buffer) and returns every
// complete frame currently available plus the unconsumed remainder.
func Extract(buf []byte) ([]Frame, []byte, error) {
	var frames []Frame
	for {
		f, n, err := Decode(buf)
		if err != nil {
			return frames, buf, err
		}
		if n == 0 {
			return frames, buf, nil
		}
		frames = append(frames, f)
		buf = buf[n:]
	}
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

var commandNames = map[Command]string{
	CmdAssignClient:                  "ASSIGN_CLIENT",
	CmdAssignClientAck:               "ASSIGN_CLIENT_ACK",
	CmdRegisterApplication:           "REGISTER_APPLICATION",
	CmdDeregisterApplication:         "DEREGISTER_APPLICATION",
	CmdRegisteredAck:                 "REGISTERED_ACK",
	CmdRoutingInfo:                   "ROUTING_INFO",
	CmdPing:                          "PING",
	CmdPong:                          "PONG",
	CmdOfferService:                  "OFFER_SERVICE",
	CmdStopOfferService:              "STOP_OFFER_SERVICE",
	CmdRequestService:                "REQUEST_SERVICE",
	CmdReleaseService:                "RELEASE_SERVICE",
	CmdSend:                          "SEND",
	CmdNotify:                        "NOTIFY",
	CmdNotifyOne:                     "NOTIFY_ONE",
	CmdSubscribe:                     "SUBSCRIBE",
	CmdUnsubscribe:                   "UNSUBSCRIBE",
	CmdSubscribeAck:                  "SUBSCRIBE_ACK",
	CmdSubscribeNack:                 "SUBSCRIBE_NACK",
	CmdUnsubscribeAck:                "UNSUBSCRIBE_ACK",
	CmdRegisterEvent:                 "REGISTER_EVENT",
	CmdUnregisterEvent:               "UNREGISTER_EVENT",
	CmdResendProvidedEvents:          "RESEND_PROVIDED_EVENTS",
	CmdUpdateSecurityPolicy:          "UPDATE_SECURITY_POLICY",
	CmdUpdateSecurityPolicyInt:       "UPDATE_SECURITY_POLICY_INT",
	CmdUpdateSecurityPolicyResponse:  "UPDATE_SECURITY_POLICY_RESPONSE",
	CmdRemoveSecurityPolicy:          "REMOVE_SECURITY_POLICY",
	CmdRemoveSecurityPolicyResponse:  "REMOVE_SECURITY_POLICY_RESPONSE",
	CmdDistributeSecurityPolicies:    "DISTRIBUTE_SECURITY_POLICIES",
	CmdUpdateSecurityCredentials:     "UPDATE_SECURITY_CREDENTIALS",
	CmdOfferedServicesRequest:        "OFFERED_SERVICES_REQUEST",
	CmdOfferedServicesResponse:       "OFFERED_SERVICES_RESPONSE",
}
