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

// Package someip implements the wire codec for the SOME/IP PDU and the
// SOME/IP-SD PDU carried on top of it. It never touches a socket; it
// only turns bytes into structured messages and back, byte-identically on
// round-trip for the SD subset (the "Parsing an SD message, then
// re-serialising... yields a byte-identical payload").
package someip

import (
	"encoding/binary"
	"fmt"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
)

// HeaderLength is the fixed 16-byte SOME/IP header: service, method,
// length, client, session, protocol-version, interface-version,
// message-type, return-code.
const HeaderLength = 16

// lengthFieldTail is the number of header bytes counted inside Length
// itself: client(2) + session(2) + protocol-version(1) + interface-version(1)
// + message-type(1) + return-code(1).
const lengthFieldTail = 8

const (
	ProtocolVersion = 0x01
)

// MessageType classifies a SOME/IP PDU; the SD channel always uses
// MessageTypeNotification (0x02).
type MessageType uint8

const (
	MessageTypeRequest            MessageType = 0x00
	MessageTypeRequestNoReturn    MessageType = 0x01
	MessageTypeNotification       MessageType = 0x02
	MessageTypeResponse           MessageType = 0x80
	MessageTypeError              MessageType = 0x81
	MessageTypeRequestAck         MessageType = 0x40
	MessageTypeRequestNoReturnAck MessageType = 0x41
	MessageTypeNotificationAck    MessageType = 0x42
	MessageTypeResponseAck        MessageType = 0xC0
	MessageTypeErrorAck           MessageType = 0xC1
)

// ReturnCode classifies the outcome of a request/response exchange.
type ReturnCode uint8

const (
	ReturnCodeOK                 ReturnCode = 0x00
	ReturnCodeNotOK              ReturnCode = 0x01
	ReturnCodeUnknownService     ReturnCode = 0x02
	ReturnCodeUnknownMethod      ReturnCode = 0x03
	ReturnCodeNotReady           ReturnCode = 0x04
	ReturnCodeNotReachable       ReturnCode = 0x05
	ReturnCodeTimeout            ReturnCode = 0x06
	ReturnCodeWrongProtoVersion  ReturnCode = 0x07
	ReturnCodeWrongInterface     ReturnCode = 0x08
	ReturnCodeMalformedMessage   ReturnCode = 0x09
	ReturnCodeWrongMessageType   ReturnCode = 0x0A
)

// Header is the fixed portion of every SOME/IP PDU.
type Header struct {
	ServiceID        uint16
	MethodID         uint16
	Length           uint32
	ClientID         uint16
	SessionID        uint16
	ProtocolVersion  uint8
	InterfaceVersion uint8
	MessageType      MessageType
	ReturnCode       ReturnCode
}

// Message is a full SOME/IP PDU: header plus payload. Length is derived
// from len(Payload) on Encode and need not be kept in sync manually.
type Message struct {
	Header  Header
	Payload []byte
}

// IsSD reports whether m carries the well-known service discovery method,
// the marker used throughout the package to route a decoded Message into
// DecodeSD.
func (h Header) IsSD() bool {
	return h.ServiceID == SDServiceID && h.MethodID == SDMethodID
}

// Encode serialises m into a freshly allocated 16-byte-header-prefixed PDU.
func Encode(m Message) []byte {
	buf := make([]byte, HeaderLength+len(m.Payload))
	binary.BigEndian.PutUint16(buf[0:2], m.Header.ServiceID)
	binary.BigEndian.PutUint16(buf[2:4], m.Header.MethodID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(lengthFieldTail+len(m.Payload)))
	binary.BigEndian.PutUint16(buf[8:10], m.Header.ClientID)
	binary.BigEndian.PutUint16(buf[10:12], m.Header.SessionID)
	buf[12] = m.Header.ProtocolVersion
	buf[13] = m.Header.InterfaceVersion
	buf[14] = byte(m.Header.MessageType)
	buf[15] = byte(m.Header.ReturnCode)
	copy(buf[16:], m.Payload)
	return buf
}

// Decode parses one PDU from b. It requires b to hold exactly one message
// (HeaderLength + payload); callers that frame a stream (endpoint package)
// are responsible for slicing b to that length first.
func Decode(b []byte) (Message, error) {
	if len(b) < HeaderLength {
		return Message{}, liberr.New(liberr.CodeMalformedHeader, fmt.Sprintf("someip: short header: %d bytes", len(b)))
	}
	h := Header{
		ServiceID:        binary.BigEndian.Uint16(b[0:2]),
		MethodID:         binary.BigEndian.Uint16(b[2:4]),
		Length:           binary.BigEndian.Uint32(b[4:8]),
		ClientID:         binary.BigEndian.Uint16(b[8:10]),
		SessionID:        binary.BigEndian.Uint16(b[10:12]),
		ProtocolVersion:  b[12],
		InterfaceVersion: b[13],
		MessageType:      MessageType(b[14]),
		ReturnCode:       ReturnCode(b[15]),
	}
	if h.Length < lengthFieldTail {
		return Message{}, liberr.New(liberr.CodeMalformedHeader, fmt.Sprintf("someip: length field %d below minimum %d", h.Length, lengthFieldTail))
	}
	payloadLen := int(h.Length) - lengthFieldTail
	if len(b) < HeaderLength+payloadLen {
		return Message{}, liberr.New(liberr.CodeTruncatedMessage, fmt.Sprintf("someip: declared length %d exceeds buffer %d", h.Length, len(b)))
	}
	payload := make([]byte, payloadLen)
	copy(payload, b[HeaderLength:HeaderLength+payloadLen])
	return Message{Header: h, Payload: payload}, nil
}

// TotalLength returns the number of bytes the framed PDU in b occupies,
// reading only the 32-bit length field at offset 4 — the value the
// endpoint layer's stream framer needs before a full header is available.
func TotalLength(b []byte) (int, error) {
	if len(b) < 8 {
		return 0, liberr.New(liberr.CodeMalformedHeader, "someip: fewer than 8 bytes available")
	}
	length := binary.BigEndian.Uint32(b[4:8])
	if length < lengthFieldTail {
		return 0, liberr.New(liberr.CodeMalformedHeader, fmt.Sprintf("someip: length field %d below minimum %d", length, lengthFieldTail))
	}
	return HeaderLength + int(length) - lengthFieldTail, nil
}
