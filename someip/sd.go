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

	liberr "github.com/COVESA/vsomeip-sub001/errors"
)

// Well-known values identifying the SD channel on top of the SOME/IP
// header.
const (
	SDServiceID        uint16      = 0xFFFF
	SDMethodID         uint16      = 0x8100
	SDInterfaceVersion uint8       = 0x01
	SDMessageType      MessageType = MessageTypeNotification
	SDReturnCode       ReturnCode  = ReturnCodeOK
)

// Flag bits in the SD payload's leading byte.
const (
	FlagReboot          uint8 = 0x80
	FlagUnicastSupport  uint8 = 0x40
)

// EntryType distinguishes service entries from eventgroup entries.
type EntryType uint8

const (
	EntryFindService         EntryType = 0x00
	EntryOfferService        EntryType = 0x01
	EntrySubscribeEventgroup EntryType = 0x06
	EntrySubscribeEventAck   EntryType = 0x07
)

func (t EntryType) IsEventgroup() bool {
	return t == EntrySubscribeEventgroup || t == EntrySubscribeEventAck
}

// entryLength is fixed by the wire format: 16 bytes regardless of kind.
const entryLength = 16

// Entry is one 16-byte SD entry record. For service entries (FindService /
// OfferService) MinorVersion carries the minor version; for eventgroup
// entries (SubscribeEventgroup / SubscribeEventgroupAck) Counter and
// EventgroupID are populated instead and MinorVersion is unused.
type Entry struct {
	Type         EntryType
	Index1       uint8
	Index2       uint8
	NumOptions1  uint8 // low nibble
	NumOptions2  uint8 // low nibble
	ServiceID    uint16
	InstanceID   uint16
	MajorVersion uint8
	TTL          uint32 // 24-bit on the wire
	MinorVersion uint32 // service entries only
	Counter      uint8  // eventgroup entries only, low nibble
	EventgroupID uint16 // eventgroup entries only
}

// Option is one SD option record: an 8-bit type, a reserved byte (bit 0 is
// the discardable flag) and a type-specific payload.
type Option struct {
	Type        OptionType
	Discardable bool
	Payload     []byte
}

type OptionType uint8

const (
	OptionConfiguration   OptionType = 0x01
	OptionIPv4Endpoint    OptionType = 0x04
	OptionIPv6Endpoint    OptionType = 0x06
	OptionIPv4Multicast   OptionType = 0x14
	OptionIPv6Multicast   OptionType = 0x16
	OptionIPv4SDEndpoint  OptionType = 0x24
	OptionIPv6SDEndpoint  OptionType = 0x26
	OptionSelective       OptionType = 0x7F
)

// SDMessage is the decoded body of an SD PDU: flags plus entry and option
// arrays. It travels wrapped in a Message whose Header matches SDServiceID/
// SDMethodID/SDMessageType/SDReturnCode.
type SDMessage struct {
	Reboot          bool
	UnicastSupport  bool
	Entries         []Entry
	Options         []Option
}

// NewSDHeader returns the fixed SOME/IP header every SD PDU carries; only
// ClientID/SessionID vary per-send, tracked by the outbound session counter.
func NewSDHeader(clientID, sessionID uint16) Header {
	return Header{
		ServiceID:        SDServiceID,
		MethodID:         SDMethodID,
		ClientID:         clientID,
		SessionID:        sessionID,
		ProtocolVersion:  ProtocolVersion,
		InterfaceVersion: SDInterfaceVersion,
		MessageType:      SDMessageType,
		ReturnCode:       SDReturnCode,
	}
}

// EncodeSD serialises sd into the payload bytes a SOME/IP Message carries.
func EncodeSD(sd SDMessage) []byte {
	entriesBuf := make([]byte, 0, len(sd.Entries)*entryLength)
	for _, e := range sd.Entries {
		entriesBuf = append(entriesBuf, encodeEntry(e)...)
	}

	optionsBuf := make([]byte, 0)
	for _, o := range sd.Options {
		optionsBuf = append(optionsBuf, encodeOption(o)...)
	}

	buf := make([]byte, 8, 8+len(entriesBuf)+4+len(optionsBuf))
	var flags uint8
	if sd.Reboot {
		flags |= FlagReboot
	}
	if sd.UnicastSupport {
		flags |= FlagUnicastSupport
	}
	buf[0] = flags
	// bytes 1-3 are reserved (left zero)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(entriesBuf)))
	buf = append(buf, entriesBuf...)

	optLen := make([]byte, 4)
	binary.BigEndian.PutUint32(optLen, uint32(len(optionsBuf)))
	buf = append(buf, optLen...)
	buf = append(buf, optionsBuf...)
	return buf
}

// DecodeSD parses an SD payload (the Payload of a Message whose Header
// satisfies IsSD()).
func DecodeSD(b []byte) (SDMessage, error) {
	if len(b) < 8 {
		return SDMessage{}, liberr.New(liberr.CodeMalformedSDEntry, fmt.Sprintf("someip/sd: payload too short for flags+lengths: %d bytes", len(b)))
	}
	flags := b[0]
	entriesLen := binary.BigEndian.Uint32(b[4:8])
	if uint32(len(b)-8) < entriesLen {
		return SDMessage{}, liberr.New(liberr.CodeMalformedSDEntry, "someip/sd: entries_length exceeds payload")
	}
	entriesBuf := b[8 : 8+entriesLen]
	if entriesLen%entryLength != 0 {
		return SDMessage{}, liberr.New(liberr.CodeMalformedSDEntry, fmt.Sprintf("someip/sd: entries_length %d not a multiple of %d", entriesLen, entryLength))
	}

	rest := b[8+entriesLen:]
	if len(rest) < 4 {
		return SDMessage{}, liberr.New(liberr.CodeMalformedSDOption, "someip/sd: missing options_length")
	}
	optionsLen := binary.BigEndian.Uint32(rest[0:4])
	if uint32(len(rest)-4) < optionsLen {
		return SDMessage{}, liberr.New(liberr.CodeMalformedSDOption, "someip/sd: options_length exceeds payload")
	}
	optionsBuf := rest[4 : 4+optionsLen]

	entries := make([]Entry, 0, len(entriesBuf)/entryLength)
	for i := 0; i < len(entriesBuf); i += entryLength {
		e, err := decodeEntry(entriesBuf[i : i+entryLength])
		if err != nil {
			return SDMessage{}, err
		}
		entries = append(entries, e)
	}

	options, err := decodeOptions(optionsBuf)
	if err != nil {
		return SDMessage{}, err
	}

	return SDMessage{
		Reboot:         flags&FlagReboot != 0,
		UnicastSupport: flags&FlagUnicastSupport != 0,
		Entries:        entries,
		Options:        options,
	}, nil
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, entryLength)
	buf[0] = byte(e.Type)
	buf[1] = e.Index1
	buf[2] = e.Index2
	buf[3] = (e.NumOptions1&0x0F)<<4 | (e.NumOptions2 & 0x0F)
	binary.BigEndian.PutUint16(buf[4:6], e.ServiceID)
	binary.BigEndian.PutUint16(buf[6:8], e.InstanceID)
	buf[8] = e.MajorVersion
	putUint24(buf[9:12], e.TTL)
	if e.Type.IsEventgroup() {
		buf[12] = 0
		buf[13] = (e.Counter & 0x0F) << 4
		binary.BigEndian.PutUint16(buf[14:16], e.EventgroupID)
	} else {
		binary.BigEndian.PutUint32(buf[12:16], e.MinorVersion)
	}
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) != entryLength {
		return Entry{}, liberr.New(liberr.CodeMalformedSDEntry, fmt.Sprintf("someip/sd: entry record must be %d bytes, got %d", entryLength, len(b)))
	}
	e := Entry{
		Type:         EntryType(b[0]),
		Index1:       b[1],
		Index2:       b[2],
		NumOptions1:  (b[3] >> 4) & 0x0F,
		NumOptions2:  b[3] & 0x0F,
		ServiceID:    binary.BigEndian.Uint16(b[4:6]),
		InstanceID:   binary.BigEndian.Uint16(b[6:8]),
		MajorVersion: b[8],
		TTL:          uint24(b[9:12]),
	}
	if e.Type.IsEventgroup() {
		e.Counter = (b[13] >> 4) & 0x0F
		e.EventgroupID = binary.BigEndian.Uint16(b[14:16])
	} else {
		e.MinorVersion = binary.BigEndian.Uint32(b[12:16])
	}
	return e, nil
}

// encodeOption lays out {length(2), type(1), reserved(1), payload...}; the
// length field covers type+reserved+payload, not itself.
func encodeOption(o Option) []byte {
	length := uint16(2 + len(o.Payload))
	buf := make([]byte, 4, 4+len(o.Payload))
	binary.BigEndian.PutUint16(buf[0:2], length)
	buf[2] = byte(o.Type)
	if o.Discardable {
		buf[3] = 0x80
	}
	buf = append(buf, o.Payload...)
	return buf
}

func decodeOptions(b []byte) ([]Option, error) {
	options := make([]Option, 0)
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, liberr.New(liberr.CodeMalformedSDOption, "someip/sd: truncated option header")
		}
		length := binary.BigEndian.Uint16(b[0:2])
		if int(length) < 2 || len(b) < 2+int(length) {
			return nil, liberr.New(liberr.CodeMalformedSDOption, fmt.Sprintf("someip/sd: option length %d exceeds remaining buffer", length))
		}
		optType := OptionType(b[2])
		reserved := b[3]
		payload := make([]byte, int(length)-2)
		copy(payload, b[4:2+int(length)])
		options = append(options, Option{Type: optType, Discardable: reserved&0x80 != 0, Payload: payload})
		b = b[2+int(length):]
	}
	return options, nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
