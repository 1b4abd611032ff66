package dnsd

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// DNS wire constants for the fixed response we emit.
const (
	// HeaderSize is the fixed DNS header length.
	HeaderSize = 12
	// ResponseFlags: QR=1 (response), RD=1, RA=1, RCODE=0.
	ResponseFlags = 0x8180
	// AnswerTTL is the time-to-live of the answer record, in seconds.
	// Kept short so clients re-query quickly once the portal goes away.
	AnswerTTL = 60
	// MaxLabelLen is the longest legal DNS label.
	MaxLabelLen = 63

	typeA   = 0x0001
	classIN = 0x0001
)

// Query is a parsed DNS question datagram.
type Query struct {
	ID     uint16 // transaction id, echoed into the answer
	Domain string // dotted question name, for logging
	Raw    []byte // original datagram bytes

	// question is the raw question section (QNAME + QTYPE + QCLASS),
	// copied verbatim into the response.
	question []byte
}

// ParseQuery parses a minimal DNS query: fixed 12-byte header followed by
// exactly one question. Anything else is malformed and the caller drops
// the datagram.
func ParseQuery(data []byte) (*Query, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("datagram too short: %d bytes", len(data))
	}

	id := binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	qdCount := binary.BigEndian.Uint16(data[4:6])

	// QR bit set means this is already a response, not a query.
	if flags&0x8000 != 0 {
		return nil, fmt.Errorf("datagram is a response, not a query")
	}
	if qdCount != 1 {
		return nil, fmt.Errorf("unsupported question count %d", qdCount)
	}

	// Walk the QNAME labels.
	var parts []string
	off := HeaderSize
	for {
		if off >= len(data) {
			return nil, fmt.Errorf("truncated question name")
		}
		length := int(data[off])
		off++
		if length == 0 {
			break
		}
		if length > MaxLabelLen {
			return nil, fmt.Errorf("label length %d exceeds maximum", length)
		}
		if off+length > len(data) {
			return nil, fmt.Errorf("label runs past end of datagram")
		}
		parts = append(parts, string(data[off:off+length]))
		off += length
	}

	// QTYPE + QCLASS.
	if off+4 > len(data) {
		return nil, fmt.Errorf("truncated question type/class")
	}
	off += 4

	return &Query{
		ID:       id,
		Domain:   strings.Join(parts, "."),
		Raw:      data,
		question: data[HeaderSize:off],
	}, nil
}

// Answer builds the response datagram binding the queried name to ip,
// whatever the name was: same transaction id, response flags set, the
// original question echoed, and a single A record pointing at the device.
func (q *Query) Answer(ip net.IP) ([]byte, error) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("answer address %v is not IPv4", ip)
	}

	packet := make([]byte, 0, HeaderSize+len(q.question)+16)

	// Header: id, flags, QDCOUNT=1, ANCOUNT=1, NSCOUNT=0, ARCOUNT=0.
	packet = binary.BigEndian.AppendUint16(packet, q.ID)
	packet = binary.BigEndian.AppendUint16(packet, ResponseFlags)
	packet = binary.BigEndian.AppendUint16(packet, 1)
	packet = binary.BigEndian.AppendUint16(packet, 1)
	packet = binary.BigEndian.AppendUint16(packet, 0)
	packet = binary.BigEndian.AppendUint16(packet, 0)

	// Original question section.
	packet = append(packet, q.question...)

	// Answer record: compression pointer to the name at offset 12,
	// TYPE A, CLASS IN, TTL, RDLENGTH 4, then the address.
	packet = append(packet, 0xC0, 0x0C)
	packet = binary.BigEndian.AppendUint16(packet, typeA)
	packet = binary.BigEndian.AppendUint16(packet, classIN)
	packet = binary.BigEndian.AppendUint32(packet, AnswerTTL)
	packet = binary.BigEndian.AppendUint16(packet, 4)
	packet = append(packet, v4...)

	return packet, nil
}
