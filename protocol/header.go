package protocol

import "encoding/binary"

// Flags are the four header bits spec.md §4.1 defines.
type Flags byte

const (
	FlagZerocoded    Flags = 0x80
	FlagReliable     Flags = 0x40
	FlagResent       Flags = 0x20
	FlagAppendedAcks Flags = 0x10
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Header is the packet header minus its message id: flags, sequence id,
// and an opaque extra-header blob (6 bytes plus the blob on the wire).
// The message id is decoded separately because its width (1/3/4 bytes)
// depends on its own content.
type Header struct {
	Flags      Flags
	Sequence   uint32
	ExtraBytes []byte
}

// ParseDatagram splits a raw inbound UDP datagram into its header, the
// appended-ack trailer (if present), and the remaining message-id+payload
// bytes (still zerocoded if Flags.Has(FlagZerocoded)).
//
// Per spec.md §9 ("appended ACKs must always be honored even when the
// containing packet fails to parse"), the trailer is stripped and parsed
// before anything else, so a malformed header or payload never prevents
// ACK processing.
func ParseDatagram(data []byte) (hdr Header, appendedAcks []uint32, rest []byte, err error) {
	if len(data) < 6 {
		return Header{}, nil, nil, newError(MalformedHeader, "datagram too short (%d bytes)", len(data))
	}

	flags := Flags(data[0])
	body := data

	if flags.Has(FlagAppendedAcks) {
		if len(body) < 1 {
			return Header{}, nil, nil, newError(MalformedHeader, "missing ack trailer")
		}
		count := int(body[len(body)-1])
		trailerLen := 1 + count*4
		if len(body) < trailerLen {
			return Header{}, nil, nil, newError(MalformedHeader, "ack trailer longer than datagram")
		}
		acksStart := len(body) - trailerLen
		appendedAcks = make([]uint32, count)
		for i := 0; i < count; i++ {
			off := acksStart + i*4
			appendedAcks[i] = binary.BigEndian.Uint32(body[off : off+4])
		}
		body = body[:acksStart]
	}

	if len(body) < 6 {
		return Header{}, appendedAcks, nil, newError(MalformedHeader, "datagram too short after ack trailer")
	}

	seq := binary.BigEndian.Uint32(body[1:5])
	extraLen := int(body[5])
	if len(body) < 6+extraLen {
		return Header{}, appendedAcks, nil, newError(MalformedHeader, "extra header truncated")
	}
	extra := append([]byte(nil), body[6:6+extraLen]...)

	hdr = Header{Flags: flags, Sequence: seq, ExtraBytes: extra}
	rest = body[6+extraLen:]
	return hdr, appendedAcks, rest, nil
}

// SerializeDatagram writes the header, message-id+payload bytes (already
// zerocode-compacted if hdr.Flags has FlagZerocoded), and the appended-ack
// trailer, producing a complete outbound datagram.
func SerializeDatagram(hdr Header, messageAndPayload []byte, appendedAcks []uint32) []byte {
	w := NewWriter()
	w.U8(uint8(hdr.Flags))
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], hdr.Sequence)
	w.Raw(seqBuf[:])
	w.U8(uint8(len(hdr.ExtraBytes)))
	w.Raw(hdr.ExtraBytes)
	w.Raw(messageAndPayload)

	if hdr.Flags.Has(FlagAppendedAcks) {
		for _, id := range appendedAcks {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], id)
			w.Raw(b[:])
		}
		w.U8(uint8(len(appendedAcks)))
	}
	return w.Bytes()
}
