package protocol

// Packet is a fully decoded, immutable inbound or outbound message: a
// header, its message id, and the (already zerocode-expanded) payload
// bytes following the message id. Callers parse Payload with a Reader
// using the schema registered for ID.Number.
type Packet struct {
	Header  Header
	ID      MessageID
	Payload []byte
}

// Decode parses a raw UDP datagram into a Packet and any appended ACK
// sequence ids. Appended acks are always returned, even if the payload
// itself is malformed, per spec.md §9.
func Decode(data []byte) (pkt Packet, appendedAcks []uint32, err error) {
	hdr, acks, rest, err := ParseDatagram(data)
	if err != nil {
		return Packet{}, acks, err
	}

	id, consumed, err := decodeMessageID(rest)
	if err != nil {
		return Packet{}, acks, err
	}
	payload := rest[consumed:]

	if hdr.Flags.Has(FlagZerocoded) {
		payload, err = ZeroDecode(payload)
		if err != nil {
			return Packet{}, acks, err
		}
	}

	return Packet{Header: hdr, ID: id, Payload: payload}, acks, nil
}

// Encode builds the wire bytes for pkt, zerocoding the payload whenever
// pkt.Header.Flags has FlagZerocoded, and appending acks if
// pkt.Header.Flags has FlagAppendedAcks. Encode does not inspect the
// payload's first byte; ShouldZerocode is the check that refuses a
// payload beginning with 0xFF.
func Encode(pkt Packet, appendedAcks []uint32) []byte {
	idw := NewWriter()
	pkt.ID.Encode(idw)

	payload := pkt.Payload
	hdr := pkt.Header
	if hdr.Flags.Has(FlagZerocoded) {
		payload = ZeroEncode(payload)
	}

	body := append(idw.Bytes(), payload...)
	return SerializeDatagram(hdr, body, appendedAcks)
}

// ShouldZerocode reports whether zerocoding payload is beneficial and
// legal: beneficial if it contains at least one zero byte, legal if it
// does not begin with 0xFF (spec.md §4.2 step 2).
func ShouldZerocode(payload []byte) bool {
	if len(payload) == 0 || payload[0] == 0xFF {
		return false
	}
	for _, b := range payload {
		if b == 0 {
			return true
		}
	}
	return false
}
