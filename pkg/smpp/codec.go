package smpp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Encode serializes a PDU to wire bytes, filling in command_length from the
// actual encoded size.
func Encode(p *PDU) ([]byte, error) {
	mandatory, err := p.Body.MarshalMandatory()
	if err != nil {
		var ee *EncodingError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &EncodingError{Err: err}
	}

	tlvBytes, err := encodeTLVs(p)
	if err != nil {
		return nil, err
	}

	length := HeaderLen + len(mandatory) + len(tlvBytes)
	p.Header.CommandLength = uint32(length)
	p.Header.CommandID = p.Body.CommandID()

	out := make([]byte, 0, length)
	out = append(out, p.Header.marshal()...)
	out = append(out, mandatory...)
	out = append(out, tlvBytes...)
	return out, nil
}

func encodeTLVs(p *PDU) ([]byte, error) {
	var out []byte

	names := make([]string, 0, len(p.named))
	for name := range p.named {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return p.named[names[i]].desc.Tag < p.named[names[j]].desc.Tag })

	for _, name := range names {
		t := p.named[name]
		if len(t.value) > 0xFFFF {
			return nil, &EncodingError{Field: name, Err: fmt.Errorf("optional parameter value too long: %d bytes", len(t.value))}
		}
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], t.desc.Tag)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(t.value)))
		out = append(out, hdr[:]...)
		out = append(out, t.value...)
	}

	extra := append([]RawTLV(nil), p.extra...)
	sort.Slice(extra, func(i, j int) bool { return extra[i].Tag < extra[j].Tag })
	for _, t := range extra {
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], t.Tag)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(t.Value)))
		out = append(out, hdr[:]...)
		out = append(out, t.Value...)
	}
	return out, nil
}

// newBodyForCommand allocates a zero-valued Body for a known command id, or
// nil if the id isn't one this library understands. Unrecognized command
// ids are the caller's cue to respond with generic_nack.
func newBodyForCommand(commandID uint32) Body {
	switch commandID {
	case CommandBindTransmitter:
		return &BindRequest{commandID: commandID}
	case CommandBindReceiver:
		return &BindRequest{commandID: commandID}
	case CommandBindTransceiver:
		return &BindRequest{commandID: commandID}
	case CommandBindTransmitterResp:
		return &BindResponse{commandID: commandID}
	case CommandBindReceiverResp:
		return &BindResponse{commandID: commandID}
	case CommandBindTransceiverResp:
		return &BindResponse{commandID: commandID}
	case CommandOutbind:
		return &Outbind{}
	case CommandUnbind:
		return &Unbind{}
	case CommandUnbindResp:
		return &UnbindResp{}
	case CommandEnquireLink:
		return &EnquireLink{}
	case CommandEnquireLinkResp:
		return &EnquireLinkResp{}
	case CommandGenericNack:
		return &GenericNack{}
	case CommandSubmitSM:
		return &SubmitSM{}
	case CommandSubmitSMResp:
		return &SubmitSMResp{}
	case CommandDeliverSM:
		return &DeliverSM{}
	case CommandDeliverSMResp:
		return &DeliverSMResp{}
	case CommandDataSM:
		return &DataSM{}
	case CommandDataSMResp:
		return &DataSMResp{}
	case CommandSubmitMulti:
		return &SubmitMulti{}
	case CommandSubmitMultiResp:
		return &SubmitMultiResp{}
	case CommandQuerySM:
		return &QuerySM{}
	case CommandQuerySMResp:
		return &QuerySMResp{}
	case CommandReplaceSM:
		return &ReplaceSM{}
	case CommandReplaceSMResp:
		return &ReplaceSMResp{}
	case CommandCancelSM:
		return &CancelSM{}
	case CommandCancelSMResp:
		return &CancelSMResp{}
	case CommandAlertNotification:
		return &AlertNotification{}
	default:
		return nil
	}
}

// Decode parses a complete PDU frame (header through the final optional
// parameter) from data. len(data) must equal command_length.
func Decode(data []byte) (*PDU, error) {
	hdr, err := unmarshalHeader(data)
	if err != nil {
		return nil, &DecodingError{Err: err}
	}
	if int(hdr.CommandLength) != len(data) {
		return nil, &DecodingError{CommandID: hdr.CommandID, Sequence: hdr.SequenceNumber,
			Err: fmt.Errorf("command_length %d does not match frame size %d", hdr.CommandLength, len(data))}
	}

	body := newBodyForCommand(hdr.CommandID)
	if body == nil {
		return nil, &DecodingError{CommandID: hdr.CommandID, Sequence: hdr.SequenceNumber,
			Err: fmt.Errorf("unrecognized command id 0x%08X", hdr.CommandID)}
	}

	rest := data[HeaderLen:]
	consumed, err := body.UnmarshalMandatory(rest)
	if err != nil {
		return nil, &DecodingError{CommandID: hdr.CommandID, Sequence: hdr.SequenceNumber, Err: err}
	}

	p := &PDU{Header: hdr, Body: body, named: map[string]namedTLV{}}
	if err := decodeTLVs(p, rest[consumed:]); err != nil {
		return nil, &DecodingError{CommandID: hdr.CommandID, Sequence: hdr.SequenceNumber, Err: err}
	}
	return p, nil
}

func decodeTLVs(p *PDU, data []byte) error {
	cs, hasSchema := p.schema()
	for len(data) > 0 {
		if len(data) < 4 {
			return fmt.Errorf("truncated optional parameter header")
		}
		tag := binary.BigEndian.Uint16(data[0:2])
		length := binary.BigEndian.Uint16(data[2:4])
		data = data[4:]
		if len(data) < int(length) {
			return fmt.Errorf("optional parameter tag 0x%04X declares length %d past end of body", tag, length)
		}
		value := append([]byte(nil), data[:length]...)
		data = data[length:]

		if hasSchema {
			if d, ok := cs.TagDescriptor(tag); ok {
				p.named[d.Name] = namedTLV{desc: d, value: value}
				continue
			}
		}
		p.extra = append(p.extra, RawTLV{Tag: tag, Value: value})
	}
	return nil
}

// FrameLength reads just the 4-byte command_length prefix that begins every
// PDU, without consuming the rest of the frame.
func FrameLength(r io.Reader) (uint32, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(lenBuf[:]), nil
}

// ReadPDU performs a two-step framed receive: read the 4-byte
// command_length, then read exactly that many bytes total (length prefix
// included) before handing the full frame to Decode. It loops on
// io.ReadFull so a PDU arriving split across several TCP segments is
// reassembled transparently.
func ReadPDU(r *bufio.Reader) (*PDU, error) {
	lenBuf, err := r.Peek(4)
	if err != nil {
		return nil, &ConnectionError{Op: "read pdu", Err: err}
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length < HeaderLen {
		// consume the bad frame so a caller retrying doesn't spin on it
		io.CopyN(io.Discard, r, int64(minInt(int(length), 4)))
		return nil, &DecodingError{Err: fmt.Errorf("command_length %d smaller than header size %d", length, HeaderLen)}
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, &ConnectionError{Op: "read pdu", Err: err}
	}
	return Decode(frame)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
