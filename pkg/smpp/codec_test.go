package smpp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad hex in test: %v", err)
	}
	return b
}

func TestEncodeSubmitSM(t *testing.T) {
	req := &SubmitSM{ShortMessage: ShortMessage{
		Source:            Address{Addr: NewCString("1000")},
		Dest:              Address{Addr: NewCString("2000")},
		ShortMessageBytes: []byte("hi"),
	}}
	p := NewPDU(req)
	p.Header.SequenceNumber = 7

	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if got := binary.BigEndian.Uint32(data[0:4]); int(got) != len(data) {
		t.Errorf("command_length = %d, frame is %d bytes", got, len(data))
	}
	if got := binary.BigEndian.Uint32(data[4:8]); got != CommandSubmitSM {
		t.Errorf("command_id = 0x%08X, want 0x%08X", got, CommandSubmitSM)
	}
	if got := binary.BigEndian.Uint32(data[8:12]); got != 0 {
		t.Errorf("command_status = %d, want 0", got)
	}
	if got := binary.BigEndian.Uint32(data[12:16]); got != 7 {
		t.Errorf("sequence_number = %d, want 7", got)
	}
}

func TestDecodeSubmitSMResp(t *testing.T) {
	frame := mustDecodeHex(t, "00000011 80000004 0000000e 00000007 00")

	p, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Header.CommandStatus != 14 {
		t.Errorf("command_status = %d, want 14", p.Header.CommandStatus)
	}
	if p.Header.SequenceNumber != 7 {
		t.Errorf("sequence_number = %d, want 7", p.Header.SequenceNumber)
	}
	resp, ok := p.Body.(*SubmitSMResp)
	if !ok {
		t.Fatalf("body is %T, want *SubmitSMResp", p.Body)
	}
	if resp.MessageID.Value != "" {
		t.Errorf("message_id = %q, want empty", resp.MessageID.Value)
	}

	// re-encoding a decoded frame must reproduce it byte for byte
	out, err := Encode(p)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(out, frame) {
		t.Errorf("encode(decode(b)) = %x, want %x", out, frame)
	}
}

func TestRoundTripCommands(t *testing.T) {
	bodies := []Body{
		NewBindTransmitter("sysid", "secret", "SMPP", 1, 1, ""),
		NewBindReceiver("sysid", "secret", "SMPP", 0, 0, "^44"),
		NewBindTransceiver("sysid", "secret", "", 0, 1, ""),
		&Outbind{SystemID: NewCString("smsc"), Password: NewCString("pw")},
		&Unbind{},
		&UnbindResp{},
		&EnquireLink{},
		&EnquireLinkResp{},
		&GenericNack{},
		&SubmitSM{ShortMessage: ShortMessage{
			ServiceType:       NewCString("CMT"),
			Source:            Address{TON: 1, NPI: 1, Addr: NewCString("447700900000")},
			Dest:              Address{TON: 1, NPI: 1, Addr: NewCString("447700900001")},
			RegisteredDelivery: 1,
			DataCoding:        DataCodingUCS2,
			ShortMessageBytes: []byte{0x00, 0x41, 0x00, 0x42},
		}},
		&DeliverSM{ShortMessage: ShortMessage{
			Source:            Address{Addr: NewCString("100")},
			Dest:              Address{Addr: NewCString("200")},
			ESMClass:          EsmClassUDHI,
			ShortMessageBytes: []byte{0x05, 0x00, 0x03, 0x2A, 0x02, 0x01, 'h', 'i'},
		}},
		&DataSM{Source: Address{Addr: NewCString("1")}, Dest: Address{Addr: NewCString("2")}, DataCoding: DataCodingDefault},
		&QuerySM{MessageID: NewCString("abc123"), Source: Address{Addr: NewCString("100")}},
		&QuerySMResp{MessageID: NewCString("abc123"), FinalDate: NewCString(""), MessageState: 2},
		&ReplaceSM{MessageID: NewCString("abc123"), Source: Address{Addr: NewCString("100")}, ShortMessageBytes: []byte("new text")},
		&ReplaceSMResp{},
		&CancelSM{MessageID: NewCString("abc123"), Source: Address{Addr: NewCString("100")}, Dest: Address{Addr: NewCString("200")}},
		&CancelSMResp{},
		&SubmitMulti{
			Source: Address{Addr: NewCString("100")},
			Dests: []DestAddress{
				{Flag: 1, SME: Address{TON: 1, NPI: 1, Addr: NewCString("200")}},
				{Flag: 2, DLName: NewCString("friends")},
			},
			ShortMessageBytes: []byte("hello all"),
		},
		&SubmitMultiResp{MessageID: NewCString("m1"), Unsuccessful: []UnsuccessfulSME{
			{Address: Address{Addr: NewCString("300")}, ErrorStatusCode: StatusInvDstAdr},
		}},
		&AlertNotification{Source: Address{Addr: NewCString("100")}, ESMEAddr: Address{Addr: NewCString("esme")}},
	}

	for _, body := range bodies {
		p := NewPDU(body)
		p.Header.SequenceNumber = 42

		data, err := Encode(p)
		if err != nil {
			t.Errorf("Encode(0x%08X): %v", body.CommandID(), err)
			continue
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Errorf("Decode(0x%08X): %v", body.CommandID(), err)
			continue
		}
		redone, err := Encode(decoded)
		if err != nil {
			t.Errorf("re-Encode(0x%08X): %v", body.CommandID(), err)
			continue
		}
		if !bytes.Equal(data, redone) {
			t.Errorf("0x%08X: round trip mismatch\n first: %x\nsecond: %x", body.CommandID(), data, redone)
		}
	}
}

func TestOptionalParamsRoundTrip(t *testing.T) {
	req := &SubmitSM{ShortMessage: ShortMessage{
		Source: Address{Addr: NewCString("1000")},
		Dest:   Address{Addr: NewCString("2000")},
	}}
	p := NewPDU(req)
	p.Header.SequenceNumber = 9
	if err := p.SetOptionalUint("user_message_reference", 0x1234); err != nil {
		t.Fatalf("SetOptionalUint: %v", err)
	}
	if err := p.SetOptionalString("receipted_message_id", "msg42"); err != nil {
		t.Fatalf("SetOptionalString: %v", err)
	}
	if err := p.SetOptionalBytes("message_payload", []byte("payload")); err != nil {
		t.Fatalf("SetOptionalBytes: %v", err)
	}

	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if v, ok := decoded.OptionalUint("user_message_reference"); !ok || v != 0x1234 {
		t.Errorf("user_message_reference = %d,%v, want 0x1234,true", v, ok)
	}
	if v, ok := decoded.OptionalString("receipted_message_id"); !ok || v != "msg42" {
		t.Errorf("receipted_message_id = %q,%v, want \"msg42\",true", v, ok)
	}
	if v, ok := decoded.OptionalBytes("message_payload"); !ok || !bytes.Equal(v, []byte("payload")) {
		t.Errorf("message_payload = %x,%v", v, ok)
	}
}

func TestUnknownTLVPreserved(t *testing.T) {
	req := &DeliverSM{ShortMessage: ShortMessage{
		Source: Address{Addr: NewCString("1")},
		Dest:   Address{Addr: NewCString("2")},
	}}
	p := NewPDU(req)
	p.Header.SequenceNumber = 1
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// append a vendor TLV no schema knows about
	vendor := []byte{0x14, 0x00, 0x00, 0x03, 0xDE, 0xAD, 0xBF}
	data = append(data, vendor...)
	binary.BigEndian.PutUint32(data[0:4], uint32(len(data)))

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	raw := decoded.RawOptionalParams()
	if len(raw) != 1 {
		t.Fatalf("got %d raw TLVs, want 1", len(raw))
	}
	if raw[0].Tag != 0x1400 || !bytes.Equal(raw[0].Value, []byte{0xDE, 0xAD, 0xBF}) {
		t.Errorf("raw TLV = %04X %x", raw[0].Tag, raw[0].Value)
	}

	// and it survives a re-encode
	redone, err := Encode(decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(data, redone) {
		t.Errorf("unknown TLV lost in round trip")
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
	}{
		{"short header", []byte{0, 0, 0, 8}},
		{"length mismatch", mustDecodeHex(t, "00000020 80000004 00000000 00000001 00")},
		{"unknown command id", mustDecodeHex(t, "00000010 00abcdef 00000000 00000001")},
		{"truncated tlv", mustDecodeHex(t, "00000013 80000004 00000000 00000001 00 0424")},
		{"tlv length past end", mustDecodeHex(t, "00000016 80000004 00000000 00000001 00 0424 00ff 00")},
		{"missing nul", mustDecodeHex(t, "00000011 80000004 00000000 00000001 41")},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.frame); err == nil {
			t.Errorf("%s: Decode succeeded, want error", tc.name)
		} else {
			var de *DecodingError
			if !errors.As(err, &de) {
				t.Errorf("%s: error is %T, want *DecodingError", tc.name, err)
			}
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	cases := []struct {
		name string
		body Body
	}{
		{"oversize short_message", &SubmitSM{ShortMessage: ShortMessage{
			Source:            Address{Addr: NewCString("1")},
			Dest:              Address{Addr: NewCString("2")},
			ShortMessageBytes: bytes.Repeat([]byte{'A'}, 255),
		}}},
		{"oversize system_id", NewBindTransmitter("a-system-id-longer-than-fits", "pw", "", 0, 0, "")},
		{"oversize password", NewBindTransceiver("sys", "password-too-long", "", 0, 0, "")},
		{"oversize destination_addr", &SubmitSM{ShortMessage: ShortMessage{
			Source: Address{Addr: NewCString("1")},
			Dest:   Address{Addr: NewCString("4477009000004477009000")},
		}}},
		{"empty submit_multi dest list", &SubmitMulti{Source: Address{Addr: NewCString("1")}}},
	}
	for _, tc := range cases {
		_, err := Encode(NewPDU(tc.body))
		var ee *EncodingError
		if !errors.As(err, &ee) {
			t.Errorf("%s: Encode = %v, want *EncodingError", tc.name, err)
		}
	}
}

func TestDefineOptionalParam(t *testing.T) {
	const tag = 0x1501

	if err := DefineOptionalParam(CommandSubmitSM, TypeCOctetString, tag, "vendor_ticket_id", 17); err != nil {
		t.Fatalf("first definition: %v", err)
	}
	// identical redefinition is a no-op
	if err := DefineOptionalParam(CommandSubmitSM, TypeCOctetString, tag, "vendor_ticket_id", 17); err != nil {
		t.Fatalf("identical redefinition: %v", err)
	}
	// conflicting redefinition fails
	err := DefineOptionalParam(CommandSubmitSM, TypeInteger, tag, "vendor_ticket_id", 2)
	var re *RegistrationError
	if !errors.As(err, &re) {
		t.Fatalf("conflicting redefinition: got %v, want *RegistrationError", err)
	}

	// the new TLV encodes and decodes by name
	p := NewPDU(&SubmitSM{ShortMessage: ShortMessage{
		Source: Address{Addr: NewCString("1")},
		Dest:   Address{Addr: NewCString("2")},
	}})
	p.Header.SequenceNumber = 1
	if err := p.SetOptionalString("vendor_ticket_id", "TICKET-99"); err != nil {
		t.Fatalf("SetOptionalString: %v", err)
	}
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v, ok := decoded.OptionalString("vendor_ticket_id"); !ok || v != "TICKET-99" {
		t.Errorf("vendor_ticket_id = %q,%v", v, ok)
	}
}

func TestReadPDUFragmented(t *testing.T) {
	p := NewPDU(&EnquireLink{})
	p.Header.SequenceNumber = 3
	frame, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// deliver the frame one byte at a time
	r := bufio.NewReader(&oneByteReader{data: frame})
	decoded, err := ReadPDU(r)
	if err != nil {
		t.Fatalf("ReadPDU: %v", err)
	}
	if decoded.Header.CommandID != CommandEnquireLink || decoded.Header.SequenceNumber != 3 {
		t.Errorf("got command 0x%08X seq %d", decoded.Header.CommandID, decoded.Header.SequenceNumber)
	}
}

// oneByteReader yields one byte per Read, simulating a fragmented TCP
// stream.
type oneByteReader struct{ data []byte }

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, errors.New("eof")
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}
