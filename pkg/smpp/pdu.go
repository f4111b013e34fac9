package smpp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderLen is the fixed size of every PDU header: command_length,
// command_id, command_status, sequence_number, each a big-endian uint32.
const HeaderLen = 16

// PDUHeader is the fixed 16-byte preamble every SMPP PDU carries.
type PDUHeader struct {
	CommandLength  uint32
	CommandID      uint32
	CommandStatus  uint32
	SequenceNumber uint32
}

func (h PDUHeader) marshal() []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.CommandLength)
	binary.BigEndian.PutUint32(buf[4:8], h.CommandID)
	binary.BigEndian.PutUint32(buf[8:12], h.CommandStatus)
	binary.BigEndian.PutUint32(buf[12:16], h.SequenceNumber)
	return buf
}

func unmarshalHeader(data []byte) (PDUHeader, error) {
	if len(data) < HeaderLen {
		return PDUHeader{}, fmt.Errorf("short header: got %d bytes, want %d", len(data), HeaderLen)
	}
	return PDUHeader{
		CommandLength:  binary.BigEndian.Uint32(data[0:4]),
		CommandID:      binary.BigEndian.Uint32(data[4:8]),
		CommandStatus:  binary.BigEndian.Uint32(data[8:12]),
		SequenceNumber: binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// Body is implemented by every command's mandatory-parameter layout. Unlike
// a plain Marshal/Unmarshal pair, UnmarshalMandatory reports how many bytes
// of the body it consumed so the codec can hand the remainder to the
// schema-driven TLV parser (optional parameters are keyed off the command,
// not the Go type, so they live on PDU rather than on Body).
type Body interface {
	CommandID() uint32
	MarshalMandatory() ([]byte, error)
	UnmarshalMandatory(data []byte) (int, error)
}

// CString is a NUL-terminated text field, the C-Octet String type SMPP 3.4
// uses for system_id, password, message_id, and similar mandatory fields.
type CString struct {
	Value string
}

// NewCString builds a CString from a plain Go string.
func NewCString(s string) CString { return CString{Value: s} }

func (c CString) marshal() []byte {
	buf := make([]byte, len(c.Value)+1)
	copy(buf, c.Value)
	return buf
}

func (c *CString) unmarshal(data []byte) (int, error) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return 0, fmt.Errorf("c-octet string missing NUL terminator")
	}
	c.Value = string(data[:idx])
	return idx + 1, nil
}

// checkCString enforces a field's declared maximum encoded length, the NUL
// terminator included.
func checkCString(field string, c CString, max int) error {
	if len(c.Value)+1 > max {
		return &EncodingError{Field: field,
			Err: fmt.Errorf("length %d exceeds maximum %d", len(c.Value), max-1)}
	}
	return nil
}

// Address is a TON/NPI/address triple used for source_addr, destination_addr
// and similar fields.
type Address struct {
	TON  byte
	NPI  byte
	Addr CString
}

func (a Address) marshal() []byte {
	buf := []byte{a.TON, a.NPI}
	return append(buf, a.Addr.marshal()...)
}

func (a *Address) unmarshal(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("short address: %d bytes", len(data))
	}
	a.TON, a.NPI = data[0], data[1]
	n, err := a.Addr.unmarshal(data[2:])
	if err != nil {
		return 0, fmt.Errorf("address: %w", err)
	}
	return 2 + n, nil
}

// ShortMessage is the mandatory-parameter layout shared by submit_sm and
// deliver_sm, which SMPP 3.4 defines identically.
type ShortMessage struct {
	ServiceType          CString
	Source               Address
	Dest                 Address
	ESMClass             byte
	ProtocolID           byte
	PriorityFlag         byte
	ScheduleDeliveryTime CString
	ValidityPeriod       CString
	RegisteredDelivery   byte
	ReplaceIfPresent     byte
	DataCoding           byte
	SMDefaultMsgID       byte
	ShortMessageBytes    []byte
}

func (m *ShortMessage) validate() error {
	if err := checkCString("service_type", m.ServiceType, MaxServiceTypeLength); err != nil {
		return err
	}
	if err := checkCString("source_addr", m.Source.Addr, MaxAddressLength); err != nil {
		return err
	}
	if err := checkCString("destination_addr", m.Dest.Addr, MaxAddressLength); err != nil {
		return err
	}
	if len(m.ShortMessageBytes) > MaxShortMessageLength {
		return &EncodingError{Field: "short_message",
			Err: fmt.Errorf("length %d exceeds maximum %d; use message_payload or split the message", len(m.ShortMessageBytes), MaxShortMessageLength)}
	}
	return nil
}

func (m *ShortMessage) marshal() []byte {
	var buf bytes.Buffer
	buf.Write(m.ServiceType.marshal())
	buf.Write(m.Source.marshal())
	buf.Write(m.Dest.marshal())
	buf.WriteByte(m.ESMClass)
	buf.WriteByte(m.ProtocolID)
	buf.WriteByte(m.PriorityFlag)
	buf.Write(m.ScheduleDeliveryTime.marshal())
	buf.Write(m.ValidityPeriod.marshal())
	buf.WriteByte(m.RegisteredDelivery)
	buf.WriteByte(m.ReplaceIfPresent)
	buf.WriteByte(m.DataCoding)
	buf.WriteByte(m.SMDefaultMsgID)
	buf.WriteByte(byte(len(m.ShortMessageBytes)))
	buf.Write(m.ShortMessageBytes)
	return buf.Bytes()
}

func (m *ShortMessage) unmarshal(data []byte) (int, error) {
	var off int
	n, err := m.ServiceType.unmarshal(data[off:])
	if err != nil {
		return 0, fmt.Errorf("service_type: %w", err)
	}
	off += n
	if n, err = m.Source.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("source_addr: %w", err)
	} else {
		off += n
	}
	if n, err = m.Dest.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("destination_addr: %w", err)
	} else {
		off += n
	}
	if len(data) < off+4 {
		return 0, fmt.Errorf("short body after destination_addr")
	}
	m.ESMClass = data[off]
	m.ProtocolID = data[off+1]
	m.PriorityFlag = data[off+2]
	off += 3
	if n, err = m.ScheduleDeliveryTime.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("schedule_delivery_time: %w", err)
	} else {
		off += n
	}
	if n, err = m.ValidityPeriod.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("validity_period: %w", err)
	} else {
		off += n
	}
	if len(data) < off+5 {
		return 0, fmt.Errorf("short body after validity_period")
	}
	m.RegisteredDelivery = data[off]
	m.ReplaceIfPresent = data[off+1]
	m.DataCoding = data[off+2]
	m.SMDefaultMsgID = data[off+3]
	smLength := int(data[off+4])
	off += 5
	if len(data) < off+smLength {
		return 0, fmt.Errorf("short_message: declared length %d exceeds remaining body", smLength)
	}
	m.ShortMessageBytes = append([]byte(nil), data[off:off+smLength]...)
	off += smLength
	return off, nil
}

// SubmitSM is the submit_sm PDU: an ESME asking the SMSC to submit a short
// message for delivery to a single destination.
type SubmitSM struct{ ShortMessage }

func (p *SubmitSM) CommandID() uint32 { return CommandSubmitSM }
func (p *SubmitSM) MarshalMandatory() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p.marshal(), nil
}
func (p *SubmitSM) UnmarshalMandatory(d []byte) (int, error) { return p.unmarshal(d) }

// SubmitSMResp carries the SMSC-assigned message_id for a submit_sm.
type SubmitSMResp struct{ MessageID CString }

func (p *SubmitSMResp) CommandID() uint32                { return CommandSubmitSMResp }
func (p *SubmitSMResp) MarshalMandatory() ([]byte, error) { return p.MessageID.marshal(), nil }
func (p *SubmitSMResp) UnmarshalMandatory(d []byte) (int, error) {
	return p.MessageID.unmarshal(d)
}

// DeliverSM is deliver_sm: an SMSC pushing a mobile-originated message or a
// delivery receipt to the ESME. Mandatory layout is identical to submit_sm.
type DeliverSM struct{ ShortMessage }

func (p *DeliverSM) CommandID() uint32 { return CommandDeliverSM }
func (p *DeliverSM) MarshalMandatory() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p.marshal(), nil
}
func (p *DeliverSM) UnmarshalMandatory(d []byte) (int, error) { return p.unmarshal(d) }

// DeliverSMResp acknowledges a deliver_sm. message_id is conventionally
// empty but the field is still present on the wire.
type DeliverSMResp struct{ MessageID CString }

func (p *DeliverSMResp) CommandID() uint32                { return CommandDeliverSMResp }
func (p *DeliverSMResp) MarshalMandatory() ([]byte, error) { return p.MessageID.marshal(), nil }
func (p *DeliverSMResp) UnmarshalMandatory(d []byte) (int, error) {
	return p.MessageID.unmarshal(d)
}

// BindRequest is the mandatory layout shared by bind_transmitter,
// bind_receiver and bind_transceiver.
type BindRequest struct {
	SystemID         CString
	Password         CString
	SystemType       CString
	InterfaceVersion byte
	AddrTON          byte
	AddrNPI          byte
	AddressRange     CString
	commandID        uint32
}

func (p *BindRequest) CommandID() uint32 { return p.commandID }

func (p *BindRequest) MarshalMandatory() ([]byte, error) {
	if err := checkCString("system_id", p.SystemID, MaxSystemIDLength); err != nil {
		return nil, err
	}
	if err := checkCString("password", p.Password, MaxPasswordLength); err != nil {
		return nil, err
	}
	if err := checkCString("system_type", p.SystemType, MaxSystemTypeLength); err != nil {
		return nil, err
	}
	if err := checkCString("address_range", p.AddressRange, 41); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(p.SystemID.marshal())
	buf.Write(p.Password.marshal())
	buf.Write(p.SystemType.marshal())
	buf.WriteByte(p.InterfaceVersion)
	buf.WriteByte(p.AddrTON)
	buf.WriteByte(p.AddrNPI)
	buf.Write(p.AddressRange.marshal())
	return buf.Bytes(), nil
}

func (p *BindRequest) UnmarshalMandatory(data []byte) (int, error) {
	var off int
	n, err := p.SystemID.unmarshal(data[off:])
	if err != nil {
		return 0, fmt.Errorf("system_id: %w", err)
	}
	off += n
	if n, err = p.Password.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("password: %w", err)
	} else {
		off += n
	}
	if n, err = p.SystemType.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("system_type: %w", err)
	} else {
		off += n
	}
	if len(data) < off+3 {
		return 0, fmt.Errorf("short bind body")
	}
	p.InterfaceVersion, p.AddrTON, p.AddrNPI = data[off], data[off+1], data[off+2]
	off += 3
	if n, err = p.AddressRange.unmarshal(data[off:]); err != nil {
		return 0, fmt.Errorf("address_range: %w", err)
	} else {
		off += n
	}
	return off, nil
}

// NewBindTransmitter builds a bind_transmitter mandatory body.
func NewBindTransmitter(systemID, password, systemType string, ton, npi byte, addressRange string) *BindRequest {
	return &BindRequest{
		SystemID: NewCString(systemID), Password: NewCString(password), SystemType: NewCString(systemType),
		InterfaceVersion: SMPPVersion, AddrTON: ton, AddrNPI: npi, AddressRange: NewCString(addressRange),
		commandID: CommandBindTransmitter,
	}
}

// NewBindReceiver builds a bind_receiver mandatory body.
func NewBindReceiver(systemID, password, systemType string, ton, npi byte, addressRange string) *BindRequest {
	b := NewBindTransmitter(systemID, password, systemType, ton, npi, addressRange)
	b.commandID = CommandBindReceiver
	return b
}

// NewBindTransceiver builds a bind_transceiver mandatory body.
func NewBindTransceiver(systemID, password, systemType string, ton, npi byte, addressRange string) *BindRequest {
	b := NewBindTransmitter(systemID, password, systemType, ton, npi, addressRange)
	b.commandID = CommandBindTransceiver
	return b
}

// BindResponse is the mandatory layout shared by bind_transmitter_resp,
// bind_receiver_resp and bind_transceiver_resp. sc_interface_version, when
// present, arrives as an optional parameter on the enclosing PDU.
type BindResponse struct {
	SystemID  CString
	commandID uint32
}

func (p *BindResponse) CommandID() uint32                { return p.commandID }
func (p *BindResponse) MarshalMandatory() ([]byte, error) { return p.SystemID.marshal(), nil }
func (p *BindResponse) UnmarshalMandatory(d []byte) (int, error) {
	return p.SystemID.unmarshal(d)
}

// Outbind is sent by an SMSC to an ESME's listening socket to request that
// the ESME bind back. This client never listens, but the type is kept so a
// caller feeding externally-accepted bytes through ReadOnePDU can still
// decode one.
type Outbind struct {
	SystemID CString
	Password CString
}

func (p *Outbind) CommandID() uint32 { return CommandOutbind }
func (p *Outbind) MarshalMandatory() ([]byte, error) {
	return append(p.SystemID.marshal(), p.Password.marshal()...), nil
}
func (p *Outbind) UnmarshalMandatory(data []byte) (int, error) {
	n, err := p.SystemID.unmarshal(data)
	if err != nil {
		return 0, err
	}
	n2, err := p.Password.unmarshal(data[n:])
	if err != nil {
		return 0, err
	}
	return n + n2, nil
}

// EnquireLink and EnquireLinkResp carry no mandatory parameters; they are
// the session-level keepalive.
type EnquireLink struct{}

func (p *EnquireLink) CommandID() uint32                           { return CommandEnquireLink }
func (p *EnquireLink) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *EnquireLink) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

type EnquireLinkResp struct{}

func (p *EnquireLinkResp) CommandID() uint32                           { return CommandEnquireLinkResp }
func (p *EnquireLinkResp) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *EnquireLinkResp) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

// Unbind and UnbindResp carry no mandatory parameters.
type Unbind struct{}

func (p *Unbind) CommandID() uint32                           { return CommandUnbind }
func (p *Unbind) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *Unbind) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

type UnbindResp struct{}

func (p *UnbindResp) CommandID() uint32                           { return CommandUnbindResp }
func (p *UnbindResp) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *UnbindResp) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

// GenericNack is the catch-all negative response to a PDU the receiver
// could not parse or did not recognize.
type GenericNack struct{}

func (p *GenericNack) CommandID() uint32                           { return CommandGenericNack }
func (p *GenericNack) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *GenericNack) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

// QuerySM asks the SMSC for the current status of a previously submitted
// message.
type QuerySM struct {
	MessageID CString
	Source    Address
}

func (p *QuerySM) CommandID() uint32 { return CommandQuerySM }
func (p *QuerySM) MarshalMandatory() ([]byte, error) {
	return append(p.MessageID.marshal(), p.Source.marshal()...), nil
}
func (p *QuerySM) UnmarshalMandatory(data []byte) (int, error) {
	n, err := p.MessageID.unmarshal(data)
	if err != nil {
		return 0, err
	}
	n2, err := p.Source.unmarshal(data[n:])
	if err != nil {
		return 0, err
	}
	return n + n2, nil
}

// QuerySMResp answers a query_sm.
type QuerySMResp struct {
	MessageID    CString
	FinalDate    CString
	MessageState byte
	ErrorCode    byte
}

func (p *QuerySMResp) CommandID() uint32 { return CommandQuerySMResp }
func (p *QuerySMResp) MarshalMandatory() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(p.MessageID.marshal())
	buf.Write(p.FinalDate.marshal())
	buf.WriteByte(p.MessageState)
	buf.WriteByte(p.ErrorCode)
	return buf.Bytes(), nil
}
func (p *QuerySMResp) UnmarshalMandatory(data []byte) (int, error) {
	n, err := p.MessageID.unmarshal(data)
	if err != nil {
		return 0, err
	}
	n2, err := p.FinalDate.unmarshal(data[n:])
	if err != nil {
		return 0, err
	}
	off := n + n2
	if len(data) < off+2 {
		return 0, fmt.Errorf("short query_sm_resp body")
	}
	p.MessageState, p.ErrorCode = data[off], data[off+1]
	return off + 2, nil
}

// ReplaceSM replaces the text and delivery attributes of an outstanding
// message identified by message_id.
type ReplaceSM struct {
	MessageID            CString
	Source               Address
	ScheduleDeliveryTime CString
	ValidityPeriod       CString
	RegisteredDelivery   byte
	SMDefaultMsgID       byte
	ShortMessageBytes    []byte
}

func (p *ReplaceSM) CommandID() uint32 { return CommandReplaceSM }
func (p *ReplaceSM) MarshalMandatory() ([]byte, error) {
	if err := checkCString("message_id", p.MessageID, MaxMessageIDLength+1); err != nil {
		return nil, err
	}
	if len(p.ShortMessageBytes) > MaxShortMessageLength {
		return nil, &EncodingError{Field: "short_message",
			Err: fmt.Errorf("length %d exceeds maximum %d", len(p.ShortMessageBytes), MaxShortMessageLength)}
	}
	var buf bytes.Buffer
	buf.Write(p.MessageID.marshal())
	buf.Write(p.Source.marshal())
	buf.Write(p.ScheduleDeliveryTime.marshal())
	buf.Write(p.ValidityPeriod.marshal())
	buf.WriteByte(p.RegisteredDelivery)
	buf.WriteByte(p.SMDefaultMsgID)
	buf.WriteByte(byte(len(p.ShortMessageBytes)))
	buf.Write(p.ShortMessageBytes)
	return buf.Bytes(), nil
}
func (p *ReplaceSM) UnmarshalMandatory(data []byte) (int, error) {
	var off int
	n, err := p.MessageID.unmarshal(data[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = p.Source.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if n, err = p.ScheduleDeliveryTime.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if n, err = p.ValidityPeriod.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if len(data) < off+3 {
		return 0, fmt.Errorf("short replace_sm body")
	}
	p.RegisteredDelivery, p.SMDefaultMsgID = data[off], data[off+1]
	smLength := int(data[off+2])
	off += 3
	if len(data) < off+smLength {
		return 0, fmt.Errorf("short_message: declared length exceeds remaining body")
	}
	p.ShortMessageBytes = append([]byte(nil), data[off:off+smLength]...)
	return off + smLength, nil
}

// ReplaceSMResp carries no mandatory parameters.
type ReplaceSMResp struct{}

func (p *ReplaceSMResp) CommandID() uint32                           { return CommandReplaceSMResp }
func (p *ReplaceSMResp) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *ReplaceSMResp) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

// CancelSM cancels an outstanding message, identified either by message_id
// or by the service_type/source/destination triple.
type CancelSM struct {
	ServiceType CString
	MessageID   CString
	Source      Address
	Dest        Address
}

func (p *CancelSM) CommandID() uint32 { return CommandCancelSM }
func (p *CancelSM) MarshalMandatory() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(p.ServiceType.marshal())
	buf.Write(p.MessageID.marshal())
	buf.Write(p.Source.marshal())
	buf.Write(p.Dest.marshal())
	return buf.Bytes(), nil
}
func (p *CancelSM) UnmarshalMandatory(data []byte) (int, error) {
	var off int
	n, err := p.ServiceType.unmarshal(data[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = p.MessageID.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if n, err = p.Source.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if n, err = p.Dest.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	return off, nil
}

// CancelSMResp carries no mandatory parameters.
type CancelSMResp struct{}

func (p *CancelSMResp) CommandID() uint32                           { return CommandCancelSMResp }
func (p *CancelSMResp) MarshalMandatory() ([]byte, error)           { return nil, nil }
func (p *CancelSMResp) UnmarshalMandatory(data []byte) (int, error) { return 0, nil }

// DataSM is the interactive counterpart to submit_sm/deliver_sm used for
// datagram-style exchanges; it carries no inline short_message, relying on
// the message_payload optional parameter instead.
type DataSM struct {
	ServiceType        CString
	Source             Address
	Dest               Address
	ESMClass           byte
	RegisteredDelivery byte
	DataCoding         byte
}

func (p *DataSM) CommandID() uint32 { return CommandDataSM }
func (p *DataSM) MarshalMandatory() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(p.ServiceType.marshal())
	buf.Write(p.Source.marshal())
	buf.Write(p.Dest.marshal())
	buf.WriteByte(p.ESMClass)
	buf.WriteByte(p.RegisteredDelivery)
	buf.WriteByte(p.DataCoding)
	return buf.Bytes(), nil
}
func (p *DataSM) UnmarshalMandatory(data []byte) (int, error) {
	var off int
	n, err := p.ServiceType.unmarshal(data[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = p.Source.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if n, err = p.Dest.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if len(data) < off+3 {
		return 0, fmt.Errorf("short data_sm body")
	}
	p.ESMClass, p.RegisteredDelivery, p.DataCoding = data[off], data[off+1], data[off+2]
	return off + 3, nil
}

// DataSMResp carries the SMSC-assigned message_id for a data_sm.
type DataSMResp struct{ MessageID CString }

func (p *DataSMResp) CommandID() uint32                 { return CommandDataSMResp }
func (p *DataSMResp) MarshalMandatory() ([]byte, error) { return p.MessageID.marshal(), nil }
func (p *DataSMResp) UnmarshalMandatory(d []byte) (int, error) {
	return p.MessageID.unmarshal(d)
}

// DestAddress is one entry of a submit_multi destination list: either a
// single SME address or the name of a predefined distribution list.
type DestAddress struct {
	Flag   byte // 1 = SME address, 2 = distribution list
	SME    Address
	DLName CString
}

func (d DestAddress) marshal() []byte {
	if d.Flag == 2 {
		return append([]byte{d.Flag}, d.DLName.marshal()...)
	}
	return append([]byte{1}, d.SME.marshal()...)
}

func (d *DestAddress) unmarshal(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("short dest_address")
	}
	d.Flag = data[0]
	if d.Flag == 2 {
		n, err := d.DLName.unmarshal(data[1:])
		return 1 + n, err
	}
	n, err := d.SME.unmarshal(data[1:])
	return 1 + n, err
}

// SubmitMulti submits a short message to a list of destinations in a
// single PDU.
type SubmitMulti struct {
	ServiceType          CString
	Source               Address
	Dests                []DestAddress
	ESMClass             byte
	ProtocolID           byte
	PriorityFlag         byte
	ScheduleDeliveryTime CString
	ValidityPeriod       CString
	RegisteredDelivery   byte
	ReplaceIfPresent     byte
	DataCoding           byte
	SMDefaultMsgID       byte
	ShortMessageBytes    []byte
}

func (p *SubmitMulti) CommandID() uint32 { return CommandSubmitMulti }

func (p *SubmitMulti) MarshalMandatory() ([]byte, error) {
	if len(p.Dests) == 0 || len(p.Dests) > 254 {
		return nil, &EncodingError{Field: "dest_address",
			Err: fmt.Errorf("destination count %d outside [1,254]", len(p.Dests))}
	}
	if len(p.ShortMessageBytes) > MaxShortMessageLength {
		return nil, &EncodingError{Field: "short_message",
			Err: fmt.Errorf("length %d exceeds maximum %d", len(p.ShortMessageBytes), MaxShortMessageLength)}
	}
	var buf bytes.Buffer
	buf.Write(p.ServiceType.marshal())
	buf.Write(p.Source.marshal())
	buf.WriteByte(byte(len(p.Dests)))
	for _, d := range p.Dests {
		buf.Write(d.marshal())
	}
	buf.WriteByte(p.ESMClass)
	buf.WriteByte(p.ProtocolID)
	buf.WriteByte(p.PriorityFlag)
	buf.Write(p.ScheduleDeliveryTime.marshal())
	buf.Write(p.ValidityPeriod.marshal())
	buf.WriteByte(p.RegisteredDelivery)
	buf.WriteByte(p.ReplaceIfPresent)
	buf.WriteByte(p.DataCoding)
	buf.WriteByte(p.SMDefaultMsgID)
	buf.WriteByte(byte(len(p.ShortMessageBytes)))
	buf.Write(p.ShortMessageBytes)
	return buf.Bytes(), nil
}

func (p *SubmitMulti) UnmarshalMandatory(data []byte) (int, error) {
	var off int
	n, err := p.ServiceType.unmarshal(data[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = p.Source.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if len(data) < off+1 {
		return 0, fmt.Errorf("short submit_multi body")
	}
	count := int(data[off])
	off++
	p.Dests = make([]DestAddress, count)
	for i := 0; i < count; i++ {
		var d DestAddress
		if n, err = d.unmarshal(data[off:]); err != nil {
			return 0, fmt.Errorf("dest_address[%d]: %w", i, err)
		}
		off += n
		p.Dests[i] = d
	}
	if len(data) < off+4 {
		return 0, fmt.Errorf("short submit_multi body after dest list")
	}
	p.ESMClass, p.ProtocolID, p.PriorityFlag = data[off], data[off+1], data[off+2]
	off += 3
	if n, err = p.ScheduleDeliveryTime.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if n, err = p.ValidityPeriod.unmarshal(data[off:]); err != nil {
		return 0, err
	} else {
		off += n
	}
	if len(data) < off+5 {
		return 0, fmt.Errorf("short submit_multi body before short_message")
	}
	p.RegisteredDelivery, p.ReplaceIfPresent, p.DataCoding, p.SMDefaultMsgID = data[off], data[off+1], data[off+2], data[off+3]
	smLength := int(data[off+4])
	off += 5
	if len(data) < off+smLength {
		return 0, fmt.Errorf("short_message: declared length exceeds remaining body")
	}
	p.ShortMessageBytes = append([]byte(nil), data[off:off+smLength]...)
	return off + smLength, nil
}

// UnsuccessfulSME reports one destination a submit_multi failed to reach.
type UnsuccessfulSME struct {
	Address         Address
	ErrorStatusCode uint32
}

// SubmitMultiResp answers a submit_multi.
type SubmitMultiResp struct {
	MessageID    CString
	Unsuccessful []UnsuccessfulSME
}

func (p *SubmitMultiResp) CommandID() uint32 { return CommandSubmitMultiResp }

func (p *SubmitMultiResp) MarshalMandatory() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(p.MessageID.marshal())
	buf.WriteByte(byte(len(p.Unsuccessful)))
	for _, u := range p.Unsuccessful {
		buf.Write(u.Address.marshal())
		var ec [4]byte
		binary.BigEndian.PutUint32(ec[:], u.ErrorStatusCode)
		buf.Write(ec[:])
	}
	return buf.Bytes(), nil
}

func (p *SubmitMultiResp) UnmarshalMandatory(data []byte) (int, error) {
	off, err := p.MessageID.unmarshal(data)
	if err != nil {
		return 0, err
	}
	if len(data) < off+1 {
		return 0, fmt.Errorf("short submit_multi_resp body")
	}
	count := int(data[off])
	off++
	p.Unsuccessful = make([]UnsuccessfulSME, count)
	for i := 0; i < count; i++ {
		var u UnsuccessfulSME
		n, err := u.Address.unmarshal(data[off:])
		if err != nil {
			return 0, fmt.Errorf("unsuccess_sme[%d]: %w", i, err)
		}
		off += n
		if len(data) < off+4 {
			return 0, fmt.Errorf("unsuccess_sme[%d]: short error_status_code", i)
		}
		u.ErrorStatusCode = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
		p.Unsuccessful[i] = u
	}
	return off, nil
}

// AlertNotification is sent by the SMSC when a mobile subscriber becomes
// available, in response to a previously registered interest.
type AlertNotification struct {
	Source   Address
	ESMEAddr Address
}

func (p *AlertNotification) CommandID() uint32 { return CommandAlertNotification }
func (p *AlertNotification) MarshalMandatory() ([]byte, error) {
	return append(p.Source.marshal(), p.ESMEAddr.marshal()...), nil
}
func (p *AlertNotification) UnmarshalMandatory(data []byte) (int, error) {
	n, err := p.Source.unmarshal(data)
	if err != nil {
		return 0, err
	}
	n2, err := p.ESMEAddr.unmarshal(data[n:])
	if err != nil {
		return 0, err
	}
	return n + n2, nil
}

// RawTLV is an optional parameter whose tag is not registered in the
// command's schema: preserved verbatim but not exposed as a named field.
type RawTLV struct {
	Tag   uint16
	Value []byte
}

// namedTLV is an optional parameter recognized by the command's schema.
type namedTLV struct {
	desc  TLVDescriptor
	value []byte
}

// PDU pairs a header, a command-specific mandatory body, and a set of
// optional TLV parameters looked up against that command's CommandSchema.
type PDU struct {
	Header PDUHeader
	Body   Body

	named map[string]namedTLV
	extra []RawTLV
}

// NewPDU wraps a Body with a zero header (sequence number is usually
// assigned by the session engine at send time).
func NewPDU(body Body) *PDU {
	return &PDU{Header: PDUHeader{CommandID: body.CommandID()}, Body: body, named: map[string]namedTLV{}}
}

// RawOptionalParams returns the unregistered TLVs carried by this PDU, in
// wire order.
func (p *PDU) RawOptionalParams() []RawTLV { return p.extra }

func (p *PDU) schema() (*CommandSchema, bool) { return SchemaFor(p.Header.CommandID) }

// SetOptionalUint stores an integer-typed optional parameter by name.
func (p *PDU) SetOptionalUint(name string, value uint64) error {
	cs, ok := p.schema()
	if !ok {
		return &EncodingError{Field: name, Err: fmt.Errorf("no schema for command 0x%08X", p.Header.CommandID)}
	}
	d, ok := cs.NameDescriptor(name)
	if !ok || d.Type != TypeInteger {
		return &EncodingError{Field: name, Err: fmt.Errorf("not a registered integer optional parameter")}
	}
	buf := make([]byte, d.Size)
	switch d.Size {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(value))
	default:
		return &EncodingError{Field: name, Err: fmt.Errorf("unsupported integer size %d", d.Size)}
	}
	if p.named == nil {
		p.named = map[string]namedTLV{}
	}
	p.named[name] = namedTLV{desc: d, value: buf}
	return nil
}

// SetOptionalString stores a C-Octet-String-typed optional parameter.
func (p *PDU) SetOptionalString(name, value string) error {
	cs, ok := p.schema()
	if !ok {
		return &EncodingError{Field: name, Err: fmt.Errorf("no schema for command 0x%08X", p.Header.CommandID)}
	}
	d, ok := cs.NameDescriptor(name)
	if !ok || d.Type != TypeCOctetString {
		return &EncodingError{Field: name, Err: fmt.Errorf("not a registered c-octet-string optional parameter")}
	}
	if d.Size > 0 && len(value)+1 > d.Size {
		return &EncodingError{Field: name, Err: fmt.Errorf("value too long: %d bytes, max %d", len(value), d.Size-1)}
	}
	if p.named == nil {
		p.named = map[string]namedTLV{}
	}
	p.named[name] = namedTLV{desc: d, value: append([]byte(value), 0)}
	return nil
}

// SetOptionalBytes stores an octet-string-typed optional parameter.
func (p *PDU) SetOptionalBytes(name string, value []byte) error {
	cs, ok := p.schema()
	if !ok {
		return &EncodingError{Field: name, Err: fmt.Errorf("no schema for command 0x%08X", p.Header.CommandID)}
	}
	d, ok := cs.NameDescriptor(name)
	if !ok || d.Type != TypeOctetString {
		return &EncodingError{Field: name, Err: fmt.Errorf("not a registered octet-string optional parameter")}
	}
	if d.Size > 0 && len(value) != d.Size {
		return &EncodingError{Field: name, Err: fmt.Errorf("value must be exactly %d bytes, got %d", d.Size, len(value))}
	}
	if p.named == nil {
		p.named = map[string]namedTLV{}
	}
	p.named[name] = namedTLV{desc: d, value: append([]byte(nil), value...)}
	return nil
}

// OptionalUint returns an integer-typed optional parameter by name.
func (p *PDU) OptionalUint(name string) (uint64, bool) {
	t, ok := p.named[name]
	if !ok || t.desc.Type != TypeInteger {
		return 0, false
	}
	switch len(t.value) {
	case 1:
		return uint64(t.value[0]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(t.value)), true
	case 4:
		return uint64(binary.BigEndian.Uint32(t.value)), true
	default:
		return 0, false
	}
}

// OptionalString returns a C-Octet-String-typed optional parameter by name,
// with the trailing NUL stripped.
func (p *PDU) OptionalString(name string) (string, bool) {
	t, ok := p.named[name]
	if !ok || t.desc.Type != TypeCOctetString {
		return "", false
	}
	v := t.value
	if len(v) > 0 && v[len(v)-1] == 0 {
		v = v[:len(v)-1]
	}
	return string(v), true
}

// OptionalBytes returns an octet-string-typed optional parameter by name.
func (p *PDU) OptionalBytes(name string) ([]byte, bool) {
	t, ok := p.named[name]
	if !ok || t.desc.Type != TypeOctetString {
		return nil, false
	}
	return append([]byte(nil), t.value...), true
}
