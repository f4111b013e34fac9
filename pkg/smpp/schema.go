package smpp

import "sort"

// ParamType describes how an optional (TLV) parameter's value is encoded on
// the wire, independent of its tag/length framing (which is uniform for
// every TLV regardless of type).
type ParamType int

const (
	// TypeCOctetString values are NUL-terminated text; Size, when non-zero,
	// bounds the encoded length including the terminator.
	TypeCOctetString ParamType = iota
	// TypeOctetString values are raw bytes; Size, when non-zero, is a fixed
	// length rather than a bound.
	TypeOctetString
	// TypeInteger values are big-endian unsigned integers occupying
	// exactly Size bytes (1, 2 or 4).
	TypeInteger
)

// TLVDescriptor names one optional parameter a command may carry.
type TLVDescriptor struct {
	Tag  uint16
	Name string
	Type ParamType
	Size int
}

// CommandSchema is the static description of one SMPP command: its id, the
// id of its paired response (0 if none), and the optional parameters it is
// permitted to carry.
type CommandSchema struct {
	ID     uint32
	Name   string
	RespID uint32

	byTag  map[uint16]TLVDescriptor
	byName map[string]TLVDescriptor
}

func (cs *CommandSchema) define(d TLVDescriptor) {
	cs.byTag[d.Tag] = d
	cs.byName[d.Name] = d
}

// TagDescriptor looks up an optional parameter by wire tag.
func (cs *CommandSchema) TagDescriptor(tag uint16) (TLVDescriptor, bool) {
	d, ok := cs.byTag[tag]
	return d, ok
}

// NameDescriptor looks up an optional parameter by name.
func (cs *CommandSchema) NameDescriptor(name string) (TLVDescriptor, bool) {
	d, ok := cs.byName[name]
	return d, ok
}

// OptionalNames returns the names of every optional parameter registered
// for this command, sorted for stable output.
func (cs *CommandSchema) OptionalNames() []string {
	names := make([]string, 0, len(cs.byName))
	for n := range cs.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var registry = map[uint32]*CommandSchema{}

func registerCommand(id uint32, name string, respID uint32) *CommandSchema {
	cs := &CommandSchema{
		ID:     id,
		Name:   name,
		RespID: respID,
		byTag:  map[uint16]TLVDescriptor{},
		byName: map[string]TLVDescriptor{},
	}
	registry[id] = cs
	return cs
}

// SchemaFor returns the registered schema for a command id.
func SchemaFor(commandID uint32) (*CommandSchema, bool) {
	cs, ok := registry[commandID]
	return cs, ok
}

// DefineOptionalParam registers a vendor or extension TLV for a command:
// callers can teach the codec a new optional parameter without touching
// pdu.go. Registration must finish before any I/O begins; the registry is
// read-only once PDUs start flowing. Re-registering an identical (tag,
// name, type, size) tuple is a no-op; registering a conflicting definition
// for a tag already known returns a RegistrationError rather than silently
// overwriting it.
func DefineOptionalParam(commandID uint32, typ ParamType, tag uint16, name string, size int) error {
	cs, ok := registry[commandID]
	if !ok {
		return &RegistrationError{Msg: "unknown command id for DefineOptionalParam"}
	}
	if existing, ok := cs.byTag[tag]; ok {
		if existing.Name == name && existing.Type == typ && existing.Size == size {
			return nil
		}
		return &RegistrationError{Msg: "tag already registered with a different definition for this command"}
	}
	if existing, ok := cs.byName[name]; ok && existing.Tag != tag {
		return &RegistrationError{Msg: "name already registered under a different tag for this command"}
	}
	cs.define(TLVDescriptor{Tag: tag, Name: name, Type: typ, Size: size})
	return nil
}

// standardOptional is shared by every command that accepts the full common
// set of SMPP 3.4 optional parameters (submit_sm, deliver_sm, data_sm and
// submit_multi). Command-specific TLVs are added on top.
var standardOptional = []TLVDescriptor{
	{TagDestAddrSubunit, "dest_addr_subunit", TypeInteger, 1},
	{TagDestNetworkType, "dest_network_type", TypeInteger, 1},
	{TagDestBearerType, "dest_bearer_type", TypeInteger, 1},
	{TagDestTelematicsID, "dest_telematics_id", TypeInteger, 2},
	{TagSourceAddrSubunit, "source_addr_subunit", TypeInteger, 1},
	{TagSourceNetworkType, "source_network_type", TypeInteger, 1},
	{TagSourceBearerType, "source_bearer_type", TypeInteger, 1},
	{TagSourceTelematicsID, "source_telematics_id", TypeInteger, 2},
	{TagQOSTimeToLive, "qos_time_to_live", TypeInteger, 4},
	{TagPayloadType, "payload_type", TypeInteger, 1},
	{TagAdditionalStatusInfoText, "additional_status_info_text", TypeCOctetString, 256},
	{TagReceiptedMessageID, "receipted_message_id", TypeCOctetString, 65},
	{TagMsMsgWaitFacilities, "ms_msg_wait_facilities", TypeInteger, 1},
	{TagPrivacyIndicator, "privacy_indicator", TypeInteger, 1},
	{TagSourceSubaddress, "source_subaddress", TypeOctetString, 0},
	{TagDestSubaddress, "dest_subaddress", TypeOctetString, 0},
	{TagUserMessageReference, "user_message_reference", TypeInteger, 2},
	{TagUserResponseCode, "user_response_code", TypeInteger, 1},
	{TagSourcePort, "source_port", TypeInteger, 2},
	{TagDestinationPort, "destination_port", TypeInteger, 2},
	{TagSarMsgRefNum, "sar_msg_ref_num", TypeInteger, 2},
	{TagLanguageIndicator, "language_indicator", TypeInteger, 1},
	{TagSarTotalSegments, "sar_total_segments", TypeInteger, 1},
	{TagSarSegmentSeqnum, "sar_segment_seqnum", TypeInteger, 1},
	{TagSCInterfaceVersion, "sc_interface_version", TypeInteger, 1},
	{TagCallbackNumPresInd, "callback_num_pres_ind", TypeInteger, 1},
	{TagCallbackNumAtag, "callback_num_atag", TypeOctetString, 0},
	{TagCallbackNum, "callback_num", TypeOctetString, 0},
	{TagNetworkErrorCode, "network_error_code", TypeOctetString, 3},
	{TagMessagePayload, "message_payload", TypeOctetString, 0},
	{TagMessageStateOption, "message_state", TypeInteger, 1},
	{TagDisplayTime, "display_time", TypeInteger, 1},
	{TagSmsSignal, "sms_signal", TypeInteger, 2},
	{TagMsValidity, "ms_validity", TypeInteger, 1},
	{TagItsReplyType, "its_reply_type", TypeInteger, 1},
	{TagItsSessionInfo, "its_session_info", TypeOctetString, 2},
}

func registerStandardOptional(cs *CommandSchema, extra ...TLVDescriptor) {
	for _, d := range standardOptional {
		cs.define(d)
	}
	for _, d := range extra {
		cs.define(d)
	}
}

func init() {
	registerCommand(CommandBindTransmitter, "bind_transmitter", CommandBindTransmitterResp)
	registerCommand(CommandBindReceiver, "bind_receiver", CommandBindReceiverResp)
	registerCommand(CommandBindTransceiver, "bind_transceiver", CommandBindTransceiverResp)
	scVersion := TLVDescriptor{TagSCInterfaceVersion, "sc_interface_version", TypeInteger, 1}
	registerCommand(CommandBindTransmitterResp, "bind_transmitter_resp", 0).define(scVersion)
	registerCommand(CommandBindReceiverResp, "bind_receiver_resp", 0).define(scVersion)
	registerCommand(CommandBindTransceiverResp, "bind_transceiver_resp", 0).define(scVersion)
	registerCommand(CommandOutbind, "outbind", 0)
	registerCommand(CommandUnbind, "unbind", CommandUnbindResp)
	registerCommand(CommandUnbindResp, "unbind_resp", 0)
	registerCommand(CommandEnquireLink, "enquire_link", CommandEnquireLinkResp)
	registerCommand(CommandEnquireLinkResp, "enquire_link_resp", 0)
	registerCommand(CommandGenericNack, "generic_nack", 0)

	submitSM := registerCommand(CommandSubmitSM, "submit_sm", CommandSubmitSMResp)
	registerStandardOptional(submitSM, TLVDescriptor{TagAlertOnMessageDelivery, "alert_on_message_delivery", TypeOctetString, 0})
	registerCommand(CommandSubmitSMResp, "submit_sm_resp", 0)

	deliverSM := registerCommand(CommandDeliverSM, "deliver_sm", CommandDeliverSMResp)
	registerStandardOptional(deliverSM)
	registerCommand(CommandDeliverSMResp, "deliver_sm_resp", 0)

	dataSM := registerCommand(CommandDataSM, "data_sm", CommandDataSMResp)
	registerStandardOptional(dataSM)
	registerCommand(CommandDataSMResp, "data_sm_resp", 0)

	submitMulti := registerCommand(CommandSubmitMulti, "submit_multi", CommandSubmitMultiResp)
	registerStandardOptional(submitMulti)
	registerCommand(CommandSubmitMultiResp, "submit_multi_resp", 0)

	registerCommand(CommandQuerySM, "query_sm", CommandQuerySMResp)
	registerCommand(CommandQuerySMResp, "query_sm_resp", 0)
	registerCommand(CommandReplaceSM, "replace_sm", CommandReplaceSMResp)
	registerCommand(CommandReplaceSMResp, "replace_sm_resp", 0)
	registerCommand(CommandCancelSM, "cancel_sm", CommandCancelSMResp)
	registerCommand(CommandCancelSMResp, "cancel_sm_resp", 0)
	registerCommand(CommandAlertNotification, "alert_notification", 0)
}
