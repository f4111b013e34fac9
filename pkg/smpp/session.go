package smpp

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/smpp-esme/internal/negotiate"
)

// SessionState is one point in the bind-state machine: a client moves from
// Closed through Open into exactly one bound state, optionally through
// Unbinding, and back to Closed.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpen
	StateBoundTX
	StateBoundRX
	StateBoundTRX
	StateUnbinding
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateBoundTX:
		return "bound_tx"
	case StateBoundRX:
		return "bound_rx"
	case StateBoundTRX:
		return "bound_trx"
	case StateUnbinding:
		return "unbinding"
	default:
		return "unknown"
	}
}

// Config configures a Client. Only Host, Port, SystemID and Password are
// required; everything else has a workable default.
type Config struct {
	Host string
	Port int

	UseTLS    bool
	TLSConfig *tls.Config

	SystemID     string
	Password     string
	SystemType   string
	AddrTON      byte
	AddrNPI      byte
	AddressRange string

	InterfaceVersion byte

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// SequenceGenerator, when nil, defaults to NewSequenceGenerator(). A
	// caller who wants persisted or externally-coordinated sequence
	// numbers supplies their own (see PersistentSequenceGenerator).
	SequenceGenerator SequenceGenerator
	Logger            Logger
	MetricsCollector  MetricsCollector
}

// DefaultConfig returns a Config with SMPP 3.4 and commonly-used timeout
// defaults; the caller still must fill in Host, Port, SystemID, Password.
func DefaultConfig() Config {
	return Config{
		SystemType:       "SMPP",
		InterfaceVersion: SMPPVersion,
		ConnectTimeout:   10 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Handler processes one PDU. For received PDUs it runs on whichever
// goroutine is reading (usually the Listen goroutine), and the override
// return value, when true, replaces the default ESME_ROK status the session
// engine would otherwise use for the PDU's auto-response; it is ignored for
// PDUs that don't get one (responses, enquire_link_resp, and the like).
// For outgoing PDUs it runs on the caller's goroutine just before the frame
// is written, and the return values are ignored. Handlers must treat the
// PDU as read-only.
type Handler func(p *PDU) (status uint32, override bool)

// CallbackTable holds the per-command-id handlers plus a wildcard handler
// that catches received PDUs no command-specific handler claims. Exactly
// one handler fires per received PDU. This is the client's entire
// notification surface: there is no separate event bus.
type CallbackTable struct {
	handlers map[uint32]Handler
	wildcard Handler
}

// On registers a handler for one command id (e.g. CommandDeliverSM).
func (t *CallbackTable) On(commandID uint32, h Handler) {
	if t.handlers == nil {
		t.handlers = map[uint32]Handler{}
	}
	t.handlers[commandID] = h
}

// OnAny registers the wildcard handler, invoked for a received PDU only
// when no command-specific handler is registered for its command id; a
// handler registered with On takes the PDU instead.
func (t *CallbackTable) OnAny(h Handler) { t.wildcard = h }

// Client is a single SMPP 3.4 ESME session: one TCP (optionally TLS)
// connection, one bind state, blocking synchronous I/O. It does not spawn
// goroutines on its own; a caller that wants Listen running concurrently
// with outbound calls starts that goroutine itself and is responsible for
// not calling two blocking Client methods at once (Client serializes
// writes internally, so the usual split of one goroutine inside Listen and
// another issuing SubmitSM works; two goroutines both reading do not).
type Client struct {
	cfg    Config
	ID     string
	logger Logger
	metric MetricsCollector
	seq    SequenceGenerator

	conn   net.Conn
	reader *bufio.Reader

	writeMu           sync.Mutex
	stateMu           sync.RWMutex
	state             SessionState
	negotiatedVersion byte

	Callbacks CallbackTable
}

// NewClient builds a Client from cfg without connecting. The session's
// generated ID is stamped onto every log line via the Logger's WithFields.
func NewClient(cfg Config) *Client {
	seq := cfg.SequenceGenerator
	if seq == nil {
		seq = NewSequenceGenerator()
	}
	id := uuid.NewString()
	logger := cfg.Logger
	if logger != nil {
		logger = logger.WithFields(map[string]interface{}{"session_id": id})
	}
	return &Client{
		cfg:    cfg,
		ID:     id,
		logger: logger,
		metric: cfg.MetricsCollector,
		seq:    seq,
		state:  StateClosed,
	}
}

func (c *Client) setState(s SessionState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	if c.metric != nil {
		c.metric.SetSessionState(s.String())
	}
}

// State returns the session's current bind state.
func (c *Client) State() SessionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) requireState(op string, allowed ...SessionState) error {
	cur := c.State()
	for _, s := range allowed {
		if cur == s {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = s.String()
	}
	return &StateError{Op: op, State: cur, Expected: fmt.Sprint(names)}
}

// Connect opens the underlying TCP (or TLS, if cfg.UseTLS) connection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.requireState("connect", StateClosed); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}

	var conn net.Conn
	var err error
	if c.cfg.UseTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: c.cfg.TLSConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return &ConnectionError{Op: "dial " + addr, Err: err}
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.negotiatedVersion = c.cfg.InterfaceVersion
	c.setState(StateOpen)
	if c.logger != nil {
		c.logger.Info("connected", "addr", addr, "tls", c.cfg.UseTLS)
	}
	return nil
}

// Disconnect closes the underlying connection unconditionally, regardless
// of bind state. It is always safe to call.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.conn == nil {
		c.setState(StateClosed)
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.setState(StateClosed)
	if err != nil {
		return &ConnectionError{Op: "disconnect", Err: err}
	}
	return nil
}

func (c *Client) applyDeadline(ctx context.Context, d time.Duration, set func(time.Time) error) {
	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	set(deadline)
}

func (c *Client) send(p *PDU) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return &StateError{Op: "send", State: StateClosed, Expected: "open or bound"}
	}
	c.applyDeadline(context.Background(), c.cfg.WriteTimeout, c.conn.SetWriteDeadline)
	if _, err := c.conn.Write(data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	if c.metric != nil {
		if cs, ok := SchemaFor(p.Header.CommandID); ok {
			c.metric.IncPDUSent(cs.Name)
		}
	}
	return nil
}

// nextSequenced assigns the next sequence number to a freshly-built PDU.
func (c *Client) nextSequenced(body Body) *PDU {
	p := NewPDU(body)
	p.Header.SequenceNumber = c.seq.Next()
	return p
}

// SendPDU assigns a sequence number (unless the caller already set one),
// fires the command's handler on this goroutine, writes the frame, and
// returns the sequence number. It does not wait for the response; that
// arrives through the read loop and the callback table. This is the
// low-level path under every fire-and-forget command method, exported for
// callers who need an explicit sequence number or a PDU with optional
// parameters attached.
func (c *Client) SendPDU(ctx context.Context, p *PDU) (uint32, error) {
	if p.Header.SequenceNumber == 0 {
		p.Header.SequenceNumber = c.seq.Next()
	}
	if h, ok := c.Callbacks.handlers[p.Body.CommandID()]; ok {
		h(p)
	}
	if err := c.send(p); err != nil {
		return 0, err
	}
	return p.Header.SequenceNumber, nil
}

// call sends a request PDU and blocks, dispatching every other PDU it
// reads in the meantime (auto-responding, invoking callbacks) until the
// matching response for this sequence number arrives.
func (c *Client) call(ctx context.Context, body Body) (*PDU, error) {
	cs, ok := SchemaFor(body.CommandID())
	if !ok || cs.RespID == 0 {
		return nil, fmt.Errorf("smpp: command 0x%08X has no response to wait for", body.CommandID())
	}
	req := c.nextSequenced(body)
	if h, ok := c.Callbacks.handlers[req.Body.CommandID()]; ok {
		h(req)
	}
	start := time.Now()
	if err := c.send(req); err != nil {
		return nil, err
	}
	for {
		pdu, err := c.readOne(ctx)
		if err != nil {
			return nil, err
		}
		if pdu == nil {
			continue // frame was unparseable and already nacked; keep waiting
		}
		if pdu.Header.CommandID == cs.RespID && pdu.Header.SequenceNumber == req.Header.SequenceNumber {
			if c.metric != nil {
				c.metric.ObserveRoundTrip(cs.Name, time.Since(start))
			}
			if pdu.Header.CommandStatus != StatusOK {
				return pdu, &DecodingError{CommandID: pdu.Header.CommandID, Status: pdu.Header.CommandStatus, Sequence: pdu.Header.SequenceNumber}
			}
			return pdu, nil
		}
		// Not our response (e.g. an interleaved deliver_sm); already
		// dispatched by readOne. Keep waiting for the real response.
	}
}

func classifyNackStatus(err error) uint32 {
	var de *DecodingError
	if errors.As(err, &de) {
		return StatusInvCmdID
	}
	return StatusSysErr
}

func (c *Client) sendGenericNack(seq uint32, status uint32) {
	nack := NewPDU(&GenericNack{})
	nack.Header.SequenceNumber = seq
	nack.Header.CommandStatus = status
	_ = c.send(nack)
}

func (c *Client) autoRespond(p *PDU, status uint32) {
	cs, ok := SchemaFor(p.Header.CommandID)
	if !ok || cs.RespID == 0 {
		return
	}
	resp := NewPDU(newBodyForCommand(cs.RespID))
	resp.Header.SequenceNumber = p.Header.SequenceNumber
	resp.Header.CommandStatus = status
	if err := c.send(resp); err != nil && c.logger != nil {
		c.logger.Warn("failed to send auto-response", "command", cs.Name, "error", err)
	}
}

func (c *Client) dispatch(p *PDU) {
	status := StatusOK
	h, ok := c.Callbacks.handlers[p.Header.CommandID]
	if !ok {
		h = c.Callbacks.wildcard
	}
	if h != nil {
		if s, override := h(p); override {
			status = s
		}
	}
	c.autoRespond(p, status)
}

// readOne reads and dispatches exactly one frame. It returns (nil, nil)
// when the frame was unparseable and already answered with generic_nack,
// signaling the caller to read again rather than treating it as fatal.
func (c *Client) readOne(ctx context.Context) (*PDU, error) {
	if c.conn == nil {
		return nil, &StateError{Op: "read", State: StateClosed, Expected: "open or bound"}
	}
	c.applyDeadline(ctx, c.cfg.ReadTimeout, c.conn.SetReadDeadline)
	p, err := ReadPDU(c.reader)
	if err != nil {
		var de *DecodingError
		if errors.As(err, &de) && de.CommandID != 0 {
			c.sendGenericNack(de.Sequence, classifyNackStatus(err))
			return nil, nil
		}
		return nil, err
	}
	if c.metric != nil {
		if cs, ok := SchemaFor(p.Header.CommandID); ok {
			c.metric.IncPDUReceived(cs.Name)
		}
	}
	c.dispatch(p)

	// An unbind from either side ends the session: the unbind_resp (ours,
	// auto-generated just above; or the peer's, answering the unbind we
	// sent) is the last PDU this connection will carry.
	switch p.Header.CommandID {
	case CommandUnbind, CommandUnbindResp:
		_ = c.Disconnect(ctx)
	}
	return p, nil
}

// ReadOnePDU reads, auto-responds to, and dispatches exactly one PDU to
// the callback table, returning it to the caller for logging or
// additional handling. It returns (nil, nil) only when the frame could not
// be decoded at all and was answered with generic_nack — callers wanting a
// strict "always get a real PDU" loop should call it in a loop like Listen
// does.
func (c *Client) ReadOnePDU(ctx context.Context) (*PDU, error) {
	return c.readOne(ctx)
}

// Listen blocks, repeatedly calling ReadOnePDU, until the session unbinds
// (either side), ctx is canceled, or a connection-level error occurs. It is
// meant to run in its own goroutine while the caller continues to issue
// requests on the same Client; Client serializes writes, so that split is
// safe as long as the caller doesn't also call ReadOnePDU concurrently from
// elsewhere.
func (c *Client) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := c.ReadOnePDU(ctx); err != nil {
			return err
		}
		if c.State() == StateClosed {
			return nil
		}
	}
}

func (c *Client) bind(ctx context.Context, req *BindRequest, want SessionState) error {
	if err := c.requireState("bind", StateOpen); err != nil {
		return err
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		if c.metric != nil {
			c.metric.IncBindFailure()
		}
		return err
	}
	c.setState(want)
	if c.metric != nil {
		c.metric.IncBindSuccess()
	}
	if scVersion, ok := resp.OptionalUint("sc_interface_version"); ok {
		negotiated := negotiate.Version(c.cfg.InterfaceVersion, byte(scVersion))
		if negotiated != c.negotiatedVersion && c.logger != nil {
			c.logger.Info("negotiated interface version", "sent", c.cfg.InterfaceVersion, "sc_interface_version", scVersion, "negotiated", negotiated)
		}
		c.negotiatedVersion = negotiated
	}
	return nil
}

// NegotiatedVersion returns the SMPP interface version in effect after a
// successful bind: the lower of what this client sent and what the SMSC
// reported back in sc_interface_version, clamped to 3.4 (this library
// implements no SMPP 5.0 feature, so it never negotiates up to it).
func (c *Client) NegotiatedVersion() byte { return c.negotiatedVersion }

// BindTransmitter binds as a transmitter, permitting submit_sm, submit_multi,
// data_sm, query_sm, replace_sm, cancel_sm but not receiving deliver_sm.
func (c *Client) BindTransmitter(ctx context.Context) error {
	req := NewBindTransmitter(c.cfg.SystemID, c.cfg.Password, c.cfg.SystemType, c.cfg.AddrTON, c.cfg.AddrNPI, c.cfg.AddressRange)
	req.InterfaceVersion = c.cfg.InterfaceVersion
	return c.bind(ctx, req, StateBoundTX)
}

// BindReceiver binds as a receiver, permitting only inbound deliver_sm and
// the session keepalive.
func (c *Client) BindReceiver(ctx context.Context) error {
	req := NewBindReceiver(c.cfg.SystemID, c.cfg.Password, c.cfg.SystemType, c.cfg.AddrTON, c.cfg.AddrNPI, c.cfg.AddressRange)
	req.InterfaceVersion = c.cfg.InterfaceVersion
	return c.bind(ctx, req, StateBoundRX)
}

// BindTransceiver binds as a transceiver, permitting both directions over
// one connection.
func (c *Client) BindTransceiver(ctx context.Context) error {
	req := NewBindTransceiver(c.cfg.SystemID, c.cfg.Password, c.cfg.SystemType, c.cfg.AddrTON, c.cfg.AddrNPI, c.cfg.AddressRange)
	req.InterfaceVersion = c.cfg.InterfaceVersion
	return c.bind(ctx, req, StateBoundTRX)
}

func (c *Client) requireSendCapable(op string) error {
	return c.requireState(op, StateBoundTX, StateBoundTRX)
}

func (c *Client) requireBound(op string) error {
	return c.requireState(op, StateBoundTX, StateBoundRX, StateBoundTRX)
}

// SubmitSM submits a short message for delivery to one destination and
// returns the assigned sequence number. The submit_sm_resp carrying the
// SMSC's message_id arrives through the read loop; register a
// CommandSubmitSMResp handler to see it.
func (c *Client) SubmitSM(ctx context.Context, req *SubmitSM) (uint32, error) {
	if err := c.requireSendCapable("submit_sm"); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(req))
}

// SubmitMulti submits a short message to a list of destinations.
func (c *Client) SubmitMulti(ctx context.Context, req *SubmitMulti) (uint32, error) {
	if err := c.requireSendCapable("submit_multi"); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(req))
}

// DataSM sends a datagram-style short message, typically carrying its text
// in the message_payload optional parameter rather than inline. Use
// SendPDU directly to attach that parameter.
func (c *Client) DataSM(ctx context.Context, req *DataSM) (uint32, error) {
	if err := c.requireSendCapable("data_sm"); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(req))
}

// QuerySM asks the SMSC for the current status of a previously submitted
// message.
func (c *Client) QuerySM(ctx context.Context, req *QuerySM) (uint32, error) {
	if err := c.requireSendCapable("query_sm"); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(req))
}

// ReplaceSM replaces the text and delivery attributes of an outstanding
// message.
func (c *Client) ReplaceSM(ctx context.Context, req *ReplaceSM) (uint32, error) {
	if err := c.requireSendCapable("replace_sm"); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(req))
}

// CancelSM cancels an outstanding message.
func (c *Client) CancelSM(ctx context.Context, req *CancelSM) (uint32, error) {
	if err := c.requireSendCapable("cancel_sm"); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(req))
}

// EnquireLink sends the session keepalive and returns without waiting; the
// enquire_link_resp is consumed by the read loop. Usable while merely Open
// if a caller wants to probe liveness before binding.
func (c *Client) EnquireLink(ctx context.Context) (uint32, error) {
	if err := c.requireState("enquire_link", StateOpen, StateBoundTX, StateBoundRX, StateBoundTRX); err != nil {
		return 0, err
	}
	return c.SendPDU(ctx, NewPDU(&EnquireLink{}))
}

// Keepalive blocks, sending EnquireLink every interval until ctx is
// canceled or a send fails. Like Listen, it is meant to run in its own
// goroutine alongside the caller's other calls on this Client.
func (c *Client) Keepalive(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.EnquireLink(ctx); err != nil {
				return err
			}
		}
	}
}

// Unbind writes an unbind request and returns; it does not close the
// socket. The read loop disconnects the session when the peer's
// unbind_resp arrives, so a caller not running Listen should follow Unbind
// with ReadOnePDU until State() reports closed.
func (c *Client) Unbind(ctx context.Context) (uint32, error) {
	if err := c.requireBound("unbind"); err != nil {
		return 0, err
	}
	c.setState(StateUnbinding)
	return c.SendPDU(ctx, NewPDU(&Unbind{}))
}
