package icmp6

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/weftmesh/weft/internal/logging"
	"github.com/weftmesh/weft/internal/recovery"
	"github.com/weftmesh/weft/ip6"
	"github.com/weftmesh/weft/message"
	"github.com/weftmesh/weft/metrics"
)

// EchoIdent is the identifier written into outgoing echo requests. The
// engine keeps no per-request state, so a fixed identifier is sufficient;
// callers correlate replies themselves.
const EchoIdent uint16 = 1

// ErrHandlerRegistered is returned when a destination-unreachable handler
// is registered a second time.
var ErrHandlerRegistered = errors.New("handler already registered")

// DatagramSender is the downward interface to the IPv6 datagram layer.
//
// SendDatagram takes ownership of msg on success; on failure ownership
// stays with the caller. Implementations backed by the stack's own IPv6
// send path must finalize the transport checksum once the source address
// is fixed, by calling Engine.UpdateChecksum with the pseudo-header seed.
// Implementations backed by host ICMPv6 sockets can leave that to the
// kernel.
type DatagramSender interface {
	SendDatagram(msg *message.Message, info ip6.MessageInfo, proto ip6.ProtocolNumber) error
}

// UnreachableHandler is notified of inbound destination-unreachable
// datagrams. The handler does not own msg and must not retain it past the
// call; the message cursor is positioned just past the base ICMPv6 header,
// so the visible payload is the offending original datagram fragment.
type UnreachableHandler interface {
	HandleDestinationUnreachable(msg *message.Message, info ip6.MessageInfo, hdr Header)
}

// EchoReplyHandler receives inbound echo replies. The handler does not own
// msg; its cursor still covers the full ICMPv6 datagram.
type EchoReplyHandler func(msg *message.Message, info ip6.MessageInfo)

// Engine validates, interprets, and synthesizes ICMPv6 control datagrams
// for one stack instance.
//
// The engine is single-threaded by contract: it assumes one network
// processing context per stack instance and provides no internal locking.
// Concurrent calls on the same engine require external serialization.
// Handler registration is expected during setup, not concurrently with
// inbound dispatch.
type Engine struct {
	sender  DatagramSender
	pool    *message.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics

	handlers     []UnreachableHandler
	replyHandler EchoReplyHandler
	echoSeq      uint16
	echoEnabled  bool
	errLimiter   *rate.Limiter
}

// New creates an ICMPv6 engine that sends through sender and allocates
// reply and error messages from pool. A nil m uses the default metrics
// instance.
func New(sender DatagramSender, pool *message.Pool, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.Default()
	}
	return &Engine{
		sender:      sender,
		pool:        pool,
		logger:      logger.With(slog.String(logging.KeyComponent, "icmp6")),
		metrics:     m,
		echoSeq:     1,
		echoEnabled: cfg.EchoEnabled,
		errLimiter:  rate.NewLimiter(rate.Limit(cfg.ErrorRate), cfg.ErrorBurst),
	}
}

// NewMessage allocates a message with headroom for the ICMPv6 echo header
// and the lower layers, plus reserved extra bytes.
func (e *Engine) NewMessage(reserved int) (*message.Message, error) {
	return e.pool.New(ip6.HeaderSize + EchoHeaderSize + reserved)
}

// RegisterUnreachableHandler adds h to the notification chain. The engine
// holds a non-owning reference for the rest of its lifetime; there is no
// deregistration. The most recently registered handler is notified first.
// Registering the same handler twice returns ErrHandlerRegistered and
// leaves the chain unchanged. Uniqueness is by identity, so h must have a
// comparable dynamic type (a pointer, typically).
func (e *Engine) RegisterUnreachableHandler(h UnreachableHandler) error {
	for _, cur := range e.handlers {
		if cur == h {
			return ErrHandlerRegistered
		}
	}
	e.handlers = append([]UnreachableHandler{h}, e.handlers...)
	return nil
}

// SetEchoReplyHandler sets the callback invoked for inbound echo replies.
// Passing nil clears it. Callback context goes into the closure.
func (e *Engine) SetEchoReplyHandler(fn EchoReplyHandler) {
	e.replyHandler = fn
}

// SetEchoEnabled controls whether echo requests are answered and echo
// replies delivered.
func (e *Engine) SetEchoEnabled(enabled bool) {
	e.echoEnabled = enabled
}

// IsEchoEnabled reports whether echo serving is enabled.
func (e *Engine) IsEchoEnabled() bool {
	return e.echoEnabled
}

// SendEchoRequest prepends an echo request header to msg, whose content is
// the desired echo payload, and sends it. The sequence counter advances on
// every call and wraps at 65535. On failure the caller keeps ownership of
// msg and must release it.
func (e *Engine) SendEchoRequest(msg *message.Message, info ip6.MessageInfo) error {
	var buf [EchoHeaderSize]byte
	hdr := Header(buf[:])
	hdr.SetType(TypeEchoRequest)
	hdr.SetIdent(EchoIdent)
	hdr.SetSequence(e.echoSeq)
	e.echoSeq++

	if err := msg.Prepend(buf[:]); err != nil {
		return fmt.Errorf("prepend echo header: %w", err)
	}
	msg.SetOffset(0)

	if err := e.sender.SendDatagram(msg, info, ip6.ProtoICMP6); err != nil {
		return err
	}

	e.metrics.EchoRequestsSent.Inc()
	e.logger.Info("sent echo request",
		slog.String(logging.KeyPeer, info.PeerAddr.String()),
		slog.Uint64(logging.KeySequence, uint64(hdr.Sequence())))
	return nil
}

// SendError sends an ICMPv6 error message of the given type and code to
// dst, carrying original (the leading bytes of the offending datagram) as
// its payload. Errors beyond the configured rate are silently suppressed.
// Allocation failure returns message.ErrNoBufs wrapped; on any failure
// after allocation the message is freed before returning.
func (e *Engine) SendError(dst ip6.Address, typ Type, code byte, original []byte) error {
	if !e.errLimiter.Allow() {
		e.metrics.ErrorsThrottled.Inc()
		e.logger.Debug("error message suppressed by rate limit",
			slog.String(logging.KeyPeer, dst.String()))
		return nil
	}

	msg, err := e.pool.New(ip6.HeaderSize)
	if err != nil {
		return fmt.Errorf("allocate error message: %w", err)
	}
	if err := msg.SetLength(HeaderSize + len(original)); err != nil {
		msg.Free()
		return fmt.Errorf("error payload too large: %w", err)
	}

	msg.Write(HeaderSize, original)

	var buf [HeaderSize]byte
	hdr := Header(buf[:])
	hdr.SetType(typ)
	hdr.SetCode(code)
	msg.Write(0, buf[:])

	info := ip6.MessageInfo{PeerAddr: dst}
	if err := e.sender.SendDatagram(msg, info, ip6.ProtoICMP6); err != nil {
		msg.Free()
		return err
	}

	e.metrics.ErrorsSent.Inc()
	e.logger.Info("sent ICMPv6 error",
		slog.Uint64(logging.KeyType, uint64(typ)),
		slog.Uint64(logging.KeyCode, uint64(code)),
		slog.String(logging.KeyPeer, dst.String()))
	return nil
}

// UpdateChecksum finalizes the transport checksum of an outgoing message:
// it folds the checksum over the message content from the cursor to the
// end, starting from the pseudo-header seed, complements the result unless
// it is already 0xffff, and writes it big-endian into the checksum field.
// The checksum field must be zero when this is called.
func (e *Engine) UpdateChecksum(msg *message.Message, seed uint16) {
	sum := msg.UpdateChecksum(seed, msg.Offset(), msg.Length()-msg.Offset())
	if sum != 0xffff {
		sum = ^sum
	}
	var buf [2]byte
	buf[0] = byte(sum >> 8)
	buf[1] = byte(sum)
	msg.Write(msg.Offset()+ChecksumOffset, buf[:])
}

// HandleMessage validates an inbound ICMPv6 datagram and routes it by
// message type. Malformed or corrupt datagrams are dropped silently:
// untrusted traffic must neither destabilize the stack nor learn from
// error signals. The caller retains ownership of msg.
func (e *Engine) HandleMessage(msg *message.Message, info ip6.MessageInfo) {
	e.metrics.DatagramsReceived.Inc()

	payloadLength := msg.Length() - msg.Offset()
	if payloadLength < HeaderSize {
		e.metrics.DatagramsDropped.WithLabelValues(metrics.DropTruncated).Inc()
		e.logger.Debug("dropped truncated datagram",
			slog.Int(logging.KeyLength, payloadLength),
			slog.String(logging.KeyPeer, info.PeerAddr.String()))
		return
	}

	var buf [EchoHeaderSize]byte
	msg.Read(msg.Offset(), buf[:])
	hdr := Header(buf[:])

	seed := ip6.PseudoHeaderChecksum(info.PeerAddr, info.LocalAddr, uint16(payloadLength), ip6.ProtoICMP6)
	if msg.UpdateChecksum(seed, msg.Offset(), payloadLength) != 0xffff {
		e.metrics.DatagramsDropped.WithLabelValues(metrics.DropBadChecksum).Inc()
		e.logger.Debug("dropped datagram with bad checksum",
			slog.String(logging.KeyPeer, info.PeerAddr.String()))
		return
	}

	switch hdr.Type() {
	case TypeEchoRequest:
		e.handleEchoRequest(msg, info)
	case TypeEchoReply:
		e.handleEchoReply(msg, info)
	case TypeDestinationUnreachable:
		e.dispatchUnreachable(msg, info, hdr)
	default:
		// Unrecognized types are ignored, not errors.
	}
}

func (e *Engine) dispatchUnreachable(msg *message.Message, info ip6.MessageInfo, hdr Header) {
	msg.MoveOffset(HeaderSize)
	e.metrics.UnreachableNotifications.Inc()

	for _, h := range e.handlers {
		e.notifyUnreachable(h, msg, info, hdr)
	}
}

// notifyUnreachable invokes one externally-owned handler. The handler code
// is not under this subsystem's control, so a panic in it is contained
// here rather than allowed to unwind inbound processing.
func (e *Engine) notifyUnreachable(h UnreachableHandler, msg *message.Message, info ip6.MessageInfo, hdr Header) {
	defer recovery.RecoverWithLog(e.logger, "unreachable handler")
	h.HandleDestinationUnreachable(msg, info, hdr)
}

func (e *Engine) handleEchoRequest(req *message.Message, info ip6.MessageInfo) {
	if !e.echoEnabled {
		return
	}
	e.metrics.EchoRequestsReceived.Inc()
	e.logger.Debug("received echo request",
		slog.String(logging.KeyPeer, info.PeerAddr.String()))

	payloadLength := req.Length() - req.Offset() - EchoHeaderSize
	if payloadLength < 0 {
		// Valid base header but shorter than an echo header.
		e.metrics.DatagramsDropped.WithLabelValues(metrics.DropTruncated).Inc()
		return
	}

	reply, err := e.pool.New(ip6.HeaderSize)
	if err != nil {
		// Resource exhaustion must not propagate into the inbound
		// path; the request counts as handled.
		e.metrics.ReplyAllocFailures.Inc()
		e.logger.Debug("echo reply not sent", slog.Any(logging.KeyError, err))
		return
	}
	if err := reply.SetLength(EchoHeaderSize + payloadLength); err != nil {
		reply.Free()
		e.metrics.ReplyAllocFailures.Inc()
		e.logger.Debug("echo reply not sent", slog.Any(logging.KeyError, err))
		return
	}

	var buf [EchoHeaderSize]byte
	reqHdr := Header(buf[:])
	req.Read(req.Offset(), buf[:])

	var replyBuf [EchoHeaderSize]byte
	replyHdr := Header(replyBuf[:])
	replyHdr.SetType(TypeEchoReply)
	replyHdr.SetIdent(reqHdr.Ident())
	replyHdr.SetSequence(reqHdr.Sequence())
	reply.Write(0, replyBuf[:])

	req.CopyTo(req.Offset()+EchoHeaderSize, EchoHeaderSize, payloadLength, reply)

	replyInfo := ip6.MessageInfo{PeerAddr: info.PeerAddr, InterfaceID: info.InterfaceID}
	if !info.LocalAddr.IsMulticast() {
		// A multicast-addressed request leaves the reply source
		// unspecified so the lower layer selects one.
		replyInfo.LocalAddr = info.LocalAddr
	}

	if err := e.sender.SendDatagram(reply, replyInfo, ip6.ProtoICMP6); err != nil {
		reply.Free()
		e.logger.Debug("echo reply send failed", slog.Any(logging.KeyError, err))
		return
	}

	e.metrics.EchoRepliesSent.Inc()
	e.logger.Info("sent echo reply",
		slog.String(logging.KeyPeer, info.PeerAddr.String()),
		slog.Uint64(logging.KeySequence, uint64(replyHdr.Sequence())))
}

func (e *Engine) handleEchoReply(msg *message.Message, info ip6.MessageInfo) {
	if !e.echoEnabled || e.replyHandler == nil {
		return
	}
	e.metrics.EchoRepliesReceived.Inc()
	e.deliverEchoReply(msg, info)
}

func (e *Engine) deliverEchoReply(msg *message.Message, info ip6.MessageInfo) {
	defer recovery.RecoverWithLog(e.logger, "echo reply handler")
	e.replyHandler(msg, info)
}
