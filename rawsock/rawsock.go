// Package rawsock runs the ICMPv6 engine against a host network stack. It
// implements the engine's downward datagram interface on a raw ICMPv6
// socket and feeds inbound datagrams back into the engine, standing in for
// the embedded IPv6 layer when weft runs on a general-purpose OS.
//
// Raw ICMPv6 sockets need elevated privileges (CAP_NET_RAW on Linux). The
// kernel computes and verifies the ICMPv6 checksum on this socket type, so
// the send path does not finalize checksums itself; the engine still
// re-verifies inbound datagrams against the pseudo-header.
package rawsock

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"

	"github.com/weftmesh/weft/icmp6"
	"github.com/weftmesh/weft/internal/logging"
	"github.com/weftmesh/weft/ip6"
	"github.com/weftmesh/weft/message"
)

// readTimeout bounds each blocking read so Serve observes context
// cancellation.
const readTimeout = time.Second

// Conn is a host ICMPv6 socket. It implements icmp6.DatagramSender.
type Conn struct {
	conn   *icmp.PacketConn
	pc     *ipv6.PacketConn
	pool   *message.Pool
	logger *slog.Logger
}

// Listen opens a raw ICMPv6 socket bound to address ("::" for all
// interfaces) and enables the control messages the engine needs to build
// datagram metadata: destination address and arrival interface.
func Listen(address string, pool *message.Pool, logger *slog.Logger) (*Conn, error) {
	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", address)
	if err != nil {
		return nil, fmt.Errorf("open ICMPv6 socket: %w", err)
	}

	pc := conn.IPv6PacketConn()
	if err := pc.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable control messages: %w", err)
	}

	return &Conn{
		conn:   conn,
		pc:     pc,
		pool:   pool,
		logger: logger.With(slog.String(logging.KeyComponent, "rawsock")),
	}, nil
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// SendDatagram writes the message's content to the peer address and frees
// the message. On failure ownership stays with the caller.
func (c *Conn) SendDatagram(msg *message.Message, info ip6.MessageInfo, proto ip6.ProtocolNumber) error {
	if proto != ip6.ProtoICMP6 {
		return fmt.Errorf("unsupported protocol %d", proto)
	}

	var cm *ipv6.ControlMessage
	if !info.LocalAddr.IsUnspecified() || info.InterfaceID != 0 {
		cm = &ipv6.ControlMessage{IfIndex: int(info.InterfaceID)}
		if !info.LocalAddr.IsUnspecified() {
			cm.Src = net.IP(info.LocalAddr[:])
		}
	}

	dst := &net.IPAddr{IP: net.IP(info.PeerAddr[:])}
	if _, err := c.pc.WriteTo(msg.Bytes(), cm, dst); err != nil {
		return fmt.Errorf("send datagram: %w", err)
	}

	msg.Free()
	return nil
}

// Serve reads inbound ICMPv6 datagrams and hands each to the engine until
// ctx is cancelled. It runs the engine from this single goroutine,
// preserving the engine's single-context contract.
func (c *Conn) Serve(ctx context.Context, engine *icmp6.Engine) error {
	buf := make([]byte, 64*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.pc.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, cm, src, err := c.pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		c.deliver(engine, buf[:n], cm, src)
	}
}

func (c *Conn) deliver(engine *icmp6.Engine, data []byte, cm *ipv6.ControlMessage, src net.Addr) {
	var info ip6.MessageInfo

	ipAddr, ok := src.(*net.IPAddr)
	if !ok || ipAddr.IP.To16() == nil {
		return
	}
	copy(info.PeerAddr[:], ipAddr.IP.To16())

	// Without the destination address the pseudo-header cannot be built
	// and checksum verification would reject the datagram anyway.
	if cm == nil || cm.Dst == nil || cm.Dst.To16() == nil {
		c.logger.Debug("dropped datagram without destination control message",
			slog.String(logging.KeyPeer, info.PeerAddr.String()))
		return
	}
	copy(info.LocalAddr[:], cm.Dst.To16())
	info.InterfaceID = uint32(cm.IfIndex)

	msg, err := c.pool.New(0)
	if err != nil {
		c.logger.Debug("dropped datagram, no buffers",
			slog.String(logging.KeyPeer, info.PeerAddr.String()))
		return
	}
	defer msg.Free()

	if err := msg.SetLength(len(data)); err != nil {
		c.logger.Debug("dropped oversized datagram",
			slog.Int(logging.KeyLength, len(data)),
			slog.String(logging.KeyPeer, info.PeerAddr.String()))
		return
	}
	msg.Write(0, data)

	engine.HandleMessage(msg, info)
}
