// Package icmp6 implements the ICMPv6 control-message engine of the weft
// IPv6 stack: echo request/reply and destination-unreachable handling over
// the stack's shared message-buffer substrate.
//
// # Architecture
//
// One Engine exists per stack instance. The IPv6 layer demultiplexes
// inbound datagrams by next-header and calls Engine.HandleMessage, which
// validates length and the pseudo-header checksum, then routes by message
// type:
//
//   - echo requests are answered in place (when echo serving is enabled)
//   - echo replies go to the registered reply callback
//   - destination-unreachable notifications fan out to registered handlers,
//     most recently registered first
//
// Outbound, SendEchoRequest prepends an echo header to a caller-built
// payload and hands the message to the datagram layer; SendError
// synthesizes rate-limited ICMPv6 error messages.
//
// # State
//
// The engine keeps no per-request state. Echo requests all carry
// identifier 1 and a sequence counter that wraps at 65535; correlating a
// reply with a request, and timing out an exchange, are the caller's
// responsibility.
//
// # Concurrency
//
// The engine is driven by a single network-processing context and has no
// internal locking. Serialize external calls onto that context.
//
// # Configuration
//
//	icmp6:
//	  echo_enabled: true
//	  error_rate: 1
//	  error_burst: 10
package icmp6
