// Package transport moves raw wire frames between this process and
// its peers over UDP.
//
// # Architecture
//
// Transport knows nothing about frame contents; framing, sequencing
// and FEC all live in the wire and reassembly packages. Its only job
// is getting bytes to and from an address with minimal overhead on
// the hot path. It follows the same net.Addr/net.PacketConn
// abstraction used elsewhere in this codebase (no concrete
// *net.UDPAddr) so it can be swapped for an in-memory double in
// tests.
//
// The core abstraction is the Transport interface:
//
//	type Transport interface {
//	    Send(frame []byte, addr net.Addr) error
//	    Close() error
//	    LocalAddr() net.Addr
//	    RegisterHandler(handler FrameHandler)
//	}
//
// # UDP Transport
//
//	t, err := transport.NewUDPTransport(":33445")
//	t.RegisterHandler(func(frame []byte, addr net.Addr) {
//	    // hand frame to the reassembler for addr's peer
//	})
//
// # Thread Safety
//
// UDPTransport uses sync.RWMutex to protect its handler field from
// concurrent RegisterHandler/dispatch access.
//
// # Error Handling
//
// Read timeouts are ignored and other read errors are logged at debug
// level via logrus.WithError rather than propagated, since a single
// malformed or truncated datagram must never stop the receive loop.
package transport
