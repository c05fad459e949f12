package transport

import "net"

// FrameHandler processes one received frame from addr. Frames are
// handed to the handler as-is; decoding happens downstream in the
// reassembly package.
type FrameHandler func(frame []byte, addr net.Addr)

// Transport moves wire frames to and from peer addresses.
type Transport interface {
	// Send transmits frame to addr.
	Send(frame []byte, addr net.Addr) error

	// Close shuts down the transport.
	Close() error

	// LocalAddr returns the local address the transport is listening
	// on.
	LocalAddr() net.Addr

	// RegisterHandler sets the handler invoked for every received
	// frame. A later call replaces the handler rather than adding a
	// second one.
	RegisterHandler(handler FrameHandler)
}
