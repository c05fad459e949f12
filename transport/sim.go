package transport

import (
	"net"
	"sync"
)

// SimTransport is an in-memory Transport double for deterministic
// end-to-end tests: two SimTransports wired together with Connect
// hand frames directly to each other's registered handler, with no
// socket, goroutine or real network involved. An optional DropFn lets
// a test simulate loss by frame index, the same role a real network's
// packet drops play in the scenarios spec.md §8 describes.
//
// Grounded on the same "simulation stands in for a real transport in
// tests" idea as the teacher's testing package, adapted here to a
// two-sided link so a test can drive a full send/receive round trip
// between two peer.Endpoints without a socket.
type SimTransport struct {
	mu      sync.Mutex
	addr    net.Addr
	peer    *SimTransport
	handler FrameHandler
	closed  bool
	count   int

	// DropFn, if set, is consulted for every Send with the zero-based
	// index of the frame being sent; returning true drops the frame
	// before it ever reaches the peer.
	DropFn func(index int) bool

	// Sent records every frame Send was asked to transmit before Close,
	// including ones DropFn discarded, for a test to inspect afterward.
	Sent [][]byte
}

// NewSimTransport returns a SimTransport identifying itself as addr.
// Call Connect to wire it to its counterpart before use.
func NewSimTransport(addr net.Addr) *SimTransport {
	return &SimTransport{addr: addr}
}

// Connect wires a and b together: a frame sent on one is delivered to
// the other's registered handler, subject to the sender's DropFn.
func Connect(a, b *SimTransport) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Send does nothing once the transport is closed. Otherwise it
// records frame and, unless DropFn discards it, delivers it
// synchronously to the connected peer's handler.
func (s *SimTransport) Send(frame []byte, _ net.Addr) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	index := s.count
	s.count++
	s.Sent = append(s.Sent, append([]byte(nil), frame...))
	drop := s.DropFn != nil && s.DropFn(index)
	peer := s.peer
	from := s.addr
	s.mu.Unlock()

	if drop || peer == nil {
		return nil
	}
	peer.deliver(frame, from)
	return nil
}

func (s *SimTransport) deliver(frame []byte, from net.Addr) {
	s.mu.Lock()
	h := s.handler
	closed := s.closed
	s.mu.Unlock()
	if h != nil && !closed {
		h(frame, from)
	}
}

// Close marks the transport closed; further Sends are silently
// dropped and no more deliveries are accepted.
func (s *SimTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// LocalAddr returns the address this transport was constructed with.
func (s *SimTransport) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// RegisterHandler sets the handler invoked for every frame delivered
// from the connected peer.
func (s *SimTransport) RegisterHandler(h FrameHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}
