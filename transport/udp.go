package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtjam/core/wire"
)

// UDPTransport implements Transport over a UDP socket.
type UDPTransport struct {
	conn       net.PacketConn
	listenAddr net.Addr

	mu      sync.RWMutex
	handler FrameHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUDPTransport creates a new UDP transport listening on listenAddr
// (e.g. ":33445") and starts its receive loop.
func NewUDPTransport(listenAddr string) (Transport, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &UDPTransport{
		conn:       conn,
		listenAddr: conn.LocalAddr(),
		ctx:        ctx,
		cancel:     cancel,
	}

	go t.receiveLoop()

	return t, nil
}

// RegisterHandler sets the handler invoked for every received frame.
func (t *UDPTransport) RegisterHandler(handler FrameHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Send transmits frame to addr.
func (t *UDPTransport) Send(frame []byte, addr net.Addr) error {
	_, err := t.conn.WriteTo(frame, addr)
	return err
}

// Close shuts down the transport.
func (t *UDPTransport) Close() error {
	t.cancel()
	return t.conn.Close()
}

// LocalAddr returns the local address the transport is listening on.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// receiveLoop reads datagrams until Close is called, dispatching each
// to the registered handler synchronously: a single network thread
// receiving UDP keeps frames from the same peer arriving at the
// reassembler in the order they arrived on the wire.
func (t *UDPTransport) receiveLoop() {
	buffer := make([]byte, wire.MaxUDP)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			t.receiveOne(buffer)
		}
	}
}

// receiveOne reads and dispatches a single datagram.
func (t *UDPTransport) receiveOne(buffer []byte) {
	_ = t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	n, addr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		logrus.WithError(err).Debug("transport: read failed")
		return
	}

	frame := make([]byte, n)
	copy(frame, buffer[:n])

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()

	if handler != nil {
		handler(frame, addr)
	}
}
