package session_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtjam/core/clock"
	"github.com/rtjam/core/jitter"
	"github.com/rtjam/core/session"
	"github.com/rtjam/core/transport"
	"github.com/rtjam/core/wire"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeTransport is an in-memory transport.Transport double: Send
// records frames, Close signals closedCh, and a test can invoke the
// registered handler directly to simulate an inbound datagram.
type fakeTransport struct {
	sent    [][]byte
	handler transport.FrameHandler
	closed  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{closed: make(chan struct{})}
}

func (f *fakeTransport) Send(frame []byte, addr net.Addr) error {
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}
func (f *fakeTransport) Close() error {
	close(f.closed)
	return nil
}
func (f *fakeTransport) LocalAddr() net.Addr { return fakeAddr("local") }
func (f *fakeTransport) RegisterHandler(h transport.FrameHandler) {
	f.handler = h
}

func TestPeerCreatesExactlyOneEndpointPerAddress(t *testing.T) {
	ft := newFakeTransport()
	s := session.New(ft, clock.NewManual(), nil, session.DefaultConfig())

	addr := fakeAddr("1.2.3.4:5000")
	p1 := s.Peer(addr)
	p2 := s.Peer(addr)
	assert.Same(t, p1, p2)
	assert.Len(t, s.Peers(), 1)
}

func TestHandleFrameRoutesToTheRightPeer(t *testing.T) {
	ft := newFakeTransport()
	s := session.New(ft, clock.NewManual(), nil, session.DefaultConfig())

	require.NotNil(t, ft.handler)
	enc := wire.NewEncoder()
	require.NoError(t, enc.Append(&wire.InnerPacket{Type: wire.TypeChatRequest, Payload: []byte("hi")}))
	frame := enc.Finish(wire.NewHeader(0, 0))

	ft.handler(frame, fakeAddr("peerA"))
	assert.Len(t, s.Peers(), 1)
}

func TestRemovePeerClosesAndForgetsIt(t *testing.T) {
	ft := newFakeTransport()
	s := session.New(ft, clock.NewManual(), nil, session.DefaultConfig())

	addr := fakeAddr("peerB")
	p := s.Peer(addr)
	require.True(t, p.Valid())

	s.RemovePeer(addr)
	assert.False(t, p.Valid())
	assert.Len(t, s.Peers(), 0)
}

func TestMetersExportsOneEntryPerPeer(t *testing.T) {
	ft := newFakeTransport()
	s := session.New(ft, clock.NewManual(), nil, session.DefaultConfig())
	s.Peer(fakeAddr("peerA"))
	s.Peer(fakeAddr("peerB"))

	var src jitter.Source = s
	assert.Len(t, src.Meters(), 2)
}

func TestRunDrivesTicksUntilCanceled(t *testing.T) {
	ft := newFakeTransport()
	cfg := session.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	s := session.New(ft, clock.NewMonotonic(), nil, cfg)
	s.Peer(fakeAddr("peerA"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.NoError(t, err)
	assert.NotEmpty(t, ft.sent)

	select {
	case <-ft.closed:
	default:
		t.Fatal("expected transport.Close to be called on shutdown")
	}
}
