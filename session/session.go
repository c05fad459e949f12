// Package session owns the multi-peer registry and the concurrency
// harness described in spec §5. Inbound frames reach the right peer
// through the handler registered on the transport, called from the
// transport's own receive loop. Run drives the audio tick across every
// registered peer under an errgroup.Group, together with a goroutine
// that closes the transport once the context ends; the transport's
// receive loop is not part of that group and its read errors are not
// returned by Run.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rtjam/core/clock"
	"github.com/rtjam/core/events"
	"github.com/rtjam/core/jitter"
	"github.com/rtjam/core/peer"
	"github.com/rtjam/core/transport"
)

// TickInterval is the nominal audio tick period: one millisecond, per
// spec §5's "single real-time audio thread drives the tick (nominally
// once per millisecond)".
const TickInterval = time.Millisecond

// Config holds the tunables a Session applies to every peer it
// creates, plus the tick cadence of its own audio thread.
type Config struct {
	PeerConfig   peer.Config
	TickInterval time.Duration
}

// DefaultConfig returns the Config a Session starts with: the
// default per-peer settings and the nominal one-millisecond tick.
func DefaultConfig() Config {
	return Config{
		PeerConfig:   peer.DefaultConfig(),
		TickInterval: TickInterval,
	}
}

// Session is the multi-peer registry and scheduling harness: it owns
// no per-peer state directly (that lives in each peer.Endpoint,
// under that endpoint's own lock) but serializes creation, lookup and
// removal of peers under its own registry lock, which is never held
// while calling into a peer.
//
// Lock order is total: the registry lock is always acquired and
// released before a peer's own lock, never nested the other way, so
// there is no cross-peer or registry/peer lock cycle to deadlock on.
type Session struct {
	transport transport.Transport
	clock     clock.Clock
	sink      *events.Sink
	cfg       Config

	mu    sync.RWMutex
	peers map[string]*peer.Endpoint
}

// New returns a Session sending and receiving over tp, timing every
// peer's watchdog/timeout/resend off clk (a *clock.Monotonic in
// production, a *clock.Manual in tests), and forwarding peer events
// to sink.
func New(tp transport.Transport, clk clock.Clock, sink *events.Sink, cfg Config) *Session {
	s := &Session{
		transport: tp,
		clock:     clk,
		sink:      sink,
		cfg:       cfg,
		peers:     make(map[string]*peer.Endpoint),
	}
	tp.RegisterHandler(s.handleFrame)
	return s
}

// handleFrame is the transport.FrameHandler registered at
// construction: it looks up (or, for a server accepting unsolicited
// peers, creates) the Endpoint for addr and hands it the frame.
func (s *Session) handleFrame(frame []byte, addr net.Addr) {
	s.Peer(addr).Receive(frame)
}

// Peer returns the existing Endpoint for addr, creating one with the
// session's default peer.Config if none exists yet. This is the
// collaborator a server's connection-acceptance path and the inbound
// frame handler both go through, so every addr maps to exactly one
// Endpoint.
func (s *Session) Peer(addr net.Addr) *peer.Endpoint {
	key := addr.String()

	s.mu.RLock()
	p, ok := s.peers[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.peers[key]; ok {
		return p
	}
	p = peer.New(addr, s.transport, s.clock, s.sink, s.cfg.PeerConfig)
	s.peers[key] = p
	logrus.WithFields(logrus.Fields{
		"function": "Session.Peer",
		"addr":     key,
	}).Info("session: peer registered")
	return p
}

// RemovePeer tears down and forgets the Endpoint for addr, if one
// exists. Safe to call more than once.
func (s *Session) RemovePeer(addr net.Addr) {
	key := addr.String()

	s.mu.Lock()
	p, ok := s.peers[key]
	delete(s.peers, key)
	s.mu.Unlock()

	if ok {
		p.Close()
		logrus.WithFields(logrus.Fields{
			"function": "Session.RemovePeer",
			"addr":     key,
		}).Info("session: peer removed")
	}
}

// Peers returns a snapshot of every currently registered Endpoint.
// The registry lock is released before returning, so a caller never
// holds it while calling into a peer, keeping the lock order total.
func (s *Session) Peers() []*peer.Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*peer.Endpoint, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Meters implements jitter.Source, exporting every registered peer's
// jitter meter keyed by its address string.
func (s *Session) Meters() map[string]*jitter.Meter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*jitter.Meter, len(s.peers))
	for addr, p := range s.peers {
		out[addr] = p.Meter()
	}
	return out
}

// HighWater implements jitter.Source, exporting every registered
// peer's receive buffer high-water bucket keyed by its address
// string.
func (s *Session) HighWater() map[string]uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint8, len(s.peers))
	for addr, p := range s.peers {
		out[addr] = p.HighWater()
	}
	return out
}

// Run drives the audio tick loop until ctx is canceled or a fatal
// error occurs, returning that error (or nil on clean shutdown). The
// transport's own receive loop runs independently (started when it
// was constructed) and is not supervised here; Run owns the tick loop
// and closes the transport when ctx ends, returning the error from
// that Close, if any.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tickLoop(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		return s.transport.Close()
	})

	return g.Wait()
}

// tickLoop calls Tick on every registered peer once per
// s.cfg.TickInterval, stopping when ctx is canceled. Each peer's Tick
// serializes on its own lock; the registry lock is only held long
// enough to snapshot the peer list.
func (s *Session) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, p := range s.Peers() {
				p.Tick()
			}
		}
	}
}
