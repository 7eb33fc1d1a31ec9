package queue

import (
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/auth"
	"github.com/danmuck/clipqueue/internal/observability"
	"github.com/danmuck/clipqueue/internal/protocol"
	"github.com/danmuck/clipqueue/internal/protocol/frame"
)

// peerHandle is the host-side record for one authenticated client.
type peerHandle struct {
	id   string
	name *string
	addr *string
	conn net.Conn
	out  chan []byte
}

// hostEngine accepts inbound connections, authenticates them and
// relays clipboard items between all connected peers.
type hostEngine struct {
	q        *Queue
	ln       net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	verifier auth.Verifier
	limits   frame.Limits
	depth    int
	timeout  time.Duration

	// mu guards peers and conns only; it is never held across
	// network I/O or calls back into Queue state.
	mu    sync.Mutex
	peers map[string]*peerHandle
	conns map[net.Conn]struct{}
}

func newHostEngine(q *Queue, ln net.Listener, password string) *hostEngine {
	ctx, cancel := context.WithCancel(context.Background())
	return &hostEngine{
		q:        q,
		ln:       ln,
		ctx:      ctx,
		cancel:   cancel,
		verifier: auth.NewPasswordVerifier(password),
		limits:   q.cfg.Frame,
		depth:    q.cfg.SendQueueDepth,
		timeout:  q.cfg.HandshakeTimeout,
		peers:    make(map[string]*peerHandle),
		conns:    make(map[net.Conn]struct{}),
	}
}

// stop signals shutdown and unblocks the accept loop and every
// connection blocked on read. Safe to call more than once.
func (e *hostEngine) stop() {
	e.cancel()
	_ = e.ln.Close()
	e.closeAllConns()
}

func (e *hostEngine) acceptLoop() {
	defer e.ln.Close()
	go func() {
		<-e.ctx.Done()
		_ = e.ln.Close()
		e.closeAllConns()
	}()

	for {
		conn, err := e.ln.Accept()
		if err != nil {
			if e.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("accept failed, stopping host listener")
			return
		}
		e.trackConn(conn)
		go e.handleConn(conn)
	}
}

// handleConn runs one accepted connection: await-auth, authenticate,
// then the relay loop until error or shutdown.
func (e *hostEngine) handleConn(conn net.Conn) {
	defer conn.Close()
	defer e.untrackConn(conn)
	remote := conn.RemoteAddr().String()

	_ = conn.SetDeadline(time.Now().Add(e.timeout))
	payload, err := frame.ReadPayload(conn, e.limits)
	if err != nil {
		log.Debug().Err(err).Str("remote", remote).Msg("handshake read failed")
		return
	}
	req, err := protocol.DecodeAuthRequest(payload)
	if err != nil {
		// Protocol violation before auth: drop with no response.
		log.Warn().Err(err).Str("remote", remote).Msg("invalid handshake frame")
		return
	}

	if err := e.verifier.Verify(req.Password); err != nil {
		observability.RecordAuthFailure()
		log.Warn().Str("remote", remote).Str("client_id", req.ClientID).Msg("auth rejected")
		reason := "invalid password"
		resp, _ := protocol.EncodeAuthResponse(protocol.AuthResponse{OK: false, Reason: &reason})
		_ = frame.WritePayload(conn, resp, e.limits)
		return
	}

	resp, _ := protocol.EncodeAuthResponse(protocol.AuthResponse{OK: true})
	if err := frame.WritePayload(conn, resp, e.limits); err != nil {
		return
	}
	_ = conn.SetDeadline(time.Time{})

	peer := &peerHandle{
		id:   req.ClientID,
		name: normalizeNamePtr(req.ClientName),
		conn: conn,
		out:  make(chan []byte, e.depth),
	}
	if remote != "" {
		addr := remote
		peer.addr = &addr
	}

	e.registerPeer(peer)
	defer e.removePeer(peer)

	go e.writeLoop(peer)
	e.readLoop(peer)
}

func (e *hostEngine) writeLoop(peer *peerHandle) {
	for {
		select {
		case payload := <-peer.out:
			if err := frame.WritePayload(peer.conn, payload, e.limits); err != nil {
				_ = peer.conn.Close()
				return
			}
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *hostEngine) readLoop(peer *peerHandle) {
	for {
		payload, err := frame.ReadPayload(peer.conn, e.limits)
		if err != nil {
			if e.ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Str("client_id", peer.id).Msg("peer read failed")
			}
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			// Steady-state integrity rides on TCP; bad frames are skipped.
			log.Debug().Err(err).Str("client_id", peer.id).Msg("discarding undecodable frame")
			continue
		}
		switch m := msg.(type) {
		case protocol.ClipboardItem:
			e.relayFrom(peer, m)
		default:
			// Hosts only consume clipboard items in steady state.
		}
	}
}

// relayFrom applies the fan-out rule: a new item from peer X goes to
// the observer and to every connected peer except X.
func (e *hostEngine) relayFrom(sender *peerHandle, item protocol.ClipboardItem) {
	if !e.q.dedupeAndNotify(RoleHost, &item) {
		return
	}
	payload, err := protocol.EncodeClipboardItem(item)
	if err != nil {
		log.Warn().Err(err).Msg("re-encode clipboard item failed")
		return
	}
	e.broadcastPayload(payload, sender)
}

// broadcastPayload queues payload to every peer except exclude. A peer
// whose outbound queue is full is disconnected rather than allowed to
// stall the relay.
func (e *hostEngine) broadcastPayload(payload []byte, exclude *peerHandle) {
	for _, peer := range e.peerList() {
		if peer == exclude {
			continue
		}
		select {
		case peer.out <- payload:
		default:
			log.Warn().Str("client_id", peer.id).Msg("peer send queue full, disconnecting")
			_ = peer.conn.Close()
		}
	}
}

func (e *hostEngine) registerPeer(peer *peerHandle) {
	e.mu.Lock()
	old := e.peers[peer.id]
	e.peers[peer.id] = peer
	count := len(e.peers)
	e.mu.Unlock()

	if old != nil {
		// Same client id reconnected; the stale connection loses.
		_ = old.conn.Close()
	}
	observability.SetPeersConnected(count)
	log.Info().Str("client_id", peer.id).Int("peers", count).Msg("peer joined")
	e.publishMembership()
}

// removePeer is idempotent: a handle already replaced or absent is
// left alone.
func (e *hostEngine) removePeer(peer *peerHandle) {
	e.mu.Lock()
	current, ok := e.peers[peer.id]
	removed := ok && current == peer
	if removed {
		delete(e.peers, peer.id)
	}
	count := len(e.peers)
	e.mu.Unlock()

	if !removed {
		return
	}
	observability.SetPeersConnected(count)
	log.Info().Str("client_id", peer.id).Int("peers", count).Msg("peer left")
	e.publishMembership()
}

// publishMembership notifies the local observer and sends each peer a
// full replacement snapshot with its own entry marked is_self.
func (e *hostEngine) publishMembership() {
	self := e.q.selfMember()
	peers := e.peerList()

	base := make([]protocol.Member, 0, len(peers)+1)
	base = append(base, self)
	for _, peer := range peers {
		base = append(base, protocol.Member{ID: peer.id, Name: peer.name, Addr: peer.addr})
	}
	e.q.observer.NotifyMembers(base)

	for _, peer := range peers {
		snapshot := make([]protocol.Member, len(base))
		copy(snapshot, base)
		snapshot[0].IsSelf = false
		for i := range snapshot {
			if snapshot[i].ID == peer.id {
				snapshot[i].IsSelf = true
			}
		}
		payload, err := protocol.EncodeMemberUpdate(snapshot)
		if err != nil {
			continue
		}
		select {
		case peer.out <- payload:
		default:
			_ = peer.conn.Close()
		}
	}
}

func (e *hostEngine) membersWithSelf(self protocol.Member) []protocol.Member {
	out := []protocol.Member{self}
	for _, peer := range e.peerList() {
		out = append(out, protocol.Member{ID: peer.id, Name: peer.name, Addr: peer.addr})
	}
	return out
}

// peerList returns the current peers in stable id order.
func (e *hostEngine) peerList() []*peerHandle {
	e.mu.Lock()
	out := make([]*peerHandle, 0, len(e.peers))
	for _, peer := range e.peers {
		out = append(out, peer)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (e *hostEngine) peerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.peers)
}

func (e *hostEngine) trackConn(conn net.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns[conn] = struct{}{}
}

func (e *hostEngine) untrackConn(conn net.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conns, conn)
}

func (e *hostEngine) closeAllConns() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for conn := range e.conns {
		_ = conn.Close()
		delete(e.conns, conn)
	}
}

func normalizeNamePtr(name *string) *string {
	if name == nil {
		return nil
	}
	return namePtr(normalizeName(*name))
}
