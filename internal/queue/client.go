package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/protocol"
	"github.com/danmuck/clipqueue/internal/protocol/frame"
)

// clientEngine owns the single outbound connection to the host: one
// writer draining the send queue, one read loop delivering inbound
// items and membership snapshots.
type clientEngine struct {
	q      *Queue
	conn   net.Conn
	ctx    context.Context
	cancel context.CancelFunc
	limits frame.Limits
	out    chan []byte
}

// handshake runs the client side of the auth exchange. Each phase is
// bounded by the handshake timeout; the deadline is cleared on success.
func (q *Queue) handshake(conn net.Conn, password string) error {
	_ = conn.SetDeadline(time.Now().Add(q.cfg.HandshakeTimeout))

	req := protocol.AuthRequest{
		Password: password,
		ClientID: q.selfID,
	}
	q.mu.Lock()
	if q.memberName != "" {
		req.ClientName = namePtr(q.memberName)
	}
	q.mu.Unlock()

	payload, err := protocol.EncodeAuthRequest(req)
	if err != nil {
		return err
	}
	if err := frame.WritePayload(conn, payload, q.cfg.Frame); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: sending auth request", ErrJoinTimeout)
		}
		return fmt.Errorf("queue: send auth request: %w", err)
	}

	respPayload, err := frame.ReadPayload(conn, q.cfg.Frame)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: awaiting auth response", ErrJoinTimeout)
		}
		return fmt.Errorf("queue: read auth response: %w", err)
	}
	resp, err := protocol.DecodeAuthResponse(respPayload)
	if err != nil {
		return fmt.Errorf("queue: auth response: %w", err)
	}
	if !resp.OK {
		reason := "authentication rejected"
		if resp.Reason != nil && strings.TrimSpace(*resp.Reason) != "" {
			reason = strings.TrimSpace(*resp.Reason)
		}
		return fmt.Errorf("%w: %s", ErrAuthRejected, reason)
	}

	_ = conn.SetDeadline(time.Time{})
	return nil
}

// stop signals shutdown and unblocks a read loop parked on the socket.
func (e *clientEngine) stop() {
	e.cancel()
	_ = e.conn.Close()
}

// enqueue hands one framed payload to the writer. Dropping on a full
// queue keeps Send non-blocking; the read loop notices a dead link.
func (e *clientEngine) enqueue(payload []byte) {
	select {
	case e.out <- payload:
	default:
		log.Warn().Msg("host send queue full, dropping item")
	}
}

func (e *clientEngine) writeLoop() {
	for {
		select {
		case payload := <-e.out:
			if err := frame.WritePayload(e.conn, payload, e.limits); err != nil {
				_ = e.conn.Close()
				return
			}
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *clientEngine) readLoop() {
	defer e.conn.Close()
	for {
		payload, err := frame.ReadPayload(e.conn, e.limits)
		if err != nil {
			if e.ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("host read failed")
			}
			break
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			log.Debug().Err(err).Msg("discarding undecodable frame")
			continue
		}
		switch m := msg.(type) {
		case protocol.ClipboardItem:
			e.q.dedupeAndNotify(RoleClient, &m)
		case protocol.MemberUpdate:
			e.q.setClientMembers(e, m.Members)
		default:
			// Clients ignore anything but items and membership.
		}
	}
	e.q.clientDisconnected(e)
}

// setClientMembers replaces, never merges, the relayed snapshot.
func (q *Queue) setClientMembers(e *clientEngine, members []protocol.Member) {
	if members == nil {
		members = []protocol.Member{}
	}
	q.mu.Lock()
	if q.client != e {
		q.mu.Unlock()
		return
	}
	q.clientMembers = append([]protocol.Member(nil), members...)
	q.mu.Unlock()
	q.observer.NotifyMembers(members)
}

// clientDisconnected resets the session to off after the read loop
// exits. A client never auto-reconnects. No-op when the engine has
// already been replaced by a lifecycle command.
func (q *Queue) clientDisconnected(e *clientEngine) {
	e.cancel()
	q.mu.Lock()
	if q.client != e {
		q.mu.Unlock()
		return
	}
	q.client = nil
	q.role = RoleOff
	q.queueName = ""
	q.addr = ""
	q.clientMembers = nil
	q.mu.Unlock()

	log.Info().Msg("disconnected from queue host")
	q.observer.NotifyMembers([]protocol.Member{})
	q.observer.NotifyStatus(q.Status())
}
