// Package queue implements the LAN clipboard queue core: session
// state, the host and client role engines, and the lifecycle command
// surface exposed to the surrounding application.
package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/dedup"
	"github.com/danmuck/clipqueue/internal/observability"
	"github.com/danmuck/clipqueue/internal/protocol"
)

var (
	ErrJoinTimeout  = errors.New("queue: join timed out")
	ErrAuthRejected = errors.New("queue: authentication rejected")
)

// Queue owns the single process-wide clipboard session. At most one
// engine (host listener or client connection) is live at a time; every
// lifecycle command tears the previous engine down first.
type Queue struct {
	cfg      Config
	observer Observer
	selfID   string

	// cmdMu serializes lifecycle commands end to end, including the
	// network phase of Join. mu guards only the state fields below and
	// is never held across network I/O.
	cmdMu sync.Mutex
	mu    sync.Mutex

	role          Role
	queueName     string
	memberName    string
	addr          string
	dedup         *dedup.Cache
	host          *hostEngine
	client        *clientEngine
	clientMembers []protocol.Member
}

func New(cfg Config, observer Observer) *Queue {
	if observer == nil {
		observer = NopObserver{}
	}
	cfg = cfg.WithDefaults()
	return &Queue{
		cfg:      cfg,
		observer: observer,
		selfID:   newID(),
		role:     RoleOff,
		dedup:    dedup.New(cfg.DedupCapacity),
	}
}

// SelfID returns the stable random identity generated at construction.
func (q *Queue) SelfID() string {
	return q.selfID
}

// StartHost tears down any prior engine, binds a listener on all
// interfaces at port and starts accepting clients.
func (q *Queue) StartHost(port int, password, queueName, memberName string) (Status, error) {
	q.cmdMu.Lock()
	defer q.cmdMu.Unlock()
	q.teardown()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return q.Status(), fmt.Errorf("queue: bind port %d: %w", port, err)
	}

	engine := newHostEngine(q, ln, password)

	q.mu.Lock()
	q.role = RoleHost
	q.queueName = normalizeName(queueName)
	q.memberName = firstNonEmpty(normalizeName(memberName), normalizeName(queueName))
	q.addr = ln.Addr().String()
	q.host = engine
	q.mu.Unlock()

	go engine.acceptLoop()
	log.Info().Str("addr", ln.Addr().String()).Str("queue", queueName).Msg("hosting queue")

	st := q.Status()
	q.observer.NotifyStatus(st)
	q.observer.NotifyMembers(q.Members())
	return st, nil
}

// Join tears down any prior engine and connects to a host. Connect,
// auth send and auth await are each bounded by the configured
// timeouts; a failed join leaves the session in the client role with
// no live connection.
func (q *Queue) Join(host string, port int, password, memberName string) (Status, error) {
	q.cmdMu.Lock()
	defer q.cmdMu.Unlock()
	q.teardown()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	q.mu.Lock()
	q.role = RoleClient
	q.memberName = normalizeName(memberName)
	q.addr = addr
	q.mu.Unlock()

	dialer := net.Dialer{Timeout: q.cfg.ConnectTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		st := q.Status()
		q.observer.NotifyStatus(st)
		if isTimeout(err) {
			return st, fmt.Errorf("%w: connect to %s", ErrJoinTimeout, addr)
		}
		return st, fmt.Errorf("queue: connect to %s: %w", addr, err)
	}

	if err := q.handshake(conn, password); err != nil {
		_ = conn.Close()
		st := q.Status()
		q.observer.NotifyStatus(st)
		return st, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := &clientEngine{
		q:      q,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		limits: q.cfg.Frame,
		out:    make(chan []byte, q.cfg.SendQueueDepth),
	}
	q.mu.Lock()
	q.client = engine
	q.mu.Unlock()

	go engine.writeLoop()
	go engine.readLoop()
	log.Info().Str("addr", addr).Msg("joined queue")

	st := q.Status()
	q.observer.NotifyStatus(st)
	return st, nil
}

// Leave is an idempotent full teardown back to the off role.
func (q *Queue) Leave() {
	q.cmdMu.Lock()
	defer q.cmdMu.Unlock()
	q.teardown()
	q.observer.NotifyMembers([]protocol.Member{})
	q.observer.NotifyStatus(q.Status())
}

// Send shares one clipboard item with the rest of the queue. Missing
// id, origin and sender name are filled from the session. A no-op in
// the off role; an id already in the dedup cache is not re-sent.
func (q *Queue) Send(item protocol.ClipboardItem) {
	q.mu.Lock()
	role := q.role
	host := q.host
	client := q.client
	name := q.memberName
	q.mu.Unlock()

	if item.ID == "" {
		item.ID = newID()
	}
	if item.Origin == "" {
		item.Origin = q.selfID
	}
	if item.SenderName == nil && name != "" {
		item.SenderName = namePtr(name)
	}

	defer func() {
		q.observer.NotifyStatus(q.Status())
	}()

	if role == RoleOff {
		return
	}
	if !q.dedup.Insert(item.ID) {
		observability.RecordItemDeduped(role.String())
		return
	}
	payload, err := protocol.EncodeClipboardItem(item)
	if err != nil {
		log.Warn().Err(err).Msg("encode clipboard item failed")
		return
	}
	switch role {
	case RoleHost:
		if host != nil {
			host.broadcastPayload(payload, nil)
		}
	case RoleClient:
		if client != nil {
			client.enqueue(payload)
		}
	}
	observability.RecordItemRelayed(role.String())
}

// Status is a pure snapshot of the current session.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := Status{
		Role:       q.role,
		Addr:       q.addr,
		QueueName:  q.queueName,
		MemberName: q.memberName,
	}
	switch q.role {
	case RoleHost:
		if q.host != nil {
			st.Connected = true
			st.Peers = q.host.peerCount()
		}
	case RoleClient:
		st.Connected = q.client != nil
	}
	return st
}

// Members projects the current membership for UI consumption: self
// plus connected peers as host, the last relayed snapshot as client.
func (q *Queue) Members() []protocol.Member {
	q.mu.Lock()
	role := q.role
	host := q.host
	snapshot := append([]protocol.Member(nil), q.clientMembers...)
	q.mu.Unlock()

	self := q.selfMember()
	switch role {
	case RoleHost:
		if host == nil {
			return []protocol.Member{self}
		}
		return host.membersWithSelf(self)
	case RoleClient:
		if len(snapshot) > 0 {
			return snapshot
		}
		return []protocol.Member{self}
	default:
		return []protocol.Member{self}
	}
}

func (q *Queue) selfMember() protocol.Member {
	q.mu.Lock()
	name := q.memberName
	q.mu.Unlock()
	return protocol.Member{ID: q.selfID, Name: namePtr(name), IsSelf: true}
}

// teardown stops whichever engine is live and resets role-scoped
// state. Engines are signaled under the lock and stopped outside it.
func (q *Queue) teardown() {
	q.mu.Lock()
	host := q.host
	client := q.client
	q.host = nil
	q.client = nil
	q.role = RoleOff
	q.queueName = ""
	q.addr = ""
	q.clientMembers = nil
	q.mu.Unlock()

	if host != nil {
		host.stop()
	}
	if client != nil {
		client.stop()
	}
}

// dedupeAndNotify runs the shared inbound item path: fill a missing
// id, suppress echoes, deliver to the observer. Reports whether the
// item was new and should propagate further.
func (q *Queue) dedupeAndNotify(role Role, item *protocol.ClipboardItem) bool {
	if item.ID == "" {
		item.ID = newID()
	}
	if !q.dedup.Insert(item.ID) {
		observability.RecordItemDeduped(role.String())
		return false
	}
	observability.RecordItemRelayed(role.String())
	q.observer.NotifyItem(*item)
	return true
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func namePtr(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nErr net.Error
	return errors.As(err, &nErr) && nErr.Timeout()
}
