package chat

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"linechat/internal/pkg/limiter"
	"linechat/internal/pkg/logx"

	"linechat/internal/app/store"
	"linechat/internal/protocol"
)

// connection admission limits per client IP.
const (
	connRateLimit = rate.Limit(5)
	connRateBurst = 10
)

// Server ties the chat subsystems together: the store, the broadcast hub,
// the persistence pool, and the presence registry. It accepts raw TCP
// connections itself; the WebSocket gateway feeds it upgraded connections
// through AttachConn.
type Server struct {
	store    store.Store
	hub      *Hub
	pool     *WorkerPool
	presence *Presence
	limiter  *limiter.IPRateLimiter

	jwtSecret string
	listener  net.Listener
	connID    atomic.Uint64

	// sessions counts live read loops so Shutdown can wait for them
	// before closing the persistence queue.
	sessions sync.WaitGroup
	stopOnce sync.Once
}

// NewServer assembles a Server and starts its background actors.
func NewServer(st store.Store, jwtSecret string, persistWorkers, persistQueueSize int) *Server {
	return &Server{
		store:     st,
		hub:       NewHub(),
		pool:      NewWorkerPool(persistWorkers, persistQueueSize, st),
		presence:  NewPresence(),
		limiter:   limiter.NewIPRateLimiter(connRateLimit, connRateBurst),
		jwtSecret: jwtSecret,
	}
}

// ListenAndServe accepts TCP connections on addr until Shutdown closes the
// listener. Each accepted connection gets its own session goroutines.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	logx.Info("Chat server listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logx.Warn("Accept failed", "error", err.Error())
			continue
		}

		if !s.limiter.Allow(conn.RemoteAddr().String()) {
			logx.Warn("Connection rejected by rate limiter", "remote_addr", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		s.AttachConn(NewTCPConn(conn))
	}
}

// AttachConn hands a framed connection to the server. Used by the TCP accept
// loop and by the WebSocket gateway after an upgrade. It returns once the
// session goroutines are running.
func (s *Server) AttachConn(conn Conn) {
	id := "conn-" + strconv.FormatUint(s.connID.Add(1), 10)
	sess := newSession(id, conn, s)

	s.hub.Register(id, "", sess.send, sess.Close)

	go sess.writePump()

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		sess.sendSystem("Welcome to linechat. Please register or login to start chatting.")
		sess.readPump()
	}()
}

// broadcastSystem fans a system notice out to every connected client.
func (s *Server) broadcastSystem(msg string) {
	pkt, err := protocol.NewPacket(protocol.TypeSystem, protocol.SystemPayload{Message: msg})
	if err != nil {
		logx.Error(err, "Failed to build system packet")
		return
	}

	data, err := pkt.Encode()
	if err != nil {
		logx.Error(err, "Failed to encode system packet")
		return
	}

	s.hub.Broadcast(data)
}

// Shutdown stops accepting connections, disconnects every client, waits for
// their read loops to finish, and drains the persistence queue before
// returning. The pool closes only after the last session exits, so no
// in-flight dispatch can submit to a closed queue. Safe to call more than
// once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}

		s.hub.Stop()
		s.sessions.Wait()
		s.presence.Stop()
		s.pool.Stop()

		logx.Info("Chat server stopped")
	})
}
