package chat

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
	"linechat/internal/protocol"
)

const (
	// sendBufSize is the per-connection outbound queue capacity. When it
	// overflows, the Hub evicts the connection instead of blocking.
	sendBufSize = 256

	// kickGracePeriod gives the write pump a moment to flush the final
	// system notice before a displaced session's connection is closed.
	kickGracePeriod = 250 * time.Millisecond
)

// Session owns one client connection: its read loop, its write pump, and
// its identity state (Unauthenticated until a successful register/login,
// Closed when the connection goes away).
//
// The identity fields are written only by the read-loop goroutine, so they
// need no lock; other components receive copies at authentication time (the
// presence registry) and never read the fields themselves.
type Session struct {
	id     string
	conn   Conn
	server *Server

	send chan []byte
	done chan struct{}

	userID   string
	username string

	closeOnce sync.Once
	logger    zerolog.Logger
}

func newSession(id string, conn Conn, srv *Server) *Session {
	sessLogger := logx.Logger().With().
		Str("conn_id", id).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	return &Session{
		id:     id,
		conn:   conn,
		server: srv,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
		logger: sessLogger,
	}
}

func (s *Session) authenticated() bool {
	return s.userID != ""
}

// Close tears down the connection. Safe from any goroutine; the read loop
// observes the closed connection and runs the cleanup path exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Connection close error")
		}
	})
}

// Kick displaces this session after a newer login claimed its identity: a
// final system notice is queued, and the connection closes once the write
// pump has had a chance to flush it.
func (s *Session) Kick(message string) {
	s.logger.Warn().Str("reason", message).Msg("Kicking session")
	s.sendSystem(message)
	time.AfterFunc(kickGracePeriod, s.Close)
}

// readPump reads packets until the connection fails or closes, dispatching
// each one. Malformed packets get an error response and the loop continues;
// they are never disconnect-worthy.
func (s *Session) readPump() {
	defer s.teardown()

	for {
		line, err := s.conn.ReadPacket()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Read loop finished")
			return
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		pkt, err := protocol.Decode(line)
		if err != nil {
			s.sendCustomError(errs.NewError(errs.ErrMalformedPacket))
			continue
		}

		s.dispatch(pkt)
	}
}

// teardown runs when the read loop exits: unregister from the Hub, release
// the presence entry, and announce the departure of an authenticated user.
// A session whose identity was already claimed by a newer login stays quiet;
// the user never left.
func (s *Session) teardown() {
	s.Close()
	s.server.hub.Unregister(s.id)

	if s.authenticated() {
		if s.server.presence.Release(s.userID, s) {
			s.server.broadcastSystem(s.username + " left the chat")
		}
		s.logger.Info().Str("username", s.username).Msg("Authenticated session closed")
	}
}

// writePump drains the outbound queue and performs the actual writes,
// decoupling "something wants to send to this client" from the write being
// in flight. It exits when the session is closed.
func (s *Session) writePump() {
	defer s.conn.Close()

	for {
		select {
		case data := <-s.send:
			if err := s.conn.WritePacket(data); err != nil {
				s.logger.Debug().Err(err).Msg("Write pump finished")
				return
			}

		case <-s.done:
			return
		}
	}
}

// sendPacket encodes pkt onto the outbound queue. Non-blocking: if the queue
// is full the packet is dropped (the Hub will evict the connection on the
// next broadcast anyway).
func (s *Session) sendPacket(pkt *protocol.Packet) {
	data, err := pkt.Encode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode packet")
		return
	}

	select {
	case s.send <- data:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Outbound queue full, packet dropped")
	}
}

// sendResponse sends a TypeResponse packet, marshaling data when present.
func (s *Session) sendResponse(success bool, msg string, data any) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to marshal response data")
			return
		}
		raw = b
	}

	pkt, err := protocol.NewPacket(protocol.TypeResponse, protocol.ResponsePayload{
		Success: success,
		Message: msg,
		Data:    raw,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build response packet")
		return
	}

	s.sendPacket(pkt)
}

// sendCustomError reports an application error as a failed response.
func (s *Session) sendCustomError(customErr *errs.CustomError) {
	s.sendResponse(false, customErr.Message, nil)
}

// sendSystem sends a server system notice to this client only.
func (s *Session) sendSystem(msg string) {
	pkt, err := protocol.NewPacket(protocol.TypeSystem, protocol.SystemPayload{Message: msg})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build system packet")
		return
	}

	s.sendPacket(pkt)
}
