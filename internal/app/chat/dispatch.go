package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	authjwt "linechat/internal/pkg/auth/jwt"
	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/randx"

	"linechat/internal/app/store"
	"linechat/internal/protocol"
)

// maxContentBytes caps a single chat message body. Anything longer is
// rejected with an error response instead of being truncated.
const maxContentBytes = 4096

// authData is the payload returned on successful register/login. The token
// lets the client resume the session without re-sending credentials.
type authData struct {
	Token string            `json:"token"`
	User  protocol.UserInfo `json:"user"`
}

// dispatch routes one decoded packet to its handler. Runs on the read-loop
// goroutine, so handlers may touch session identity without locking.
func (s *Session) dispatch(pkt *protocol.Packet) {
	switch pkt.Type {
	case protocol.TypeRegister:
		s.handleRegister(pkt.Payload)
	case protocol.TypeLogin:
		s.handleLogin(pkt.Payload)
	case protocol.TypeChat:
		s.handleChat(pkt.Payload)
	case protocol.TypeSearch:
		s.handleSearch(pkt.Payload)
	case protocol.TypeHistory:
		s.handleHistory(pkt.Payload)
	case protocol.TypeUsers:
		s.handleUsers()
	case protocol.TypeQuit:
		s.Close()
	default:
		s.sendCustomError(errs.NewError(errs.ErrUnknownPacketType, string(pkt.Type)))
	}
}

// requireAuth guards handlers that only make sense for signed-in users.
func (s *Session) requireAuth() bool {
	if !s.authenticated() {
		s.sendCustomError(errs.NewError(errs.ErrAuthRequired))
		return false
	}
	return true
}

func (s *Session) handleRegister(payload json.RawMessage) {
	if s.authenticated() {
		s.sendCustomError(errs.NewError(errs.ErrAlreadyAuthenticated))
		return
	}

	var req protocol.AuthPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendCustomError(errs.NewError(errs.ErrMalformedPacket))
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		s.sendCustomError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	u, err := s.server.store.RegisterUser(context.Background(), username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			s.sendCustomError(errs.NewError(errs.ErrUserAlreadyExists, username))
			return
		}
		s.logger.Error().Err(err).Msg("Failed to register user")
		s.sendCustomError(errs.NewError(errs.ErrUnknown))
		return
	}

	s.completeAuth(u.ID, u.Username, "Registration successful. Welcome, "+u.Username+"!")
}

func (s *Session) handleLogin(payload json.RawMessage) {
	if s.authenticated() {
		s.sendCustomError(errs.NewError(errs.ErrAlreadyAuthenticated))
		return
	}

	var req protocol.AuthPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendCustomError(errs.NewError(errs.ErrMalformedPacket))
		return
	}

	// Token login resumes a previous session without credentials.
	if req.Token != "" {
		claims, err := authjwt.ParseToken(req.Token, s.server.jwtSecret)
		if err != nil {
			s.sendCustomError(errs.NewError(errs.ErrInvalidToken))
			return
		}

		u, err := s.server.store.GetUserByID(context.Background(), claims.UserID)
		if err != nil {
			s.sendCustomError(errs.NewError(errs.ErrInvalidToken))
			return
		}

		s.completeAuth(u.ID, u.Username, "Welcome back, "+u.Username+"!")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		s.sendCustomError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	u, err := s.server.store.Authenticate(context.Background(), username, req.Password)
	if err != nil {
		// A single message for both unknown-user and wrong-password keeps
		// account enumeration off the table.
		if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrWrongPassword) {
			s.sendCustomError(errs.NewError(errs.ErrInvalidCredentials))
			return
		}
		s.logger.Error().Err(err).Msg("Failed to authenticate user")
		s.sendCustomError(errs.NewError(errs.ErrUnknown))
		return
	}

	s.completeAuth(u.ID, u.Username, "Welcome back, "+u.Username+"!")
}

// completeAuth finishes register/login: claims the presence slot (kicking
// any prior session holding it), sets identity, and hands back a resume
// token. Runs on the read-loop goroutine.
func (s *Session) completeAuth(userID, username, greeting string) {
	displaced := s.server.presence.Claim(userID, username, s)
	if displaced != nil {
		displaced.Kick(errs.NewError(errs.ErrSessionReplaced).Message)
	}

	s.userID = userID
	s.username = username
	s.logger = s.logger.With().Str("username", username).Logger()

	// Re-register so the hub's membership records carry the username.
	s.server.hub.Register(s.id, username, s.send, s.Close)

	token, err := authjwt.GenerateToken(userID, username, s.server.jwtSecret, authjwt.SessionTokenExpiration)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate session token")
		s.sendCustomError(errs.NewError(errs.ErrUnknown))
		return
	}

	s.sendResponse(true, greeting, authData{
		Token: token,
		User:  protocol.UserInfo{UserID: userID, Username: username},
	})

	s.server.broadcastSystem(username + " joined the chat")
	s.logger.Info().Msg("User authenticated")
}

func (s *Session) handleChat(payload json.RawMessage) {
	if !s.requireAuth() {
		return
	}

	var req protocol.ChatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendCustomError(errs.NewError(errs.ErrMalformedPacket))
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		s.sendCustomError(errs.NewError(errs.ErrInvalidParams))
		return
	}
	if len(content) > maxContentBytes {
		s.sendCustomError(errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	msg := &protocol.StoredMessage{
		ID:        randx.MessageID(),
		UserID:    s.userID,
		Username:  s.username,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	pkt, err := protocol.NewPacket(protocol.TypeBroadcast, protocol.BroadcastPayload{
		UserID:    msg.UserID,
		Username:  msg.Username,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build broadcast packet")
		return
	}

	data, err := pkt.Encode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode broadcast packet")
		return
	}

	// Broadcast first so delivery latency never waits on persistence.
	s.server.hub.Broadcast(data)
	s.server.pool.Submit(msg)
}

func (s *Session) handleSearch(payload json.RawMessage) {
	if !s.requireAuth() {
		return
	}

	var req protocol.SearchPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendCustomError(errs.NewError(errs.ErrMalformedPacket))
		return
	}

	if req.Empty() {
		s.sendCustomError(errs.NewError(errs.ErrSearchCriteriaRequired))
		return
	}

	results, err := s.server.store.Search(context.Background(), store.SearchQuery{
		Query:    req.Query,
		Username: req.Username,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to search messages")
		s.sendCustomError(errs.NewError(errs.ErrUnknown))
		return
	}

	s.sendResponse(true, "Search results", results)
}

func (s *Session) handleHistory(payload json.RawMessage) {
	if !s.requireAuth() {
		return
	}

	var req protocol.HistoryPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendCustomError(errs.NewError(errs.ErrMalformedPacket))
			return
		}
	}

	// Limit zero or below means the full log.
	msgs, err := s.server.store.History(context.Background(), req.Limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load history")
		s.sendCustomError(errs.NewError(errs.ErrUnknown))
		return
	}

	s.sendResponse(true, "Message history", msgs)
}

func (s *Session) handleUsers() {
	if !s.requireAuth() {
		return
	}

	s.sendResponse(true, "Online users", s.server.presence.Snapshot())
}
