package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/logx"
	"linechat/internal/protocol"
)

// presenceEntry pairs an authenticated identity with its owning session.
type presenceEntry struct {
	username string
	sess     *Session
}

type claimReq struct {
	userID   string
	username string
	sess     *Session
	reply    chan *Session
}

type releaseReq struct {
	userID string
	sess   *Session
	reply  chan bool
}

// Presence is the online-user registry: user_id to live session, at most one
// entry per user. Like the Hub it is a single-owner actor, so the map is
// only ever touched inside its own command loop.
//
// A Claim for a user_id that is already online replaces the entry and hands
// the previous session back to the caller, which kicks it; the registry
// therefore never lists a user twice and never lists an unreachable session.
type Presence struct {
	entries map[string]presenceEntry

	claim    chan claimReq
	release  chan releaseReq
	snapshot chan chan []protocol.UserInfo
	done     chan struct{}

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewPresence creates a Presence registry and starts its command loop.
func NewPresence() *Presence {
	p := &Presence{
		entries:  make(map[string]presenceEntry),
		claim:    make(chan claimReq),
		release:  make(chan releaseReq),
		snapshot: make(chan chan []protocol.UserInfo),
		done:     make(chan struct{}),
		logger:   logx.Logger().With().Str("component", "presence").Logger(),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Claim records sess as the live session for userID and returns the session
// it displaced, if any. The caller owns kicking the displaced session.
func (p *Presence) Claim(userID, username string, sess *Session) *Session {
	req := claimReq{userID: userID, username: username, sess: sess, reply: make(chan *Session, 1)}

	select {
	case p.claim <- req:
		return <-req.reply
	case <-p.done:
		return nil
	}
}

// Release removes the entry for userID, but only while sess still owns it;
// a release from a session that was already displaced is ignored. It reports
// whether the entry was removed, so the caller knows if the user actually
// went offline.
func (p *Presence) Release(userID string, sess *Session) bool {
	req := releaseReq{userID: userID, sess: sess, reply: make(chan bool, 1)}

	select {
	case p.release <- req:
		return <-req.reply
	case <-p.done:
		return false
	}
}

// Snapshot returns the currently online users.
func (p *Presence) Snapshot() []protocol.UserInfo {
	reply := make(chan []protocol.UserInfo, 1)

	select {
	case p.snapshot <- reply:
		return <-reply
	case <-p.done:
		return nil
	}
}

// Stop terminates the command loop and waits for it to finish.
func (p *Presence) Stop() {
	close(p.done)
	p.wg.Wait()
}

func (p *Presence) run() {
	defer p.wg.Done()

	for {
		select {
		case req := <-p.claim:
			var displaced *Session
			if prev, ok := p.entries[req.userID]; ok && prev.sess != req.sess {
				displaced = prev.sess
				p.logger.Warn().
					Str("user_id", req.userID).
					Str("username", req.username).
					Msg("User already online, displacing previous session")
			}

			p.entries[req.userID] = presenceEntry{username: req.username, sess: req.sess}
			req.reply <- displaced

		case req := <-p.release:
			removed := false
			if cur, ok := p.entries[req.userID]; ok && cur.sess == req.sess {
				delete(p.entries, req.userID)
				removed = true
			}
			req.reply <- removed

		case reply := <-p.snapshot:
			out := make([]protocol.UserInfo, 0, len(p.entries))
			for userID, e := range p.entries {
				out = append(out, protocol.UserInfo{UserID: userID, Username: e.username})
			}
			reply <- out

		case <-p.done:
			p.entries = nil
			p.logger.Info().Msg("Presence registry stopped")
			return
		}
	}
}
