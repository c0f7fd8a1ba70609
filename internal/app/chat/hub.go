package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/logx"
)

const broadcastChannelBuffer = 256

// hubMember is one registered outbound channel plus the hook the Hub uses to
// tear down the owning connection when it stops draining.
type hubMember struct {
	connID   string
	username string
	send     chan<- []byte
	evict    func()
}

// Hub is the single fan-out point for broadcasts. It owns the registry of
// connected outbound channels and delivers every broadcast payload to all of
// them without ever blocking on a slow consumer.
//
// The Hub runs in one dedicated goroutine; all registry mutation happens
// inside that goroutine in strict command-arrival order, so the map needs no
// mutex and membership changes are deterministic relative to broadcasts.
// A member whose buffered channel is full is treated as dead: it is removed
// from the registry and its connection is closed via the evict hook.
type Hub struct {
	members map[string]hubMember

	register   chan hubMember
	unregister chan string
	broadcast  chan []byte
	done       chan struct{}

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewHub creates a Hub and starts its command loop.
func NewHub() *Hub {
	h := &Hub{
		members:    make(map[string]hubMember),
		register:   make(chan hubMember),
		unregister: make(chan string),
		broadcast:  make(chan []byte, broadcastChannelBuffer),
		done:       make(chan struct{}),
		logger:     logx.Logger().With().Str("component", "hub").Logger(),
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// Register inserts (or overwrites) the outbound channel for connID.
func (h *Hub) Register(connID, username string, send chan<- []byte, evict func()) {
	select {
	case h.register <- hubMember{connID: connID, username: username, send: send, evict: evict}:
	case <-h.done:
	}
}

// Unregister removes the entry for connID; absent entries are a no-op.
func (h *Hub) Unregister(connID string) {
	select {
	case h.unregister <- connID:
	case <-h.done:
	}
}

// Broadcast queues one encoded packet for delivery to every registered
// member.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Stop terminates the command loop, evicting every remaining member, and
// waits for the loop to finish.
func (h *Hub) Stop() {
	close(h.done)
	h.wg.Wait()
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case m := <-h.register:
			h.members[m.connID] = m
			h.logger.Debug().
				Str("conn_id", m.connID).
				Int("total", len(h.members)).
				Msg("Member registered")

		case connID := <-h.unregister:
			if _, ok := h.members[connID]; ok {
				delete(h.members, connID)
				h.logger.Debug().
					Str("conn_id", connID).
					Int("total", len(h.members)).
					Msg("Member unregistered")
			}

		case data := <-h.broadcast:
			for connID, m := range h.members {
				select {
				case m.send <- data:
				default:
					// Not draining its outbound queue; evict rather
					// than block the fan-out.
					delete(h.members, connID)
					m.evict()
					h.logger.Warn().
						Str("conn_id", connID).
						Str("username", m.username).
						Msg("Dropped slow consumer")
				}
			}

		case <-h.done:
			for _, m := range h.members {
				m.evict()
			}
			h.members = nil
			h.logger.Info().Msg("Hub stopped")
			return
		}
	}
}
