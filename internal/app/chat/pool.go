package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"linechat/internal/app/store"
	"linechat/internal/pkg/logx"
	"linechat/internal/protocol"
)

// WorkerPool persists chat messages in the background so the broadcast path
// never waits on disk I/O. Workers block on a shared bounded channel; any
// idle worker services any queued message. Completion order across workers
// is unspecified, which is why the store keeps its log ID-ordered on insert.
type WorkerPool struct {
	jobs chan *protocol.StoredMessage

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewWorkerPool starts workers goroutines draining a queue of queueSize
// pending messages into st.
func NewWorkerPool(workers, queueSize int, st store.Store) *WorkerPool {
	p := &WorkerPool{
		jobs:   make(chan *protocol.StoredMessage, queueSize),
		logger: logx.Logger().With().Str("component", "pool").Logger(),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for msg := range p.jobs {
				if err := st.SaveMessage(context.Background(), msg); err != nil {
					p.logger.Error().
						Err(err).
						Str("message_id", msg.ID).
						Msg("Failed to persist message")
				}
			}
		}()
	}

	return p
}

// Submit enqueues msg for persistence and returns immediately. When the
// queue is full the message is dropped from persistence; it was already
// broadcast live, so only the durability of the record is lost.
func (p *WorkerPool) Submit(msg *protocol.StoredMessage) {
	select {
	case p.jobs <- msg:
	default:
		p.logger.Warn().
			Str("message_id", msg.ID).
			Msg("Persistence queue full, message dropped from persistence")
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (p *WorkerPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
