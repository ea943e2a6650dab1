package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

func startHub(t *testing.T, handlers HubHandlers) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil)
	hub.SetHandlers(handlers)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env models.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectHookRunsBeforeRegistration(t *testing.T) {
	var hub *Hub
	countDuringHook := -1
	hub, url := startHub(t, HubHandlers{
		OnConnect: func(c *Client) {
			countDuringHook = len(hub.clients)
			c.Send(models.ChannelAPIVersion, "1.1.0")
		},
	})

	conn := dial(t, url)
	env := readEnvelope(t, conn)

	assert.Equal(t, models.ChannelAPIVersion, env.Channel)
	assert.Equal(t, "1.1.0", env.Payload)
	assert.Equal(t, 0, countDuringHook)
	waitFor(t, func() bool { return hub.Count() == 1 })
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, url := startHub(t, HubHandlers{})

	a := dial(t, url)
	b := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 2 })

	sent, err := hub.Broadcast(models.ChannelShuffle, models.ShuffleAll)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, models.ChannelShuffle, env.Channel)
		assert.Equal(t, string(models.ShuffleAll), env.Payload)
	}
}

func TestBroadcastPreservesOrderPerClient(t *testing.T) {
	hub, url := startHub(t, HubHandlers{})
	conn := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 1 })

	for i := 0; i < 20; i++ {
		hub.Broadcast(models.ChannelTime, models.TimeInfo{Current: int64(i)})
	}
	for i := 0; i < 20; i++ {
		env := readEnvelope(t, conn)
		payload := env.Payload.(map[string]any)
		assert.Equal(t, float64(i), payload["current"])
	}
}

func TestClosedClientIsSkipped(t *testing.T) {
	hub, url := startHub(t, HubHandlers{})
	dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.Each(func(c *Client) { c.close() })

	sent, err := hub.Broadcast(models.ChannelRating, models.Rating{})
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	assert.True(t, c.SendRaw([]byte("one")))

	done := make(chan bool, 1)
	go func() { done <- c.SendRaw([]byte("two")) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("SendRaw blocked on a full queue")
	}
}

func TestMessagesReachHandlerInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	hub, url := startHub(t, HubHandlers{
		OnMessage: func(c *Client, data []byte) {
			mu.Lock()
			got = append(got, string(data))
			mu.Unlock()
		},
	})
	conn := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 1 })

	for _, m := range []string{"first", "second", "third"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestDisconnectRemovesClient(t *testing.T) {
	disconnected := make(chan struct{}, 1)
	hub, url := startHub(t, HubHandlers{
		OnDisconnect: func(*Client) { disconnected <- struct{}{} },
	})
	conn := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 1 })

	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback not called")
	}
	assert.Equal(t, 0, hub.Count())
}

func TestCloseDropsAllClients(t *testing.T) {
	hub, url := startHub(t, HubHandlers{})
	a := dial(t, url)
	b := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 2 })

	hub.Close()

	assert.Equal(t, 0, hub.Count())
	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	}

	_, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err, "closed hub should refuse new connections")
}
