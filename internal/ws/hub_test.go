package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// serve upgrades every request and attaches it to hub as the user named
// in the "user" query parameter.
func serve(t *testing.T, hub *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(r.URL.Query().Get("user"), conn, hub).Run()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyBalanceReachesEverySessionOfTheUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	url := serve(t, hub)

	a1 := dial(t, url+"?user=alice")
	a2 := dial(t, url+"?user=alice")
	bob := dial(t, url+"?user=bob")
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	hub.NotifyBalance("alice", 85, "reserve", "jt-1")

	for _, conn := range []*websocket.Conn{a1, a2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg BalanceMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, BalanceMessage{Type: MsgTypeBalance, Credits: 85, Reason: "reserve", ReferenceID: "jt-1"}, msg)
	}

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err, "bob must not see alice's balance")
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	url := serve(t, hub)

	conn := dial(t, url+"?user=alice")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Nobody left to notify; must not panic or block.
	hub.NotifyBalance("alice", 1, "topup", "TX-1")
}

func TestUnregisterTwiceIsHarmless(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &Client{UserID: "u", hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)
	require.Zero(t, hub.ClientCount())
}
