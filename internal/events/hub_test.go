package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDeliversEvents(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv, "")
	waitSubscribers(t, h, 1)

	h.Publish(model.Event{Type: "transition", Op: "settle", Chamber: "abc", Stage: model.StageSettled})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev model.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "settle", ev.Op)
	assert.Equal(t, "abc", ev.Chamber)
	assert.Equal(t, model.StageSettled, ev.Stage)
}

func TestHubFiltersByChamber(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv, "?chamber=wanted")
	waitSubscribers(t, h, 1)

	h.Publish(model.Event{Type: "transition", Op: "deposit", Chamber: "other"})
	h.Publish(model.Event{Type: "transition", Op: "stake", Chamber: "wanted"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev model.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "stake", ev.Op)
}

func TestHubCloseDisconnects(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "")
	waitSubscribers(t, h, 1)

	h.Close()
	assert.Equal(t, 0, h.Subscribers())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after close is a no-op.
	h.Publish(model.Event{Chamber: "abc"})
}
