package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, TypeConnected, hello.Type)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(contracts.EventIndexBuilt, contracts.BuildSummary{StartDate: "2024-01-02", EndDate: "2024-01-04", TradingDays: 3})

	msg := readMessage(t, conn)
	assert.Equal(t, contracts.EventIndexBuilt, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", data["start_date"])
	assert.Equal(t, float64(3), data["trading_days"])
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(logger.Nop())

	// queue fills without a running hub and further events are dropped
	for i := 0; i < broadcastQueue+10; i++ {
		hub.Publish(contracts.EventDataAcquired, i)
	}
	assert.Len(t, hub.broadcast, broadcastQueue)
	assert.Zero(t, hub.ClientCount())
}

func TestPublishUnencodablePayload(t *testing.T) {
	hub := NewHub(logger.Nop())
	hub.Publish("bad", make(chan int))
	assert.Empty(t, hub.broadcast)
}
