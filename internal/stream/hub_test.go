package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) models.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope struct {
		Type    string          `json:"type"`
		Payload models.Snapshot `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, "snapshot", envelope.Type)
	return envelope.Payload
}

func TestHub_BroadcastsSnapshots(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(models.Snapshot{
		SiteLabel:    "Reservatório",
		Situation:    models.Normal,
		ValueMA:      5.4,
		ValuePercent: 0.5,
		Trend:        models.Filling,
	})

	got := readSnapshot(t, conn)
	assert.Equal(t, "Reservatório", got.SiteLabel)
	assert.Equal(t, models.Normal, got.Situation)
	assert.Equal(t, models.Filling, got.Trend)
	assert.Equal(t, 0.5, got.ValuePercent)
}

func TestHub_NewClientReceivesLastSnapshot(t *testing.T) {
	hub, url := newTestHub(t)

	hub.Publish(models.Snapshot{Situation: models.NoSignal, CapturedAtLocal: "--"})

	conn := dial(t, url)
	got := readSnapshot(t, conn)
	assert.Equal(t, models.NoSignal, got.Situation)
	assert.Equal(t, "--", got.CapturedAtLocal)
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishAfterStop(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		hub.Publish(models.Snapshot{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked after the hub stopped")
	}
}
