package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/franckalain/foodanalysis/internal/logger"
	"github.com/franckalain/foodanalysis/internal/models"
)

func testRecord(id int64) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID:          id,
		WeightGrams: 185,
		Analysis:    models.Analysis{FoodType: "Apple", Confidence: 0.85},
		Timestamp:   time.Now().UTC(),
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	var counts []int64
	hub := NewHub(logger.Discard(), WithClientGauge(func(n int64) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	}))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(context.Background(), testRecord(7)))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageTypeAnalysis, msg.Type)
		require.NotNil(t, msg.Data)
		assert.Equal(t, int64(7), msg.Data.ID)
	}

	a.Close()
	b.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(0), counts[len(counts)-1])
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	hub := NewHub(logger.Discard(), WithSnapshot(func(context.Context) (*models.AnalysisRecord, error) {
		return testRecord(3), nil
	}))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	msg := readMessage(t, conn)
	require.NotNil(t, msg.Data)
	assert.Equal(t, int64(3), msg.Data.ID)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(logger.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, int64(0), hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

type fakeToken struct {
	mqtt.Token
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	connected bool
	topic     string
	payload   []byte
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.payload = payload.([]byte)
	return &fakeToken{}
}

func TestMQTTPublisherNotify(t *testing.T) {
	client := &fakeMQTTClient{connected: true}
	p := newMQTTPublisher(client, "food/latest", logger.Discard())

	require.NoError(t, p.Notify(context.Background(), testRecord(11)))
	assert.Equal(t, "food/latest", client.topic)

	var msg Message
	require.NoError(t, json.Unmarshal(client.payload, &msg))
	assert.Equal(t, MessageTypeAnalysis, msg.Type)
	assert.Equal(t, int64(11), msg.Data.ID)
}

func TestMQTTPublisherNotConnected(t *testing.T) {
	p := newMQTTPublisher(&fakeMQTTClient{}, "food/latest", logger.Discard())
	assert.Error(t, p.Notify(context.Background(), testRecord(1)))
	assert.NoError(t, p.Close())
}

func TestMQTTConfigEnabled(t *testing.T) {
	assert.False(t, MQTTConfig{}.Enabled())
	assert.True(t, MQTTConfig{Broker: "tcp://localhost:1883"}.Enabled())

	_, err := NewMQTTPublisher(MQTTConfig{}, logger.Discard())
	assert.Error(t, err)
}
