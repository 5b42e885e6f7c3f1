package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/resident-x/go-lynx/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken is a paho token that completes immediately.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type publishedMessage struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes instead of talking to a broker.
type fakeClient struct {
	connectErr   error
	publishErr   error
	published    []publishedMessage
	disconnected bool
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return &fakeToken{err: c.connectErr} }
func (c *fakeClient) Disconnect(uint)        { c.disconnected = true }

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, publishedMessage{
		topic:    topic,
		retained: retained,
		payload:  payload.([]byte),
	})
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token { return &fakeToken{} }

func (c *fakeClient) AddRoute(string, mqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func mqttConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MQTT.TopicPrefix = "danfoss_tlx"
	cfg.MQTT.Retain = true
	return cfg
}

func TestNoopPublisher(t *testing.T) {
	publisher := NewNoopPublisher()
	ctx := context.Background()

	assert.NoError(t, publisher.Connect(ctx))
	assert.NoError(t, publisher.Publish(ctx, "any/topic", "data"))
	assert.NoError(t, publisher.Close())
}

func TestMQTTPublisherConnectDisabled(t *testing.T) {
	cfg := mqttConfig()
	cfg.MQTT.Enabled = false

	publisher := NewMQTTPublisher(cfg)
	require.NoError(t, publisher.Connect(context.Background()))
	assert.False(t, publisher.connected)
}

func TestMQTTPublisherConnect(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)

	require.NoError(t, publisher.Connect(context.Background()))
	assert.True(t, publisher.connected)
}

func TestMQTTPublisherConnectFailure(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("connection refused")}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)

	err := publisher.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, publisher.connected)
}

func TestMQTTPublisherPublishPayloads(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	ctx := context.Background()
	require.NoError(t, publisher.Connect(ctx))

	// Strings and byte slices pass through untouched.
	require.NoError(t, publisher.Publish(ctx, "danfoss_tlx/grid_power_total", "2310"))
	require.NoError(t, publisher.Publish(ctx, "danfoss_tlx/raw", []byte{0x01, 0x02}))
	// Structured data is marshaled to JSON.
	require.NoError(t, publisher.Publish(ctx, "danfoss_tlx/device", map[string]string{"serial": "121000G101"}))

	require.Len(t, client.published, 3)
	assert.Equal(t, "danfoss_tlx/grid_power_total", client.published[0].topic)
	assert.Equal(t, []byte("2310"), client.published[0].payload)
	assert.True(t, client.published[0].retained)
	assert.Equal(t, []byte{0x01, 0x02}, client.published[1].payload)
	assert.JSONEq(t, `{"serial":"121000G101"}`, string(client.published[2].payload))
}

func TestMQTTPublisherPublishWhenDisconnected(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)

	// Without a successful Connect, publishes are dropped silently.
	require.NoError(t, publisher.Publish(context.Background(), "danfoss_tlx/x", "1"))
	assert.Empty(t, client.published)
}

func TestMQTTPublisherPublishError(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("broker gone")}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	ctx := context.Background()
	require.NoError(t, publisher.Connect(ctx))

	err := publisher.Publish(ctx, "danfoss_tlx/x", "1")
	assert.Error(t, err)
}

func TestMQTTPublisherAvailability(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	ctx := context.Background()
	require.NoError(t, publisher.Connect(ctx))

	require.NoError(t, publisher.PublishAvailability(ctx, true))
	require.NoError(t, publisher.PublishAvailability(ctx, false))

	require.Len(t, client.published, 2)
	assert.Equal(t, "danfoss_tlx/status", client.published[0].topic)
	assert.Equal(t, []byte(PayloadOnline), client.published[0].payload)
	assert.Equal(t, []byte(PayloadOffline), client.published[1].payload)
}

func TestMQTTPublisherClose(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	ctx := context.Background()
	require.NoError(t, publisher.Connect(ctx))

	require.NoError(t, publisher.Close())
	assert.True(t, client.disconnected)
	assert.False(t, publisher.connected)

	// Closing twice stays quiet.
	assert.NoError(t, publisher.Close())
}
