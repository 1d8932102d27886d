package sink

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
	"eventforge/internal/event"
)

// MQTTSink publishes rendered events to an MQTT topic. The paho
// client handles reconnection; each Deliver is one publish.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func newMQTTSink(cfg config.OutputConfig, _ config.Env) (dispatch.Sink, error) {
	if cfg.Broker == "" {
		return nil, &config.ConfigError{Field: "outputs.broker", Msg: "mqtt sink requires a broker"}
	}
	if cfg.Topic == "" {
		return nil, &config.ConfigError{Field: "outputs.topic", Msg: "mqtt sink requires a topic"}
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, &config.ConfigError{Field: "outputs.qos", Msg: "must be 0, 1 or 2"}
	}
	return NewMQTTSink(cfg.Broker, cfg.Topic, byte(cfg.QoS))
}

// NewMQTTSink connects to the broker and returns a publishing sink.
func NewMQTTSink(broker, topic string, qos byte) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID("eventforge-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return &MQTTSink{client: client, topic: topic, qos: qos}, nil
}

// Deliver implements dispatch.Sink.
func (s *MQTTSink) Deliver(ctx context.Context, ev event.RenderedEvent) error {
	token := s.client.Publish(s.topic, s.qos, false, ev.Payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements dispatch.Sink.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
