package sink

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mklimuk/sensorhal"
)

var _ sensorhal.Sink = &MQTTSink{}

// MQTTSink publishes events as JSON to <prefix>/<sensor handle>. Publishing
// is fire-and-forget; broker errors are only logged.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger *slog.Logger
}

func NewMQTTSink(client mqtt.Client, prefix string, logger *slog.Logger) *MQTTSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSink{
		client: client,
		prefix: prefix,
		logger: logger.With("sink", "mqtt"),
	}
}

// DialMQTT connects a client to broker.
func DialMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("could not connect to mqtt broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("could not connect to mqtt broker %s: %w", broker, err)
	}
	return client, nil
}

func (s *MQTTSink) Topic(ev sensorhal.Event) string {
	return fmt.Sprintf("%s/%d", s.prefix, ev.SensorHandle)
}

func (s *MQTTSink) PostEvents(events []sensorhal.Event, wakeUp bool) {
	for _, ev := range events {
		payload, err := EncodeEvent(ev, wakeUp)
		if err != nil {
			s.logger.Error("could not encode event", "error", err)
			continue
		}
		topic := s.Topic(ev)
		token := s.client.Publish(topic, s.qos, false, payload)
		if token != nil {
			go s.report(topic, token)
		}
	}
}

func (s *MQTTSink) report(topic string, token mqtt.Token) {
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Warn("could not publish event", "topic", topic, "error", err)
	}
}

// Close disconnects the client, waiting up to 250ms for in-flight messages.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
