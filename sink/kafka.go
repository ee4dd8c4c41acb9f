package sink

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mklimuk/sensorhal"
)

var _ sensorhal.Sink = &KafkaSink{}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events to a topic keyed by sensor handle so that events of
// one sensor stay ordered within a partition. The writer is asynchronous.
type KafkaSink struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("sink", "kafka", "topic", topic)
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 50 * time.Millisecond,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("could not deliver events", "count", len(messages), "error", err)
				}
			},
		},
		logger: logger,
	}
}

func (s *KafkaSink) PostEvents(events []sensorhal.Event, wakeUp bool) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := EncodeEvent(ev, wakeUp)
		if err != nil {
			s.logger.Error("could not encode event", "error", err)
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.Itoa(int(ev.SensorHandle))),
			Value: payload,
			Time:  time.Now(),
		})
	}
	if len(msgs) == 0 {
		return
	}
	if err := s.writer.WriteMessages(context.Background(), msgs...); err != nil {
		s.logger.Warn("could not queue events", "error", err)
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
