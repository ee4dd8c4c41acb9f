package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhal"
)

func vectorEvent(handle int32, ts int64) sensorhal.Event {
	return sensorhal.Event{
		SensorHandle: handle,
		Kind:         sensorhal.KindAccelerometer,
		Timestamp:    ts,
		Payload:      sensorhal.Vector{Vector: r3.Vector{X: 1, Y: -2, Z: 9.81}},
	}
}

func TestRecorder_Wait(t *testing.T) {
	rec := NewRecorder()
	assert.False(t, rec.Wait(1, 10*time.Millisecond))

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(5 * time.Millisecond)
			rec.PostEvents([]sensorhal.Event{vectorEvent(1, int64(i))}, i == 2)
		}
	}()
	require.True(t, rec.Wait(3, time.Second))
	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, []bool{false, false, true}, rec.WakeUps())
	assert.Equal(t, int64(2), rec.Events()[2].Timestamp)

	rec.Reset()
	assert.Equal(t, 0, rec.Len())
}

func TestRecorder_ConcurrentProducers(t *testing.T) {
	rec := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec.PostEvents([]sensorhal.Event{vectorEvent(int32(i), int64(j))}, false)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, rec.Len())
}

func TestFanout(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Fanout{a, b}.PostEvents([]sensorhal.Event{vectorEvent(3, 1)}, true)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	NewLogSink(logger, slog.LevelInfo).PostEvents([]sensorhal.Event{
		vectorEvent(7, 42),
		{SensorHandle: 7, Kind: sensorhal.KindMetaData, Payload: sensorhal.MetaData{What: sensorhal.MetaFlushComplete}},
	}, false)
	out := buf.String()
	assert.Contains(t, out, `"sensor":7`)
	assert.Contains(t, out, `"z":9.81`)
	assert.Contains(t, out, `"meta":"flush_complete"`)
}

func TestEncodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		given    sensorhal.Event
		wakeUp   bool
		expected string
	}{
		{
			name:     "vector",
			given:    vectorEvent(1, 100),
			expected: `{"sensor":1,"kind":"accelerometer","timestamp_ns":100,"vector":[1,-2,9.81]}`,
		},
		{
			name:     "scalar wake up",
			given:    sensorhal.Event{SensorHandle: 2, Kind: sensorhal.KindLight, Timestamp: 5, Payload: sensorhal.Scalar(320)},
			wakeUp:   true,
			expected: `{"sensor":2,"kind":"light","timestamp_ns":5,"wake_up":true,"value":320}`,
		},
		{
			name:     "flush complete",
			given:    sensorhal.Event{SensorHandle: 3, Kind: sensorhal.KindMetaData, Payload: sensorhal.MetaData{What: sensorhal.MetaFlushComplete}},
			expected: `{"sensor":3,"kind":"meta_data","timestamp_ns":0,"meta":"flush_complete"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeEvent(tt.given, tt.wakeUp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(b))
		})
	}
}

type MockMQTTClient struct {
	mqtt.Client
	mock.Mock
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	token, _ := args.Get(0).(mqtt.Token)
	return token
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func TestMQTTSink_PostEvents(t *testing.T) {
	client := new(MockMQTTClient)
	client.On("Publish", "sensors/4", byte(0), false, mock.MatchedBy(func(payload []byte) bool {
		var decoded map[string]any
		return json.Unmarshal(payload, &decoded) == nil && decoded["sensor"] == float64(4)
	})).Return(nil).Twice()
	client.On("Disconnect", uint(250)).Return().Once()

	s := NewMQTTSink(client, "sensors", nil)
	s.PostEvents([]sensorhal.Event{vectorEvent(4, 1), vectorEvent(4, 2)}, false)
	s.Close()
	client.AssertExpectations(t)
}

type MockMessageWriter struct {
	mock.Mock
}

func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockMessageWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaSink_PostEvents(t *testing.T) {
	writer := new(MockMessageWriter)
	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 2 && string(msgs[0].Key) == "9" && string(msgs[1].Key) == "9"
	})).Return(nil).Once()
	writer.On("Close").Return(nil).Once()

	s := &KafkaSink{writer: writer, logger: slog.Default()}
	s.PostEvents([]sensorhal.Event{vectorEvent(9, 1), vectorEvent(9, 2)}, false)
	s.PostEvents(nil, false)
	assert.NoError(t, s.Close())
	writer.AssertExpectations(t)
}
