package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	writer := &recordingWriter{}
	publisher := &KafkaPublisher{writer: writer}

	grade := "92"
	event := Event{
		Type:       TypeGradeChanged,
		StudentID:  "S1",
		CourseID:   "C1",
		NewGrade:   &grade,
		Actor:      "system",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "S1", string(msg.Key))
	assert.Equal(t, TypeGradeChanged, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.Type, decoded.Type)
	assert.Nil(t, decoded.OldGrade)
	require.NotNil(t, decoded.NewGrade)
	assert.Equal(t, "92", *decoded.NewGrade)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	publisher := &KafkaPublisher{writer: &recordingWriter{err: boom}}

	err := publisher.Publish(context.Background(), Event{Type: TypeEnrollmentCreated, CourseID: "C1"})
	assert.ErrorIs(t, err, boom)
}

func TestEventKeyFallsBackToCourse(t *testing.T) {
	assert.Equal(t, "C1", Event{CourseID: "C1"}.Key())
}
