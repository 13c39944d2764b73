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
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Event{Type: TypeUpcomingIngested, TenantID: 42, PatientsCreated: 3, PredictionsCreated: 3, At: at})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, TypeUpcomingIngested, got.Type)
	assert.Equal(t, 3, got.PatientsCreated)
	assert.True(t, at.Equal(got.At))
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &recordingWriter{err: boom}}

	err := p.Publish(context.Background(), Event{Type: TypePastIngested, TenantID: 1})
	assert.ErrorIs(t, err, boom)
}
