package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewSaramaConfig())
	publisher := NewKafkaPublisherWithProducer(producer, "rental.events")
	defer publisher.Close()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]any
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["event_type"] != TypeReservationCreated {
			return errors.New("unexpected event type")
		}
		if got["aggregate_id"] != "42" {
			return errors.New("unexpected key")
		}
		return nil
	})

	err := publisher.Publish(context.Background(), New(TypeReservationCreated, "42", map[string]any{"status": "confirmed"}))
	assert.NoError(t, err)
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewSaramaConfig())
	publisher := NewKafkaPublisherWithProducer(producer, "rental.events")
	defer publisher.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.Publish(context.Background(), New(TypeStockChanged, "7", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Contains(t, err.Error(), TypeStockChanged)
}

func TestNewEvent(t *testing.T) {
	e := New(TypeCheckoutCompleted, "abc", nil)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "abc", e.Key)
	assert.False(t, e.OccurredAt.IsZero())

	assert.NoError(t, NewLogPublisher().Publish(context.Background(), e))
}
