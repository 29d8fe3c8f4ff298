package rabbitmq

import (
	"context"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAcknowledger struct {
	mock.Mock
}

func (m *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	return m.Called(tag, multiple).Error(0)
}

func (m *MockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return m.Called(tag, multiple, requeue).Error(0)
}

func (m *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

func TestHandle_AcksProcessedChange(t *testing.T) {
	ack := new(MockAcknowledger)
	ack.On("Ack", uint64(7), false).Return(nil).Once()
	c := &Client{logger: discardLogger()}

	var got OrderChanged
	msg := amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(`{"order_id":"o1","status":"shipped","origin":"node-a"}`)}
	c.handle(context.Background(), msg, func(_ context.Context, evt OrderChanged) error {
		got = evt
		return nil
	})

	assert.Equal(t, "o1", got.OrderID)
	assert.Equal(t, "shipped", got.Status)
	assert.Equal(t, "node-a", got.Origin)
	ack.AssertExpectations(t)
}

func TestHandle_DropsFailures(t *testing.T) {
	ack := new(MockAcknowledger)
	ack.On("Nack", uint64(1), false, false).Return(nil).Twice()
	c := &Client{logger: discardLogger()}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("not json")},
		func(context.Context, OrderChanged) error {
			t.Fatal("handler called for malformed body")
			return nil
		})
	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"order_id":"o1"}`)},
		func(context.Context, OrderChanged) error { return errors.New("boom") })

	ack.AssertExpectations(t)
}

func TestPublish_WithoutChannel(t *testing.T) {
	c := &Client{logger: discardLogger()}
	assert.Error(t, c.Publish(context.Background(), RoutingOrderChanged, OrderChanged{OrderID: "o1"}))
	assert.Error(t, c.ConsumeOrderChanges(context.Background(), nil))
}
