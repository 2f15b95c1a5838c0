package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

type fakeAcknowledger struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testClient() *Client {
	return &Client{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestHandleDelivery_AcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	var got ImageCleanupJob
	handler := func(_ context.Context, job ImageCleanupJob) error {
		got = job
		return nil
	}

	testClient().handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  7,
		Body:         []byte(`{"image":"abc.png","reason":"product deleted","attempt":1}`),
	}, handler)

	assert.Equal(t, []uint64{7}, ack.acked)
	assert.Empty(t, ack.nacked)
	assert.Equal(t, "abc.png", got.Image)
	assert.Equal(t, 1, got.Attempt)
}

func TestHandleDelivery_RequeuesOnHandlerError(t *testing.T) {
	ack := &fakeAcknowledger{}
	handler := func(context.Context, ImageCleanupJob) error { return errors.New("disk busy") }

	testClient().handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  3,
		Body:         []byte(`{"image":"abc.png"}`),
	}, handler)

	assert.Equal(t, []uint64{3}, ack.nacked)
	assert.Equal(t, []bool{true}, ack.requeue)
}

func TestHandleDelivery_DropsMalformedJob(t *testing.T) {
	called := false
	handler := func(context.Context, ImageCleanupJob) error {
		called = true
		return nil
	}

	for _, body := range []string{`not json`, `{"reason":"no image"}`} {
		ack := &fakeAcknowledger{}
		testClient().handleDelivery(context.Background(), amqp.Delivery{
			Acknowledger: ack,
			DeliveryTag:  1,
			Body:         []byte(body),
		}, handler)

		assert.Equal(t, []bool{false}, ack.requeue, body)
	}
	assert.False(t, called)
}

func TestPublishWithoutChannel(t *testing.T) {
	err := testClient().PublishImageCleanup(context.Background(), ImageCleanupJob{Image: "a.png"})
	assert.Error(t, err)
	assert.NoError(t, testClient().Close())
}

func TestExpiration(t *testing.T) {
	assert.Equal(t, "30000", expiration(30*time.Second))
	assert.Equal(t, "1500", expiration(1500*time.Millisecond))
	assert.Equal(t, "1", expiration(0))
	assert.Equal(t, "1", expiration(-time.Second))
}

func TestRetryQueueDeadLettersIntoCleanupQueue(t *testing.T) {
	args := queueArgs[ImageCleanupRetryQueue]
	assert.Equal(t, "", args["x-dead-letter-exchange"])
	assert.Equal(t, ImageCleanupQueue, args["x-dead-letter-routing-key"])
	assert.Nil(t, queueArgs[ImageCleanupQueue])
}

func TestRetryImageCleanupWithoutChannel(t *testing.T) {
	err := testClient().RetryImageCleanup(context.Background(), ImageCleanupJob{Image: "a.png"}, time.Second)
	assert.Error(t, err)
}
