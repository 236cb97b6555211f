package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	queues     []string
	bindings   []string
	published  []published
	deliveries chan amqp.Delivery
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.bindings = append(f.bindings, name+"<-"+exchange+"/"+key)
	return nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// acks records the outcome of every delivery.
type acks struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
	done   chan struct{}
}

func (a *acks) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *acks) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	a.nacked = append(a.nacked, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *acks) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testConfig() Config {
	return Config{URL: "amqp://unused", Exchange: "storefront.orders", Queue: "storefront.order-events"}
}

func TestNewClient_DeclaresTopology(t *testing.T) {
	ch := &fakeChannel{}
	_, err := newClient(ch, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"storefront.orders:topic"}, ch.exchanges)
	assert.Equal(t, []string{"storefront.order-events"}, ch.queues)
	assert.Equal(t, []string{"storefront.order-events<-storefront.orders/order.#"}, ch.bindings)
}

func TestNewClient_RequiresExchange(t *testing.T) {
	_, err := newClient(&fakeChannel{}, Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestClient_Publish(t *testing.T) {
	ch := &fakeChannel{}
	c, err := newClient(ch, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Publish("", "order.placed", []byte(`{"orderId":"1"}`)))
	require.NoError(t, c.Publish("other", "order.status_changed", []byte(`{}`)))

	require.Len(t, ch.published, 2)
	assert.Equal(t, "storefront.orders", ch.published[0].exchange)
	assert.Equal(t, "order.placed", ch.published[0].key)
	assert.Equal(t, "application/json", ch.published[0].msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.published[0].msg.DeliveryMode)
	assert.Equal(t, "other", ch.published[1].exchange)

	ch.publishErr = errors.New("channel closed")
	assert.Error(t, c.Publish("", "order.placed", nil))
}

func TestClient_PublishAfterClose(t *testing.T) {
	ch := &fakeChannel{}
	c, err := newClient(ch, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, ch.closed)
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Publish("", "order.placed", []byte(`{}`)), ErrClosed)
}

func TestClient_ConsumeOrderEvents(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	c, err := newClient(ch, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ack := &acks{done: make(chan struct{}, 2)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.ConsumeOrderEvents(ctx, LogOrderEvent(zerolog.Nop())))

	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: "order.placed", Body: []byte(`{"orderId":"1"}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, RoutingKey: "order.placed", Body: []byte(`not json`)}

	for i := 0; i < 2; i++ {
		select {
		case <-ack.done:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery was not settled")
		}
	}

	ack.mu.Lock()
	defer ack.mu.Unlock()
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
}

func TestClient_ConsumeRequiresQueue(t *testing.T) {
	cfg := testConfig()
	cfg.Queue = ""
	c, err := newClient(&fakeChannel{}, cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, c.ConsumeOrderEvents(context.Background(), LogOrderEvent(zerolog.Nop())))
}
