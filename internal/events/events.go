// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// DefaultTopic is the topic order events are written to.
const DefaultTopic = "mishramart.orders"

// Type names an order lifecycle event.
type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderPaid          Type = "order.paid"
	OrderCancelled     Type = "order.cancelled"
	OrderStatusChanged Type = "order.status_changed"
)

// OrderEvent is the payload of every order lifecycle event.
type OrderEvent struct {
	Type          Type
	OrderID       string
	UserID        string
	Status        string
	PaymentMethod string
	Total         decimal.Decimal
	Email         string
	OccurredAt    time.Time
}

// Encode renders the event as JSON.
func (ev OrderEvent) Encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(ev.Type))
	e.FieldStart("orderId")
	e.Str(ev.OrderID)
	e.FieldStart("userId")
	e.Str(ev.UserID)
	e.FieldStart("status")
	e.Str(ev.Status)
	e.FieldStart("paymentMethod")
	e.Str(ev.PaymentMethod)
	e.FieldStart("total")
	e.Str(ev.Total.StringFixed(2))
	if ev.Email != "" {
		e.FieldStart("email")
		e.Str(ev.Email)
	}
	e.FieldStart("occurredAt")
	e.Str(ev.OccurredAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

// Publish discards ev.
func (Nop) Publish(context.Context, OrderEvent) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id, so all events of one order
// land on the same partition in order.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Publish writes ev to Kafka.
func (p *KafkaPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: ev.Encode(),
		Time:  ev.OccurredAt.UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", ev.Type)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// New returns a KafkaPublisher when brokers is non-empty, otherwise Nop.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic)
}
