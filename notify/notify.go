package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange appointment events are published to.
const DefaultExchange = "dhermica.appointments"

type EventType string

const (
	EventCreated       EventType = "created"
	EventRescheduled   EventType = "rescheduled"
	EventStatusChanged EventType = "status_changed"
	EventCancelled     EventType = "cancelled"
)

// Event describes a change in an appointment's lifecycle.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	AppointmentID  uint      `json:"appointment_id"`
	ClientID       uint      `json:"client_id"`
	ProfessionalID uint      `json:"professional_id"`
	TreatmentID    uint      `json:"treatment_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent builds an event from the current state of an appointment.
func NewEvent(t EventType, a model.Appointment) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           t,
		AppointmentID:  a.ID,
		ClientID:       a.ClientID,
		ProfessionalID: a.ProfessionalID,
		TreatmentID:    a.TreatmentID,
		Date:           a.Date,
		StartTime:      a.StartTime,
		Status:         string(a.Status),
		OccurredAt:     time.Now().UTC(),
	}
}

// RoutingKey is the topic routing key of the event, e.g. "appointment.created".
func (e Event) RoutingKey() string {
	return "appointment." + string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

// Observed wraps a publisher and calls fn for every event before publishing it.
// A nil p only observes.
func Observed(p Publisher, fn func(Event)) Publisher {
	if p == nil {
		p = noopPublisher{}
	}
	return observedPublisher{next: p, fn: fn}
}

type observedPublisher struct {
	next Publisher
	fn   func(Event)
}

func (o observedPublisher) Publish(ctx context.Context, e Event) error {
	if o.fn != nil {
		o.fn(e)
	}
	return o.next.Publish(ctx, e)
}

// RabbitPublisher publishes events as persistent JSON messages to a durable
// topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewRabbitPublisher dials url and declares the exchange. An empty exchange
// uses DefaultExchange.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, e.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	})
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

var (
	mu        sync.RWMutex
	publisher Publisher = noopPublisher{}
	logger              = zap.NewNop()
)

// SetPublisher replaces the package publisher; nil restores the no-op one.
func SetPublisher(p Publisher) {
	mu.Lock()
	defer mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	publisher = p
}

// SetLogger sets the logger used to report failed publishes.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Publish sends e through the package publisher. Failures are logged and
// never reach the caller: the appointment change is already committed.
func Publish(ctx context.Context, e Event) {
	mu.RLock()
	p, l := publisher, logger
	mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		l.Warn("failed to publish appointment event",
			zap.String("event_id", e.ID),
			zap.String("type", string(e.Type)),
			zap.Uint("appointment_id", e.AppointmentID),
			zap.Error(err),
		)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
