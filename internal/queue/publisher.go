package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ExchangeName is the durable topic exchange all events go through.
const ExchangeName = "marketplace.events"

const (
	dialTimeout   = 2 * time.Second
	redialBackoff = 5 * time.Second
)

var errBrokerDown = errors.New("rabbitmq unavailable")

// link is a connected channel the publisher sends on.
type link interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type connectFunc func(ctx context.Context, url string) (link, error)

// Publisher sends events to RabbitMQ. It keeps one channel and redials lazily
// after it closes. Dialing never holds the lock, is bounded by a short timeout
// and, after a failure, is not retried until the backoff elapses. Safe for
// concurrent use.
type Publisher struct {
	url     string
	connect connectFunc
	now     func() time.Time

	mu       sync.Mutex
	cur      link
	failedAt time.Time
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, connect: dialLink, now: time.Now}
}

// Publish sends ev as a persistent JSON message routed by its type.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	l, err := p.link(ctx)
	if err != nil {
		return err
	}
	err = l.PublishWithContext(ctx, ExchangeName, ev.Type, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     ev.ID,
		CorrelationId: ev.CorrelationID,
		Timestamp:     ev.OccurredAt,
		Type:          ev.Type,
		Body:          body,
	})
	if err != nil {
		p.drop(l)
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// link returns the live channel or dials a new one outside the lock.
func (p *Publisher) link(ctx context.Context) (link, error) {
	p.mu.Lock()
	if p.cur != nil && !p.cur.IsClosed() {
		l := p.cur
		p.mu.Unlock()
		return l, nil
	}
	if !p.failedAt.IsZero() && p.now().Sub(p.failedAt) < redialBackoff {
		p.mu.Unlock()
		return nil, errBrokerDown
	}
	p.mu.Unlock()

	l, err := p.connect(ctx, p.url)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failedAt = p.now()
		return nil, err
	}
	p.failedAt = time.Time{}
	if p.cur != nil && !p.cur.IsClosed() {
		// A concurrent publish connected first.
		_ = l.Close()
		return p.cur, nil
	}
	if p.cur != nil {
		_ = p.cur.Close()
	}
	p.cur = l
	logrus.WithField("exchange", ExchangeName).Debug("rabbitmq publisher connected")
	return l, nil
}

func (p *Publisher) drop(l link) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == l {
		p.cur = nil
	}
	_ = l.Close()
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		_ = p.cur.Close()
		p.cur = nil
	}
	return nil
}

// amqpLink pairs a channel with the connection it lives on.
type amqpLink struct {
	conn *amqp.Connection
	*amqp.Channel
}

func (l *amqpLink) IsClosed() bool { return l.Channel.IsClosed() || l.conn.IsClosed() }

func (l *amqpLink) Close() error {
	_ = l.Channel.Close()
	return l.conn.Close()
}

func dialLink(ctx context.Context, url string) (link, error) {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &amqpLink{conn: conn, Channel: ch}, nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
