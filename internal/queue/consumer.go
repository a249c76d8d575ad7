package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const auditQueueName = "marketplace.audit"

// AuditConsumer binds a durable queue to every event on the exchange and
// appends each one as a JSON line to <dir>/audit.log.
type AuditConsumer struct {
	url string
	log *logrus.Logger
	out io.Closer
}

// NewAuditConsumer opens the audit log file under dir.
func NewAuditConsumer(url, dir string) (*AuditConsumer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return newAuditConsumer(url, f, f), nil
}

func newAuditConsumer(url string, w io.Writer, c io.Closer) *AuditConsumer {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return &AuditConsumer{url: url, log: l, out: c}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// (capped at 30s) whenever the broker goes away. It returns nil on
// cancellation.
func (c *AuditConsumer) Run(ctx context.Context) error {
	defer c.out.Close()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			logrus.WithError(err).WithField("retry_in", backoff).Warn("audit-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logrus.WithError(err).Warn("audit-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logrus.WithError(err).Warn("audit-consumer: set QoS failed")
	}
	if err := declareExchange(ch); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(auditQueueName, "#", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				logrus.WithError(err).Warn("audit-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ID == "" {
		return errors.New("event without id or type")
	}
	var payload map[string]any
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	c.log.WithFields(logrus.Fields{
		"event_id":       ev.ID,
		"event_type":     ev.Type,
		"occurred_at":    ev.OccurredAt.Format(time.RFC3339),
		"correlation_id": ev.CorrelationID,
		"payload":        payload,
	}).Info(ev.Type)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
