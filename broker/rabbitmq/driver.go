package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"ima/broker"
	"ima/internal/logging"
)

const contentType = "text/plain; charset=utf-8"

// Driver dials a fresh connection per Connect; nothing is shared between
// sessions.
type Driver struct {
	cfg broker.Config
}

func (d *Driver) Configure(cfg broker.Config) error {
	if cfg.Host == "" {
		return errors.New("rabbitmq: host is required")
	}
	if cfg.Queue == "" {
		return errors.New("rabbitmq: queue is required")
	}
	d.cfg = cfg
	return nil
}

// URI renders the connection target. The password is left out so the result
// can be logged.
func (d *Driver) URI() string {
	return d.uri("").String()
}

func (d *Driver) uri(password string) amqp.URI {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     d.cfg.Host,
		Port:     d.cfg.Port,
		Username: d.cfg.User,
		Password: password,
		Vhost:    d.cfg.VHost,
	}
}

func (d *Driver) Connect(ctx context.Context) (broker.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, &broker.ConnectionError{Op: "dial", Err: err}
	}
	conn, err := amqp.DialConfig(d.uri(d.cfg.Password).String(), amqp.Config{
		Vhost:     d.cfg.VHost,
		Heartbeat: d.cfg.Heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(d.cfg.DialTimeout),
	})
	if err != nil {
		return nil, &broker.ConnectionError{Op: "dial", Err: err}
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, &broker.ConnectionError{Op: "open channel", Err: err}
	}

	if d.cfg.PublisherConfirms {
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			conn.Close()
			return nil, &broker.ConnectionError{Op: "enable confirms", Err: err}
		}
	}

	logging.L().Debug("rabbitmq: session opened", "uri", d.URI())
	return &channel{conn: conn, ch: ch, confirms: d.cfg.PublisherConfirms}, nil
}

type channel struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms bool
}

func (c *channel) Declare(_ context.Context, queue string) error {
	_, err := c.ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return nil
}

func (c *channel) Publish(ctx context.Context, queue string, body []byte) error {
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentType,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	}

	if !c.confirms {
		if err := c.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
			return fmt.Errorf("publish to %q: %w", queue, err)
		}
		return nil
	}

	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish to %q: %w", queue, err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish to %q: wait for confirm: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %q: broker nacked message %s", queue, msg.MessageId)
	}
	return nil
}

func (c *channel) Inspect(_ context.Context, queue string) (int, error) {
	q, err := c.ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("inspect queue %q: %w", queue, err)
	}
	return q.Messages, nil
}

func (c *channel) Fetch(_ context.Context, queue string) (broker.Delivery, bool, error) {
	m, ok, err := c.ch.Get(queue, false)
	if err != nil {
		return broker.Delivery{}, false, fmt.Errorf("get from %q: %w", queue, err)
	}
	if !ok {
		return broker.Delivery{}, false, nil
	}
	return broker.Delivery{
		Tag:         m.DeliveryTag,
		Body:        m.Body,
		MessageID:   m.MessageId,
		Redelivered: m.Redelivered,
	}, true, nil
}

func (c *channel) Ack(tag uint64) error {
	return c.ch.Ack(tag, false)
}

func (c *channel) Nack(tag uint64, requeue bool) error {
	return c.ch.Nack(tag, false, requeue)
}

func (c *channel) Close() error {
	var errs []error
	if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func init() {
	broker.Register("rabbitmq", func() broker.Adapter { return &Driver{} })
}
