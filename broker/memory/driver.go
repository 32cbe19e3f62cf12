// Package memory is an in-process broker driver with AMQP-like queue
// semantics. It backs the tests and lets the service run without RabbitMQ.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"ima/broker"
)

var (
	ErrUnreachable  = errors.New("memory broker unreachable")
	ErrNotFound     = errors.New("queue not found")
	ErrUnknownTag   = errors.New("unknown delivery tag")
	ErrChannelClose = errors.New("channel closed")
)

type message struct {
	id          string
	body        []byte
	redelivered bool
}

type queue struct {
	ready []message
}

// Driver holds the queues; every channel it opens shares them.
type Driver struct {
	mu       sync.Mutex
	queues   map[string]*queue
	nextTag  uint64
	down     bool
	sessions int
}

func New() *Driver {
	return &Driver{queues: make(map[string]*queue)}
}

func (d *Driver) Configure(broker.Config) error { return nil }

// SetReachable toggles a simulated outage; while unreachable Connect fails.
func (d *Driver) SetReachable(ok bool) {
	d.mu.Lock()
	d.down = !ok
	d.mu.Unlock()
}

// Depth returns the ready count of queue, or -1 when it was never declared.
func (d *Driver) Depth(queue string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[queue]
	if !ok {
		return -1
	}
	return len(q.ready)
}

// OpenSessions reports channels that were opened and not yet closed.
func (d *Driver) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions
}

func (d *Driver) Connect(ctx context.Context) (broker.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, &broker.ConnectionError{Op: "dial", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return nil, &broker.ConnectionError{Op: "dial", Err: ErrUnreachable}
	}
	d.sessions++
	return &channel{d: d, unacked: make(map[uint64]pending)}, nil
}

type pending struct {
	queue string
	msg   message
}

type channel struct {
	d       *Driver
	unacked map[uint64]pending
	closed  bool
}

func (c *channel) Declare(_ context.Context, name string) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.closed {
		return ErrChannelClose
	}
	if _, ok := c.d.queues[name]; !ok {
		c.d.queues[name] = &queue{}
	}
	return nil
}

// Publish to an undeclared queue is dropped, as the default exchange does.
func (c *channel) Publish(_ context.Context, name string, body []byte) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.closed {
		return ErrChannelClose
	}
	q, ok := c.d.queues[name]
	if !ok {
		return nil
	}
	q.ready = append(q.ready, message{id: uuid.NewString(), body: append([]byte(nil), body...)})
	return nil
}

func (c *channel) Inspect(_ context.Context, name string) (int, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.closed {
		return 0, ErrChannelClose
	}
	q, ok := c.d.queues[name]
	if !ok {
		return 0, fmt.Errorf("inspect queue %q: %w", name, ErrNotFound)
	}
	return len(q.ready), nil
}

func (c *channel) Fetch(_ context.Context, name string) (broker.Delivery, bool, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.closed {
		return broker.Delivery{}, false, ErrChannelClose
	}
	q, ok := c.d.queues[name]
	if !ok {
		return broker.Delivery{}, false, fmt.Errorf("get from %q: %w", name, ErrNotFound)
	}
	if len(q.ready) == 0 {
		return broker.Delivery{}, false, nil
	}
	m := q.ready[0]
	q.ready = q.ready[1:]

	c.d.nextTag++
	tag := c.d.nextTag
	c.unacked[tag] = pending{queue: name, msg: m}
	return broker.Delivery{
		Tag:         tag,
		Body:        m.body,
		MessageID:   m.id,
		Redelivered: m.redelivered,
	}, true, nil
}

func (c *channel) Ack(tag uint64) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if _, ok := c.unacked[tag]; !ok {
		return fmt.Errorf("ack %d: %w", tag, ErrUnknownTag)
	}
	delete(c.unacked, tag)
	return nil
}

func (c *channel) Nack(tag uint64, requeue bool) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	p, ok := c.unacked[tag]
	if !ok {
		return fmt.Errorf("nack %d: %w", tag, ErrUnknownTag)
	}
	delete(c.unacked, tag)
	if requeue {
		c.d.requeueLocked(p)
	}
	return nil
}

// Close returns unsettled deliveries to their queues.
func (c *channel) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.d.sessions--
	// newest first, so the oldest ends up back at the head
	tags := make([]uint64, 0, len(c.unacked))
	for tag := range c.unacked {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	for _, tag := range slices.Backward(tags) {
		c.d.requeueLocked(c.unacked[tag])
		delete(c.unacked, tag)
	}
	return nil
}

// must be called with d.mu held
func (d *Driver) requeueLocked(p pending) {
	q, ok := d.queues[p.queue]
	if !ok {
		return
	}
	p.msg.redelivered = true
	q.ready = append([]message{p.msg}, q.ready...)
}

func init() {
	broker.Register("memory", func() broker.Adapter { return New() })
}
