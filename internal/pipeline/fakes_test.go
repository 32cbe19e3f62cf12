package pipeline

import (
	"context"
	"errors"
	"sync"

	"ima/broker"
	"ima/internal/codec"
	"ima/sink"
)

// recordingSink keeps stored records; fail, when set, decides the outcome.
type recordingSink struct {
	mu    sync.Mutex
	recs  []codec.Record
	calls int
	fail  func(codec.Record) error
	block chan struct{}
}

func (s *recordingSink) Configure(sink.Config) error { return nil }
func (s *recordingSink) Ping(context.Context) error  { return nil }
func (s *recordingSink) Close() error                { return nil }

func (s *recordingSink) Store(_ context.Context, rec codec.Record) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		if err := s.fail(rec); err != nil {
			return err
		}
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type settle struct {
	tag     uint64
	ack     bool
	requeue bool
}

// scriptedChannel reports a fixed depth and hands out queued deliveries; a nil
// entry means the queue was empty for that Fetch.
type scriptedChannel struct {
	depth      int
	deliveries []*broker.Delivery

	inspectErr error
	fetchErr   error
	ackErr     error

	inspects int
	fetches  int
	settled  []settle
	closed   bool
}

func (c *scriptedChannel) Declare(context.Context, string) error         { return nil }
func (c *scriptedChannel) Publish(context.Context, string, []byte) error { return nil }

func (c *scriptedChannel) Inspect(context.Context, string) (int, error) {
	c.inspects++
	return c.depth, c.inspectErr
}

func (c *scriptedChannel) Fetch(context.Context, string) (broker.Delivery, bool, error) {
	c.fetches++
	if c.fetchErr != nil {
		return broker.Delivery{}, false, c.fetchErr
	}
	if len(c.deliveries) == 0 {
		return broker.Delivery{}, false, nil
	}
	d := c.deliveries[0]
	c.deliveries = c.deliveries[1:]
	if d == nil {
		return broker.Delivery{}, false, nil
	}
	return *d, true, nil
}

func (c *scriptedChannel) Ack(tag uint64) error {
	if c.ackErr != nil {
		return c.ackErr
	}
	c.settled = append(c.settled, settle{tag: tag, ack: true})
	return nil
}

func (c *scriptedChannel) Nack(tag uint64, requeue bool) error {
	c.settled = append(c.settled, settle{tag: tag, requeue: requeue})
	return nil
}

func (c *scriptedChannel) Close() error {
	c.closed = true
	return nil
}

type scriptedAdapter struct {
	ch         *scriptedChannel
	connectErr error
	connects   int
}

func (a *scriptedAdapter) Configure(broker.Config) error { return nil }

func (a *scriptedAdapter) Connect(context.Context) (broker.Channel, error) {
	a.connects++
	if a.connectErr != nil {
		return nil, &broker.ConnectionError{Op: "dial", Err: a.connectErr}
	}
	return a.ch, nil
}

var errBoom = errors.New("boom")
