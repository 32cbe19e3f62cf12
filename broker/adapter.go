package broker

import (
	"context"
	"fmt"
)

// CountUnknown is what InspectCount reports when the depth could not be read.
const CountUnknown = -1

// Delivery is one message fetched in manual-acknowledgement mode.
type Delivery struct {
	Tag         uint64
	Body        []byte
	MessageID   string
	Redelivered bool
}

// Channel is a session opened by Adapter.Connect. It is owned by the call
// that opened it and must be closed on every path.
type Channel interface {
	// Declare creates the durable queue if it does not exist.
	Declare(ctx context.Context, queue string) error
	// Publish sends a persistent message to queue through the default exchange.
	Publish(ctx context.Context, queue string, body []byte) error
	// Inspect passively declares queue and returns its ready depth.
	Inspect(ctx context.Context, queue string) (int, error)
	// Fetch gets at most one message without auto-ack. ok is false when the
	// queue was empty at that instant.
	Fetch(ctx context.Context, queue string) (d Delivery, ok bool, err error)
	Ack(tag uint64) error
	Nack(tag uint64, requeue bool) error
	Close() error
}

type Adapter interface {
	Configure(Config) error
	Connect(ctx context.Context) (Channel, error)
}

// ConnectionError reports a transport or authentication failure towards the broker.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
