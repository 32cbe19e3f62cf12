// Package deadletter mirrors discarded deliveries to an external topic before
// the broker drops them.
package deadletter

import (
	"context"
	"fmt"

	"ima/broker"
)

// Forwarder receives a delivery the drain is about to discard.
type Forwarder interface {
	Forward(ctx context.Context, d broker.Delivery, cause error) error
	Close() error
}

type Config struct {
	Driver       string   `koanf:"driver"` // ""|kafka
	Brokers      []string `koanf:"brokers"`
	Topic        string   `koanf:"topic"`
	RequiredAcks int16    `koanf:"required_acks"` // 0,1,-1
	Version      string   `koanf:"version"`
}

// Noop is used when no dead-letter driver is configured.
type Noop struct{}

func (Noop) Forward(context.Context, broker.Delivery, error) error { return nil }
func (Noop) Close() error                                          { return nil }

type factory = func(Config) (Forwarder, error)

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

// New builds the configured forwarder; an empty driver yields Noop.
func New(cfg Config) (Forwarder, error) {
	if cfg.Driver == "" {
		return Noop{}, nil
	}
	if f, ok := reg[cfg.Driver]; ok {
		return f(cfg)
	}
	return nil, fmt.Errorf("unknown dead-letter driver %q", cfg.Driver)
}
