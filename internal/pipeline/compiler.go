package pipeline

import (
	"context"
	"errors"
	"fmt"

	"ima/broker"
	_ "ima/broker/memory"
	_ "ima/broker/rabbitmq"
	"ima/deadletter"
	_ "ima/deadletter/kafka"
	"ima/internal/config"
	"ima/internal/logging"
	"ima/sink"
	_ "ima/sink/mysql"
	_ "ima/sink/postgres"
	_ "ima/sink/stdout"
)

// Pipeline is the wired set of adapters the service runs on.
type Pipeline struct {
	Broker     broker.Adapter
	Store      sink.Adapter
	DeadLetter deadletter.Forwarder
	Drainer    *Drainer
	Queue      string
}

// Compile resolves the configured drivers and builds the drainer. opts are
// applied after the dead-letter forwarder, so tests may override it.
func Compile(ctx context.Context, cfg config.Config, opts ...Option) (*Pipeline, error) {
	b, err := broker.NewAdapter(cfg.Broker.Driver)
	if err != nil {
		return nil, err
	}
	if err := b.Configure(cfg.Broker); err != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.Broker.Driver, err)
	}

	s, err := sink.NewAdapter(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}
	if err := s.Configure(cfg.Store); err != nil {
		return nil, fmt.Errorf("store %s: %w", cfg.Store.Driver, err)
	}
	if cfg.Store.AutoMigrate {
		if m, ok := s.(sink.Migrator); ok {
			if err := m.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
	}

	dlq, err := deadletter.New(cfg.DeadLetter)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	logging.L().Info("pipeline compiled",
		"broker", cfg.Broker.Driver,
		"queue", cfg.Broker.Queue,
		"store", cfg.Store.Driver,
		"table", cfg.Store.Table,
		"deadletter", cfg.DeadLetter.Driver)

	all := append([]Option{WithDeadLetter(dlq)}, opts...)
	return &Pipeline{
		Broker:     b,
		Store:      s,
		DeadLetter: dlq,
		Drainer:    NewDrainer(b, s, cfg.Broker.Queue, all...),
		Queue:      cfg.Broker.Queue,
	}, nil
}

func (p *Pipeline) Close() error {
	return errors.Join(p.Store.Close(), p.DeadLetter.Close())
}
