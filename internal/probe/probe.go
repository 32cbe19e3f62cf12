// Package probe checks that the broker and the store accept connections.
package probe

import (
	"context"
	"errors"
	"sync"

	"ima/broker"
	"ima/internal/logging"
	"ima/sink"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Component struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Result struct {
	Broker Component `json:"rabbitmq"`
	Store  Component `json:"database"`
}

func (r Result) OK() bool {
	return r.Broker.Status == StatusOK && r.Store.Status == StatusOK
}

// Check opens and closes a broker session and pings the store, in parallel.
func Check(ctx context.Context, b broker.Adapter, s sink.Adapter) Result {
	var (
		res Result
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Broker = component("broker", checkBroker(ctx, b))
	}()
	go func() {
		defer wg.Done()
		res.Store = component("store", s.Ping(ctx))
	}()
	wg.Wait()
	return res
}

func checkBroker(ctx context.Context, b broker.Adapter) error {
	ch, err := b.Connect(ctx)
	if err != nil {
		return err
	}
	return ch.Close()
}

func component(name string, err error) Component {
	if err == nil {
		return Component{Status: StatusOK}
	}
	msg := err.Error()
	var ce *broker.ConnectionError
	if errors.As(err, &ce) {
		msg = ce.Op + " failed"
	}
	logging.L().Warn("connection check failed", "component", name, "err", err)
	return Component{Status: StatusError, Error: msg}
}
