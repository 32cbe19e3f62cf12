// Package intake publishes submitted messages onto the queue and remembers
// what was sent.
package intake

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ima/broker"
	"ima/internal/logging"
	"ima/internal/telemetry"
)

// SendLog is the in-process, append-only record of published messages.
type SendLog struct {
	mu   sync.Mutex
	sent []string
}

func (l *SendLog) append(msg string) {
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()
}

// Snapshot returns a copy in publish order.
func (l *SendLog) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

type Gateway struct {
	broker  broker.Adapter
	queue   string
	log     *SendLog
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

type Option func(*Gateway)

func WithMetrics(m *telemetry.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func WithTracer(t trace.Tracer) Option { return func(g *Gateway) { g.tracer = t } }

func New(b broker.Adapter, queue string, opts ...Option) *Gateway {
	g := &Gateway{broker: b, queue: queue, log: &SendLog{}}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = telemetry.NewMetrics(prometheus.NewRegistry())
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer("ima/intake")
	}
	return g
}

// Submit declares the queue, publishes raw as a persistent message and, only
// once that succeeded, appends it to the send log.
func (g *Gateway) Submit(ctx context.Context, raw string) (err error) {
	ctx, span := g.tracer.Start(ctx, "intake.submit", trace.WithAttributes(
		attribute.String("messaging.destination.name", g.queue),
		attribute.Int("messaging.message.body.size", len(raw)),
	))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logging.L().Error("publish failed", "queue", g.queue, "err", err)
		}
		g.metrics.IntakePublished.WithLabelValues(status).Inc()
		span.End()
	}()

	if err := g.publish(ctx, raw); err != nil {
		return err
	}
	g.log.append(raw)
	logging.L().Info("message published", "queue", g.queue)
	return nil
}

func (g *Gateway) publish(ctx context.Context, raw string) error {
	ch, err := g.broker.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := ch.Close(); err != nil {
			logging.L().Warn("close broker session", "err", err)
		}
	}()

	if err := ch.Declare(ctx, g.queue); err != nil {
		return fmt.Errorf("intake: %w", err)
	}
	if err := ch.Publish(ctx, g.queue, []byte(raw)); err != nil {
		return fmt.Errorf("intake: %w", err)
	}
	return nil
}

// Sent returns the messages published so far, oldest first.
func (g *Gateway) Sent() []string { return g.log.Snapshot() }
