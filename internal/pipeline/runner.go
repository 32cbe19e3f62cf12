package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ima/broker"
	"ima/deadletter"
	"ima/internal/codec"
	"ima/internal/logging"
	"ima/internal/telemetry"
	"ima/sink"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeEmpty     Outcome = "empty"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Report describes one Drain call. Callers are free to ignore it.
type Report struct {
	Outcome   Outcome
	Depth     int // snapshot taken at entry
	Fetched   int
	Acked     int
	Requeued  int
	Discarded int
	Missing   int // iterations that found the queue empty
	Duration  time.Duration
	Err       error
}

// Drainer empties the queue once per Drain call: it fetches exactly as many
// messages as the queue held on entry, stores each and settles it.
type Drainer struct {
	broker broker.Adapter
	store  sink.Adapter
	queue  string

	guard   *Guard
	dlq     deadletter.Forwarder
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	log     *slog.Logger
}

type Option func(*Drainer)

// WithGuard shares g with other drainers or callers.
func WithGuard(g *Guard) Option { return func(d *Drainer) { d.guard = g } }

func WithDeadLetter(f deadletter.Forwarder) Option { return func(d *Drainer) { d.dlq = f } }

func WithMetrics(m *telemetry.Metrics) Option { return func(d *Drainer) { d.metrics = m } }

func WithTracer(t trace.Tracer) Option { return func(d *Drainer) { d.tracer = t } }

func WithLogger(l *slog.Logger) Option { return func(d *Drainer) { d.log = l } }

func NewDrainer(b broker.Adapter, s sink.Adapter, queue string, opts ...Option) *Drainer {
	d := &Drainer{broker: b, store: s, queue: queue}
	for _, o := range opts {
		o(d)
	}
	if d.guard == nil {
		d.guard = &Guard{}
	}
	if d.dlq == nil {
		d.dlq = deadletter.Noop{}
	}
	if d.metrics == nil {
		d.metrics = telemetry.NewMetrics(prometheus.NewRegistry())
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("ima/pipeline")
	}
	return d
}

func (d *Drainer) Guard() *Guard { return d.guard }

func (d *Drainer) logger() *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return logging.L()
}

// Drain runs one pass over the queue. Without force it returns immediately
// when another drain holds the guard. Failures are logged and reported, never
// returned; the guard is released on every path, including panics.
func (d *Drainer) Drain(ctx context.Context, force bool) (rep Report) {
	log := d.logger().With("queue", d.queue)

	if !d.guard.TryEnter() {
		if !force {
			log.Info("queue drain already in progress")
			d.metrics.DrainRuns.WithLabelValues(string(OutcomeSkipped)).Inc()
			return Report{Outcome: OutcomeSkipped}
		}
		log.Warn("forcing queue drain while another is in progress")
		d.guard.Enter()
	}
	defer d.guard.Leave()

	d.metrics.DrainInProgress.Inc()
	defer d.metrics.DrainInProgress.Dec()

	ctx, span := d.tracer.Start(ctx, "queue.drain", trace.WithAttributes(
		attribute.String("messaging.destination.name", d.queue),
		attribute.Bool("ima.drain.force", force),
	))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			rep.Outcome = OutcomeFailed
			rep.Err = fmt.Errorf("drain panicked: %v", r)
		}
		rep.Duration = time.Since(start)

		d.metrics.DrainRuns.WithLabelValues(string(rep.Outcome)).Inc()
		d.metrics.DrainDuration.Observe(rep.Duration.Seconds())
		span.SetAttributes(
			attribute.Int("ima.drain.depth", rep.Depth),
			attribute.Int("ima.drain.acked", rep.Acked),
			attribute.Int("ima.drain.requeued", rep.Requeued),
			attribute.Int("ima.drain.discarded", rep.Discarded),
		)
		if rep.Err != nil {
			span.RecordError(rep.Err)
			span.SetStatus(codes.Error, rep.Err.Error())
			log.Error("queue drain failed", "err", rep.Err, "fetched", rep.Fetched)
		} else {
			log.Info("queue drain finished",
				"outcome", rep.Outcome,
				"depth", rep.Depth,
				"acked", rep.Acked,
				"requeued", rep.Requeued,
				"discarded", rep.Discarded,
				"missing", rep.Missing,
				"took", rep.Duration)
		}
		span.End()
	}()

	d.run(ctx, log, &rep)
	return rep
}

func (d *Drainer) run(ctx context.Context, log *slog.Logger, rep *Report) {
	ch, err := d.broker.Connect(ctx)
	if err != nil {
		rep.Outcome, rep.Err = OutcomeFailed, err
		return
	}
	defer func() {
		if err := ch.Close(); err != nil {
			log.Warn("close broker session", "err", err)
		}
	}()

	n, err := ch.Inspect(ctx, d.queue)
	if err != nil {
		rep.Outcome, rep.Err = OutcomeFailed, err
		return
	}
	rep.Depth = n
	if n == 0 {
		log.Info("queue is empty")
		rep.Outcome = OutcomeEmpty
		return
	}

	// n is not re-read: messages published meanwhile wait for the next drain.
	for i := 0; i < n; i++ {
		del, ok, err := ch.Fetch(ctx, d.queue)
		if err != nil {
			rep.Outcome, rep.Err = OutcomeFailed, err
			return
		}
		if !ok {
			rep.Missing++
			d.metrics.DrainMessages.WithLabelValues("missing").Inc()
			continue
		}
		rep.Fetched++
		if err := d.handle(ctx, log, ch, del, rep); err != nil {
			rep.Outcome, rep.Err = OutcomeFailed, err
			return
		}
	}
	rep.Outcome = OutcomeCompleted
}

// handle processes and settles one delivery. Only a settle failure is returned.
func (d *Drainer) handle(ctx context.Context, log *slog.Logger, ch broker.Channel, del broker.Delivery, rep *Report) error {
	ctx, span := d.tracer.Start(ctx, "queue.message", trace.WithAttributes(
		attribute.String("messaging.message.id", del.MessageID),
		attribute.Bool("messaging.rabbitmq.redelivered", del.Redelivered),
	))
	defer span.End()

	cause := d.process(ctx, del)
	v := resolve(cause)
	span.SetAttributes(attribute.String("ima.verdict", v.String()))

	var err error
	switch v {
	case verdictAck:
		err = ch.Ack(del.Tag)
	case verdictRequeue:
		log.Warn("message requeued", "message_id", del.MessageID, "err", cause)
		err = ch.Nack(del.Tag, true)
	case verdictDiscard:
		log.Error("message discarded", "message_id", del.MessageID, "err", cause)
		if ferr := d.dlq.Forward(ctx, del, cause); ferr != nil {
			log.Error("dead-letter forward failed", "message_id", del.MessageID, "err", ferr)
		}
		err = ch.Nack(del.Tag, false)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("settle delivery %d as %s: %w", del.Tag, v, err)
	}
	switch v {
	case verdictAck:
		rep.Acked++
	case verdictRequeue:
		rep.Requeued++
	case verdictDiscard:
		rep.Discarded++
	}
	d.metrics.DrainMessages.WithLabelValues(v.String()).Inc()
	return nil
}

func (d *Drainer) process(ctx context.Context, del broker.Delivery) error {
	rec, err := codec.Parse(del.Body)
	if err != nil {
		return err
	}
	return d.store.Store(ctx, rec)
}
