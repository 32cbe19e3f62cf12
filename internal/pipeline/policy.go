package pipeline

import (
	"errors"

	"ima/internal/codec"
	"ima/sink"
)

type verdict int

const (
	verdictAck     verdict = iota
	verdictRequeue         // Nack(requeue=true)
	verdictDiscard         // Nack(requeue=false)
)

func (v verdict) String() string {
	switch v {
	case verdictAck:
		return "acked"
	case verdictRequeue:
		return "requeued"
	case verdictDiscard:
		return "discarded"
	default:
		return "unknown"
	}
}

// resolve maps the outcome of processing one delivery to how it is settled.
// Parse failures go back to the queue; store failures are dropped. Anything
// unclassified is requeued so it is never lost silently.
func resolve(err error) verdict {
	if err == nil {
		return verdictAck
	}
	var pe *codec.ParseError
	if errors.As(err, &pe) {
		return verdictRequeue
	}
	var se *sink.PersistenceError
	if errors.As(err, &se) {
		return verdictDiscard
	}
	return verdictRequeue
}
