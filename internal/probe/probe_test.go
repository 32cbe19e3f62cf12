package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ima/broker/memory"
	"ima/internal/codec"
	"ima/sink"
)

type pingSink struct{ err error }

func (p pingSink) Configure(sink.Config) error               { return nil }
func (p pingSink) Store(context.Context, codec.Record) error { return nil }
func (p pingSink) Ping(context.Context) error                { return p.err }
func (p pingSink) Close() error                              { return nil }

func TestCheck(t *testing.T) {
	ctx := context.Background()

	b := memory.New()
	res := Check(ctx, b, pingSink{})
	assert.True(t, res.OK())
	assert.Equal(t, 0, b.OpenSessions(), "probe closes its session")

	res = Check(ctx, b, pingSink{err: errors.New("access denied")})
	assert.False(t, res.OK())
	assert.Equal(t, StatusOK, res.Broker.Status)
	assert.Equal(t, "access denied", res.Store.Error)

	b.SetReachable(false)
	res = Check(ctx, b, pingSink{})
	assert.False(t, res.OK())
	assert.Equal(t, StatusError, res.Broker.Status)
	assert.Equal(t, "dial failed", res.Broker.Error)
}
