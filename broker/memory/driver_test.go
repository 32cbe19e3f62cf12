package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ima/broker"
)

func open(t *testing.T, d *Driver) broker.Channel {
	t.Helper()
	ch, err := d.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestPublishThenInspect(t *testing.T) {
	ctx := context.Background()
	d := New()
	ch := open(t, d)

	require.NoError(t, ch.Declare(ctx, "q"))
	require.NoError(t, ch.Publish(ctx, "q", []byte("hello")))

	n, err := ch.Inspect(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInspectUnknownQueue(t *testing.T) {
	ch := open(t, New())
	_, err := ch.Inspect(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPublishUndeclaredIsDropped(t *testing.T) {
	d := New()
	ch := open(t, d)
	require.NoError(t, ch.Publish(context.Background(), "nowhere", []byte("x")))
	assert.Equal(t, -1, d.Depth("nowhere"))
}

func TestFetchAckNack(t *testing.T) {
	ctx := context.Background()
	d := New()
	ch := open(t, d)
	require.NoError(t, ch.Declare(ctx, "q"))
	require.NoError(t, ch.Publish(ctx, "q", []byte("a")))
	require.NoError(t, ch.Publish(ctx, "q", []byte("b")))

	first, ok, err := ch.Fetch(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(first.Body))
	assert.False(t, first.Redelivered)

	require.NoError(t, ch.Nack(first.Tag, true))
	assert.Equal(t, 2, d.Depth("q"))

	again, ok, err := ch.Fetch(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(again.Body), "requeued delivery goes back to the head")
	assert.True(t, again.Redelivered)
	require.NoError(t, ch.Ack(again.Tag))

	second, ok, err := ch.Fetch(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ch.Nack(second.Tag, false))
	assert.Equal(t, 0, d.Depth("q"))

	_, ok, err = ch.Fetch(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, ch.Ack(second.Tag), ErrUnknownTag)
}

func TestCloseRequeuesUnsettled(t *testing.T) {
	ctx := context.Background()
	d := New()
	ch, err := d.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, ch.Declare(ctx, "q"))
	require.NoError(t, ch.Publish(ctx, "q", []byte("a")))

	_, ok, err := ch.Fetch(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, d.Depth("q"))
	assert.Equal(t, 1, d.OpenSessions())

	require.NoError(t, ch.Close())
	assert.Equal(t, 1, d.Depth("q"))
	assert.Equal(t, 0, d.OpenSessions())
}

func TestCloseRestoresOriginalOrder(t *testing.T) {
	ctx := context.Background()
	d := New()
	ch, err := d.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, ch.Declare(ctx, "q"))
	for _, b := range []string{"a", "b", "c", "d"} {
		require.NoError(t, ch.Publish(ctx, "q", []byte(b)))
	}
	for range 3 {
		_, ok, err := ch.Fetch(ctx, "q")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, ch.Close())

	next := open(t, d)
	var got []string
	for {
		m, ok, err := next.Fetch(ctx, "q")
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(m.Body))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestUnreachable(t *testing.T) {
	d := New()
	d.SetReachable(false)

	_, err := d.Connect(context.Background())
	var ce *broker.ConnectionError
	require.True(t, errors.As(err, &ce))
	require.ErrorIs(t, err, ErrUnreachable)

	assert.Equal(t, broker.CountUnknown, broker.InspectCount(context.Background(), d, "q"))
}

func TestInspectCount(t *testing.T) {
	ctx := context.Background()
	d := New()
	ch := open(t, d)
	require.NoError(t, ch.Declare(ctx, "q"))

	assert.Equal(t, 0, broker.InspectCount(ctx, d, "q"))
	require.NoError(t, ch.Publish(ctx, "q", []byte("x")))
	assert.Equal(t, 1, broker.InspectCount(ctx, d, "q"))
	assert.Equal(t, broker.CountUnknown, broker.InspectCount(ctx, d, "other"))
	assert.Equal(t, 1, d.OpenSessions(), "InspectCount closes its own session")
}
