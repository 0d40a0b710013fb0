package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	got  [][]byte
	full bool
}

func (r *recorder) Deliver(p []byte) bool {
	if r.full {
		return false
	}
	r.got = append(r.got, p)
	return true
}

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBroker()
	a, c := &recorder{}, &recorder{}
	b.Subscribe(a, "r/lobby")
	b.Subscribe(a, "r/lobby")
	b.Subscribe(c, "r/lobby")

	require.Equal(t, 2, b.Subscribers("r/lobby"))
	require.Equal(t, 2, b.Publish("r/lobby", []byte{1}))
	require.Len(t, a.got, 1)
	require.Len(t, c.got, 1)
}

func TestUnsubscribeOnlyAffectsOne(t *testing.T) {
	b := NewBroker()
	a, c := &recorder{}, &recorder{}
	b.Subscribe(a, "t")
	b.Subscribe(c, "t")
	b.Unsubscribe(a, "t")

	b.Publish("t", []byte{1})
	require.Empty(t, a.got)
	require.Len(t, c.got, 1)

	b.Unsubscribe(c, "t")
	require.Equal(t, 0, b.Subscribers("t"))
	b.Unsubscribe(c, "missing")
}

func TestUnsubscribeAll(t *testing.T) {
	b := NewBroker()
	a := &recorder{}
	b.Subscribe(a, "x")
	b.Subscribe(a, "y")
	b.UnsubscribeAll(a)

	require.Zero(t, b.Publish("x", []byte{1}))
	require.Zero(t, b.Publish("y", []byte{1}))
}

func TestPublishCountsDrops(t *testing.T) {
	b := NewBroker()
	full := &recorder{full: true}
	b.Subscribe(full, "t")
	require.Zero(t, b.Publish("t", []byte{1}))
}
