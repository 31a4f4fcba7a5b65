package events_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/events"
)

func TestPublishFansOut(t *testing.T) {
	bus := events.NewBus()
	var first, second []string
	bus.Subscribe(events.SubscriberFunc(func(n events.Notice) error {
		first = append(first, n.Code)
		return nil
	}))
	bus.Subscribe(events.SubscriberFunc(func(n events.Notice) error {
		second = append(second, n.Code)
		return nil
	}))

	require.NoError(t, bus.Publish(events.Notice{Severity: events.SeverityInfo, Code: events.CodeSaleCompleted}))
	require.Equal(t, []string{events.CodeSaleCompleted}, first)
	require.Equal(t, []string{events.CodeSaleCompleted}, second)
}

func TestPublishRequiresCode(t *testing.T) {
	bus := events.NewBus()
	require.Error(t, bus.Publish(events.Notice{Severity: events.SeverityInfo}))
}

func TestFailingSubscriberDoesNotStopDelivery(t *testing.T) {
	bus := events.NewBus()
	boom := errors.New("boom")
	bus.Subscribe(events.SubscriberFunc(func(events.Notice) error { return boom }))
	delivered := false
	bus.Subscribe(events.SubscriberFunc(func(events.Notice) error {
		delivered = true
		return nil
	}))

	err := bus.Publish(events.Notice{Code: events.CodeOutOfStock})
	require.ErrorIs(t, err, boom)
	require.True(t, delivered)
}

type countingSubscriber struct{ n int }

func (c *countingSubscriber) Notify(events.Notice) error {
	c.n++
	return nil
}

func TestUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	sub := &countingSubscriber{}
	bus.Subscribe(sub)

	require.NoError(t, bus.Publish(events.Notice{Code: events.CodeSaleHeld}))
	bus.Unsubscribe(sub)
	require.NoError(t, bus.Publish(events.Notice{Code: events.CodeSaleHeld}))
	require.Equal(t, 1, sub.n)
}
