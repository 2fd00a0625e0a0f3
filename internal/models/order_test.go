package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsTerminalStatus(t *testing.T) {
	require.True(t, IsTerminalStatus(OrderCancelled))
	require.True(t, IsTerminalStatus(OrderRefunded))
	require.False(t, IsTerminalStatus(OrderPending))
	require.False(t, IsTerminalStatus(OrderDelivered))
}

func TestCanTransitionTo(t *testing.T) {
	order := &Order{Status: string(OrderPending)}
	require.True(t, order.CanTransitionTo(OrderConfirmed))
	require.True(t, order.CanTransitionTo(OrderCancelled))
	require.False(t, order.CanTransitionTo(OrderShipped))
	require.False(t, order.CanTransitionTo(OrderPending))

	order.Status = string(OrderCancelled)
	require.False(t, order.CanTransitionTo(OrderPending))
	require.False(t, order.CanTransitionTo(OrderConfirmed))
}

func TestCanBeCancelled(t *testing.T) {
	for status, want := range map[OrderStatus]bool{
		OrderPending:    true,
		OrderConfirmed:  true,
		OrderProcessing: false,
		OrderShipped:    false,
		OrderDelivered:  false,
		OrderCancelled:  false,
	} {
		order := &Order{Status: string(status)}
		require.Equal(t, want, order.CanBeCancelled(), "status %s", status)
	}
}

func TestCanBeRefunded(t *testing.T) {
	window := 7 * 24 * time.Hour

	recent := time.Now().Add(-time.Hour)
	order := &Order{Status: string(OrderDelivered), DeliveredAt: &recent}
	require.True(t, order.CanBeRefunded(window))

	stale := time.Now().Add(-8 * 24 * time.Hour)
	order.DeliveredAt = &stale
	require.False(t, order.CanBeRefunded(window))

	order.DeliveredAt = nil
	require.False(t, order.CanBeRefunded(window))

	order.Status = string(OrderShipped)
	order.DeliveredAt = &recent
	require.False(t, order.CanBeRefunded(window))
}
