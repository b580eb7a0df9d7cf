package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/realtime"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

type recordingCache struct{ prefixes []string }

func (c *recordingCache) Invalidate(prefix string) int {
	c.prefixes = append(c.prefixes, prefix)
	return 1
}

func TestHub_DeliversWithinSubtree(t *testing.T) {
	h := realtime.NewHub(nopLogger{})

	var orders, other []string
	h.Subscribe(domain.OrdersPath("r1"), func(c domain.Change) { orders = append(orders, c.Path) })
	h.Subscribe("restaurant-system/menus", func(c domain.Change) { other = append(other, c.Path) })

	ctx := context.Background()
	h.Publish(ctx, domain.Change{Path: domain.OrderPath("r1", "o1"), Op: domain.ChangeSet})
	h.Publish(ctx, domain.Change{Path: domain.OrderPath("r2", "o1"), Op: domain.ChangeSet})
	h.Publish(ctx, domain.Change{Path: "/restaurant-system/", Op: domain.ChangeRemove})

	require.Equal(t, []string{"restaurant-system/orders/r1/o1", "restaurant-system"}, orders)
	require.Equal(t, []string{"restaurant-system"}, other)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := realtime.NewHub(nopLogger{})
	calls := 0
	unsub := h.Subscribe("a", func(domain.Change) { calls++ })
	require.Equal(t, 1, h.Len())

	unsub()
	unsub()
	require.Zero(t, h.Len())

	h.Publish(context.Background(), domain.Change{Path: "a/b", Op: domain.ChangeSet})
	require.Zero(t, calls)
}

func TestHub_ApplyChange_InvalidatesRestaurantOrders(t *testing.T) {
	cache := &recordingCache{}
	h := realtime.NewHub(nopLogger{}, realtime.WithInvalidator(cache))

	got := make(chan domain.Change, 1)
	h.Subscribe(domain.OrdersPath("r7"), func(c domain.Change) { got <- c })

	raw := []byte(`{"path":"restaurant-system/orders/r7/o9/status","op":"set","value":"ready","at":"2025-01-02T03:04:05Z"}`)
	require.NoError(t, h.ApplyChange(context.Background(), raw))

	require.Equal(t, []string{"orders_r7"}, cache.prefixes)
	c := <-got
	require.JSONEq(t, `"ready"`, string(c.Value))
	require.True(t, c.At.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestHub_ApplyChange_RejectsGarbage(t *testing.T) {
	h := realtime.NewHub(nopLogger{})
	ctx := context.Background()

	for _, raw := range []string{`not-json`, `{"op":"set"}`, `{"path":"a","op":"merge"}`} {
		err := h.ApplyChange(ctx, []byte(raw))
		require.ErrorIs(t, err, apperr.ErrInvalidArgument, raw)
		require.True(t, apperr.IsPermanent(err))
	}
}
