package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestPendingOperation_FlatJSON(t *testing.T) {
	order := &domain.Order{ID: "o1", RestaurantID: "r1", TableNumber: 4,
		Items: []domain.Item{{Name: "Борщ", Price: 350, Quantity: 2}}, Status: domain.StatusPending}
	payload, err := domain.NewOrderOperation(order)
	require.NoError(t, err)

	op := domain.PendingOperation{
		ID:         "6b1f",
		Type:       domain.OpOrder,
		EnqueuedAt: time.UnixMilli(1_700_000_000_123),
		Payload:    payload,
	}
	raw, err := json.Marshal(op)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	require.Equal(t, "6b1f", flat["id"])
	require.Equal(t, "order", flat["type"])
	require.Equal(t, "r1", flat["restaurantId"])
	require.EqualValues(t, 1_700_000_000_123, flat["timestamp"])

	var back domain.PendingOperation
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, op.ID, back.ID)
	require.Equal(t, op.Type, back.Type)
	require.True(t, op.EnqueuedAt.Equal(back.EnqueuedAt))

	var got domain.Order
	require.NoError(t, back.Field(domain.FieldData, &got))
	require.Equal(t, order.Items, got.Items)

	var missing string
	require.Error(t, back.Field(domain.FieldURL, &missing))
}

func TestClassifyLatency(t *testing.T) {
	require.Equal(t, domain.QualityExcellent, domain.ClassifyLatency(199*time.Millisecond))
	require.Equal(t, domain.QualityGood, domain.ClassifyLatency(200*time.Millisecond))
	require.Equal(t, domain.QualityGood, domain.ClassifyLatency(499*time.Millisecond))
	require.Equal(t, domain.QualitySlow, domain.ClassifyLatency(500*time.Millisecond))
}

func TestRestaurantFromOrdersPath(t *testing.T) {
	rid, ok := domain.RestaurantFromOrdersPath("restaurant-system/orders/r7/o1/status")
	require.True(t, ok)
	require.Equal(t, "r7", rid)

	_, ok = domain.RestaurantFromOrdersPath("restaurant-system/tables/r7")
	require.False(t, ok)
	_, ok = domain.RestaurantFromOrdersPath("restaurant-system/orders/")
	require.False(t, ok)
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := &domain.Order{ID: "o1", Items: []domain.Item{{Name: "чай", Price: 100, Quantity: 1}}}
	cp := o.Clone()
	cp.Items[0].Name = "кофе"
	require.Equal(t, "чай", o.Items[0].Name)
	require.InDelta(t, 100.0, o.ComputeTotal(), 0.001)
}
