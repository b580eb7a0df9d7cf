package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
)

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func UniqSuffix() string { return randHex(6) }

// MakeOrder — валидный заказ в уникальном ресторане.
func MakeOrder(opts ...func(*domain.Order)) domain.Order {
	o := domain.Order{
		ID:           "ord-" + UniqSuffix(),
		RestaurantID: "rest-" + UniqSuffix(),
		TableNumber:  7,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Items: []domain.Item{
			{Name: "Pelmeni", Price: 8.5, Quantity: 2},
			{Name: "Kvass", Price: 2, Quantity: 1},
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	o.Total = o.ComputeTotal()
	return o
}

func WithRestaurant(rid string) func(*domain.Order) {
	return func(o *domain.Order) { o.RestaurantID = rid }
}

// MakeChange — сообщение ленты изменений о записи заказа.
func MakeChange(o domain.Order) []byte {
	value, _ := json.Marshal(o)
	raw, _ := json.Marshal(domain.Change{
		Path:  domain.OrderPath(o.RestaurantID, o.ID),
		Op:    domain.ChangeSet,
		Value: value,
		At:    time.Now().UTC(),
	})
	return raw
}
