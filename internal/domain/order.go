package domain

import (
	"strings"
	"time"
)

// OrderStatus — жизненный цикл заказа в зале.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid — статус из известного набора.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusServed, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Item — позиция заказа.
type Item struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Notes    string  `json:"notes,omitempty"`
}

// Order — заказ стола в конкретном ресторане.
type Order struct {
	ID           string      `json:"id"`
	RestaurantID string      `json:"restaurant_id"`
	TableNumber  int         `json:"table_number"`
	Items        []Item      `json:"items"`
	Total        float64     `json:"total"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ComputeTotal — сумма price*quantity по всем позициям.
func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, it := range o.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Clone — глубокая копия, чтобы изменения снаружи не попадали в кэш.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Items != nil {
		cp.Items = append([]Item(nil), o.Items...)
	}
	return &cp
}

// CloneOrders — копия списка заказов вместе с элементами.
func CloneOrders(orders []*Order) []*Order {
	if orders == nil {
		return nil
	}
	out := make([]*Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// Пути в удалённом хранилище документов и ключи кэша.
const (
	RootPath       = "restaurant-system"
	OrdersRootPath = RootPath + "/orders"
	ordersKeyPref  = "orders_"
)

func OrdersPath(restaurantID string) string {
	return OrdersRootPath + "/" + restaurantID
}

func OrderPath(restaurantID, orderID string) string {
	return OrdersPath(restaurantID) + "/" + orderID
}

func OrderStatusPath(restaurantID, orderID string) string {
	return OrderPath(restaurantID, orderID) + "/status"
}

// OrdersCacheKey — ключ списка заказов ресторана в кэше чтений.
func OrdersCacheKey(restaurantID string) string {
	return ordersKeyPref + restaurantID
}

// RestaurantFromOrdersPath — достаёт restaurantID из пути вида
// restaurant-system/orders/{rid}[/...]. ok=false для прочих путей.
func RestaurantFromOrdersPath(path string) (string, bool) {
	rest, found := strings.CutPrefix(path, OrdersRootPath+"/")
	if !found || rest == "" {
		return "", false
	}
	rid, _, _ := strings.Cut(rest, "/")
	return rid, rid != ""
}
