package ports

import (
	"context"

	"github.com/Gunvolt24/resto_sync/internal/domain"
)

// OrderService — сценарии работы с заказами ресторана.
type OrderService interface {
	GetOrders(ctx context.Context, restaurantID string) ([]*domain.Order, error)
	// PlaceOrder — apperr.ErrQueued (вместе с заказом), если запись ушла в фоновую синхронизацию.
	PlaceOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, restaurantID, orderID string, status domain.OrderStatus) error
}
