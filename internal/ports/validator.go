package ports

import (
	"context"

	"github.com/Gunvolt24/resto_sync/internal/domain"
)

// OrderValidator — доменная проверка заказа; нарушение оборачивает validate.ErrInvalidOrder.
type OrderValidator interface {
	Validate(ctx context.Context, order *domain.Order) error
}
