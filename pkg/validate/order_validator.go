package validate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

// Проверка, что OrderValidator удовлетворяет интерфейсу OrderValidator.
var _ ports.OrderValidator = (*OrderValidator)(nil)

// ErrInvalidOrder — базовая ошибка валидации; повтор такой операции бессмысленен.
var ErrInvalidOrder = fmt.Errorf("order validation failed: %w", apperr.ErrInvalidArgument)

const (
	maxItems      = 200
	totalEpsilon  = 0.005
	maxTableIndex = 10_000
)

var minCreatedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// OrderValidator — валидатор заказа ресторана.
type OrderValidator struct{}

// NewOrderValidator — конструктор OrderValidator.
// Validate возвращает ErrInvalidOrder (с обёрнутой причиной) при любой проблеме.
func NewOrderValidator() *OrderValidator { return &OrderValidator{} }

// Validate — проверяет корректность полей заказа.
func (v *OrderValidator) Validate(_ context.Context, order *domain.Order) error {
	if err := v.validateCore(order); err != nil {
		return err
	}
	if err := v.validateItems(order.Items); err != nil {
		return err
	}
	return v.validateTotal(order)
}

// validateCore — основные поля заказа.
func (v *OrderValidator) validateCore(order *domain.Order) error {
	if order == nil {
		return fmt.Errorf("%w: заказ не может быть nil", ErrInvalidOrder)
	}
	if order.ID == "" {
		return fmt.Errorf("%w: id обязателен", ErrInvalidOrder)
	}
	if order.RestaurantID == "" {
		return fmt.Errorf("%w: restaurant_id обязателен", ErrInvalidOrder)
	}
	if order.TableNumber < 0 || order.TableNumber > maxTableIndex {
		return fmt.Errorf("%w: table_number вне диапазона", ErrInvalidOrder)
	}
	if !order.Status.Valid() {
		return fmt.Errorf("%w: status %q неизвестен", ErrInvalidOrder, order.Status)
	}
	if order.CreatedAt.IsZero() || order.CreatedAt.Before(minCreatedAt) {
		return fmt.Errorf("%w: created_at некорректен", ErrInvalidOrder)
	}
	return nil
}

// Валидация позиций
func (v *OrderValidator) validateItems(items []domain.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: items не должен быть пустым", ErrInvalidOrder)
	}
	if len(items) > maxItems {
		return fmt.Errorf("%w: слишком много позиций (%d)", ErrInvalidOrder, len(items))
	}

	for i := range items {
		item := &items[i]
		idx := strconv.Itoa(i)

		if item.Name == "" {
			return fmt.Errorf("%w: items[%s].name обязателен", ErrInvalidOrder, idx)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: items[%s].price должен быть неотрицательным", ErrInvalidOrder, idx)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: items[%s].quantity должен быть положительным", ErrInvalidOrder, idx)
		}
	}
	return nil
}

// Сумма заказа должна сходиться с позициями
func (v *OrderValidator) validateTotal(order *domain.Order) error {
	if order.Total < 0 {
		return fmt.Errorf("%w: total должен быть неотрицательным", ErrInvalidOrder)
	}
	if want := order.ComputeTotal(); math.Abs(want-order.Total) > totalEpsilon {
		return fmt.Errorf("%w: total %.2f не совпадает с суммой позиций %.2f", ErrInvalidOrder, order.Total, want)
	}
	return nil
}
