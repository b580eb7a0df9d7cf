package validate_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/validate"
)

func validOrder() *domain.Order {
	return &domain.Order{
		ID:           "o-1",
		RestaurantID: "r-1",
		TableNumber:  4,
		Status:       domain.StatusPending,
		CreatedAt:    time.Date(2025, 11, 26, 6, 22, 19, 0, time.UTC),

		Items: []domain.Item{
			{Name: "Shawarma", Price: 12.5, Quantity: 2},
			{Name: "Ayran", Price: 3, Quantity: 1},
		},
		Total: 28,
	}
}

func TestOrderValidator_Validate(t *testing.T) {
	v := validate.NewOrderValidator()
	ctx := context.Background()

	t.Run("valid order", func(t *testing.T) {
		o := validOrder()
		if err := v.Validate(ctx, o); err != nil {
			t.Fatalf("expected valid order, got: %v", err)
		}
	})

	type testCase struct {
		name   string
		mutate func(o *domain.Order) *domain.Order
		msg    string
	}

	cases := []testCase{
		{
			name:   "nil order",
			mutate: func(*domain.Order) *domain.Order { return nil },
			msg:    "заказ не может быть nil",
		},
		{
			name:   "empty id",
			mutate: func(o *domain.Order) *domain.Order { o.ID = ""; return o },
			msg:    "id обязателен",
		},
		{
			name:   "empty restaurant_id",
			mutate: func(o *domain.Order) *domain.Order { o.RestaurantID = ""; return o },
			msg:    "restaurant_id обязателен",
		},
		{
			name:   "negative table",
			mutate: func(o *domain.Order) *domain.Order { o.TableNumber = -1; return o },
			msg:    "table_number вне диапазона",
		},
		{
			name:   "unknown status",
			mutate: func(o *domain.Order) *domain.Order { o.Status = "lost"; return o },
			msg:    `status "lost" неизвестен`,
		},
		{
			name:   "zero created_at",
			mutate: func(o *domain.Order) *domain.Order { o.CreatedAt = time.Time{}; return o },
			msg:    "created_at некорректен",
		},
		{
			name:   "empty items",
			mutate: func(o *domain.Order) *domain.Order { o.Items = nil; return o },
			msg:    "items не должен быть пустым",
		},
		{
			name:   "empty item.name",
			mutate: func(o *domain.Order) *domain.Order { o.Items[1].Name = ""; return o },
			msg:    "items[1].name обязателен",
		},
		{
			name:   "negative item.price",
			mutate: func(o *domain.Order) *domain.Order { o.Items[0].Price = -1; return o },
			msg:    "items[0].price должен быть неотрицательным",
		},
		{
			name:   "zero quantity",
			mutate: func(o *domain.Order) *domain.Order { o.Items[0].Quantity = 0; return o },
			msg:    "items[0].quantity должен быть положительным",
		},
		{
			name:   "total mismatch",
			mutate: func(o *domain.Order) *domain.Order { o.Total = 30; return o },
			msg:    "не совпадает с суммой позиций",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(ctx, tc.mutate(validOrder()))
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, validate.ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
			if !apperr.IsPermanent(err) {
				t.Errorf("validation error must be permanent: %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("expected error message to contain %q, got %q", tc.msg, err.Error())
			}
		})
	}
}
