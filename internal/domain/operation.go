package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationType — тип отложенной записи для фоновой синхронизации.
type OperationType string

const (
	OpOrder  OperationType = "order"
	OpStatus OperationType = "status"
	OpUpdate OperationType = "update"
)

// Служебные поля плоского JSON-представления операции.
const (
	fieldID        = "id"
	fieldType      = "type"
	fieldTimestamp = "timestamp"
)

// Поля полезной нагрузки известных типов.
const (
	FieldRestaurantID = "restaurantId"
	FieldOrderID      = "orderId"
	FieldData         = "data"
	FieldURL          = "url"
)

// PendingOperation — запись, которую не удалось отправить сразу.
// В JSON хранится плоско: {"id","type","timestamp", ...поля payload}.
type PendingOperation struct {
	ID         string
	Type       OperationType
	EnqueuedAt time.Time
	Payload    map[string]json.RawMessage
}

// NewOrderOperation — payload для повторного сохранения заказа.
func NewOrderOperation(order *Order) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	rid, _ := json.Marshal(order.RestaurantID)
	oid, _ := json.Marshal(order.ID)
	return map[string]json.RawMessage{
		FieldRestaurantID: rid,
		FieldOrderID:      oid,
		FieldData:         data,
	}, nil
}

// NewStatusOperation — payload для повторной смены статуса заказа.
func NewStatusOperation(restaurantID, orderID string, status OrderStatus) (map[string]json.RawMessage, error) {
	rid, _ := json.Marshal(restaurantID)
	oid, _ := json.Marshal(orderID)
	data, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return map[string]json.RawMessage{
		FieldRestaurantID: rid,
		FieldOrderID:      oid,
		FieldData:         data,
	}, nil
}

// NewUpdateOperation — payload для generic POST на url.
func NewUpdateOperation(url string, data any) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal update data: %w", err)
	}
	u, _ := json.Marshal(url)
	return map[string]json.RawMessage{
		FieldURL:  u,
		FieldData: body,
	}, nil
}

// Field — декодирует поле payload в dst. Ошибка, если поля нет.
func (op PendingOperation) Field(name string, dst any) error {
	raw, ok := op.Payload[name]
	if !ok {
		return fmt.Errorf("operation %s: missing field %q", op.ID, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("operation %s: decode field %q: %w", op.ID, name, err)
	}
	return nil
}

func (op PendingOperation) MarshalJSON() ([]byte, error) {
	flat := make(map[string]json.RawMessage, len(op.Payload)+3)
	for k, v := range op.Payload {
		flat[k] = v
	}
	id, err := json.Marshal(op.ID)
	if err != nil {
		return nil, err
	}
	typ, err := json.Marshal(op.Type)
	if err != nil {
		return nil, err
	}
	ts, err := json.Marshal(op.EnqueuedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	flat[fieldID] = id
	flat[fieldType] = typ
	flat[fieldTimestamp] = ts
	return json.Marshal(flat)
}

func (op *PendingOperation) UnmarshalJSON(b []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	var out PendingOperation
	if raw, ok := flat[fieldID]; ok {
		if err := json.Unmarshal(raw, &out.ID); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
	}
	if raw, ok := flat[fieldType]; ok {
		if err := json.Unmarshal(raw, &out.Type); err != nil {
			return fmt.Errorf("decode type: %w", err)
		}
	}
	if raw, ok := flat[fieldTimestamp]; ok {
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		out.EnqueuedAt = time.UnixMilli(ms)
	}
	delete(flat, fieldID)
	delete(flat, fieldType)
	delete(flat, fieldTimestamp)
	if len(flat) > 0 {
		out.Payload = flat
	}
	*op = out
	return nil
}
