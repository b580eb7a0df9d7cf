package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

var (
	errTrailingData = errors.New("trailing data after order")
	errEmptyInput   = errors.New("empty input")
)

// DecodeOrder — строгий разбор одного заказа: неизвестные поля и данные после объекта отвергаются.
func DecodeOrder(raw []byte) (*domain.Order, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var order domain.Order
	if err := dec.Decode(&order); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidArgument, "invalid json")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperr.Wrap(errTrailingData, apperr.CodeInvalidArgument, "invalid json")
	}
	return &order, nil
}

// CheckOrder — DecodeOrder и доменная проверка.
func CheckOrder(ctx context.Context, validator ports.OrderValidator, raw []byte) (*domain.Order, error) {
	order, err := DecodeOrder(raw)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// splitBatch — элементы JSON-массива заказов; одиночный объект — пакет из одной записи.
func splitBatch(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errEmptyInput
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{trimmed}, nil
	}
	var batch []json.RawMessage
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return batch, nil
}
