package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Gunvolt24/resto_sync/internal/ports"
)

// Summary — итог проверки файла или потока.
type Summary struct {
	Valid   int
	Invalid int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d valid / %d invalid", s.Valid, s.Invalid)
}

// InvalidFunc — вызывается на каждую отбракованную запись; n — строка JSONL
// или позиция в JSON-массиве, с 1.
type InvalidFunc func(n int, err error)

// check — одна запись: валидную пишет в ow каноническим JSON в строку,
// невалидную считает и отдаёт onInvalid. Ошибка только при сбое записи.
func (s *Summary) check(ctx context.Context, validator ports.OrderValidator, raw []byte, n int, ow io.Writer, onInvalid InvalidFunc) error {
	order, err := CheckOrder(ctx, validator, raw)
	if err != nil {
		s.Invalid++
		if onInvalid != nil {
			onInvalid(n, err)
		}
		return nil
	}

	canonical, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", n, err)
	}
	if _, err := ow.Write(append(canonical, '\n')); err != nil {
		return fmt.Errorf("write record %d: %w", n, err)
	}
	s.Valid++
	return nil
}
