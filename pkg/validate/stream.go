package validate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Gunvolt24/resto_sync/internal/ports"
)

const maxLineBytes = 10 << 20

// ValidateJSONLStream — построчная проверка JSONL; пустые строки пропускаются.
func ValidateJSONLStream(ctx context.Context, validator ports.OrderValidator, ir io.Reader, ow io.Writer, onInvalid InvalidFunc) (Summary, error) {
	var res Summary

	scanner := bufio.NewScanner(ir)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if err := res.check(ctx, validator, raw, line, ow, onInvalid); err != nil {
			return res, err
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan: %w", err)
	}
	return res, nil
}

// validateBatch — JSON-документ: один заказ или массив заказов.
func validateBatch(ctx context.Context, validator ports.OrderValidator, ir io.Reader, ow io.Writer, onInvalid InvalidFunc) (Summary, error) {
	raw, err := io.ReadAll(ir)
	if err != nil {
		return Summary{}, fmt.Errorf("read input: %w", err)
	}
	batch, err := splitBatch(raw)
	if err != nil {
		return Summary{}, err
	}

	var res Summary
	for i, rec := range batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := res.check(ctx, validator, rec, i+1, ow, onInvalid); err != nil {
			return res, err
		}
	}
	return res, nil
}
