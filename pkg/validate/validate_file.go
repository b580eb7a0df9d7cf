package validate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gunvolt24/resto_sync/internal/ports"
)

// InputFormat допустимые значения.
type InputFormat string

const (
	FormatAuto  InputFormat = "auto"
	FormatJSON  InputFormat = "json"
	FormatJSONL InputFormat = "jsonl"
)

// DetectFormat — формат по расширению; всё, кроме .jsonl/.ndjson, считаем JSON.
func DetectFormat(filePath string) InputFormat {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatJSON
	}
}

// ValidateFile — файл как JSON (объект или массив) или JSONL; валидные заказы пишутся в ow.
func ValidateFile(ctx context.Context, validator ports.OrderValidator, filePath string, format InputFormat, ow io.Writer, onInvalid InvalidFunc) (Summary, error) {
	if format == FormatAuto {
		format = DetectFormat(filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return Summary{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return ValidateReader(ctx, validator, file, format, ow, onInvalid)
}

// ValidateReader — то же для произвольного reader'а (stdin). FormatAuto здесь означает JSONL.
func ValidateReader(ctx context.Context, validator ports.OrderValidator, ir io.Reader, format InputFormat, ow io.Writer, onInvalid InvalidFunc) (Summary, error) {
	switch format {
	case FormatJSON:
		return validateBatch(ctx, validator, ir, ow, onInvalid)
	case FormatJSONL, FormatAuto:
		return ValidateJSONLStream(ctx, validator, ir, ow, onInvalid)
	default:
		return Summary{}, fmt.Errorf("unsupported format: %s", format)
	}
}
