package ports

import "context"

// Logger — логгер слоёв приложения. Метаданные запроса (request id, операция,
// ресторан, трасса) реализация достаёт из ctx сама, в формат их не передают.
type Logger interface {
	Infof(ctx context.Context, format string, args ...any)
	Warnf(ctx context.Context, format string, args ...any)
	Errorf(ctx context.Context, format string, args ...any)
}
