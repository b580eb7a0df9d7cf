package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Run — запускает серверы, консьюмера и фоновые циклы; ждёт отмены контекста
// или первой ошибки и останавливает всё.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4+len(a.Background))
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// Очередь с прошлого запуска разбирается сразу, если связь есть.
	if a.Syncer != nil {
		a.Syncer.Start(runCtx)
	}

	if a.KafkaConsumer != nil {
		spawn(func() {
			a.Logger.Infof(ctx, "kafka consumer starting")
			if err := a.KafkaConsumer.Run(runCtx); err != nil {
				errCh <- err
			}
		})
	}

	for _, c := range a.Background {
		spawn(func() {
			if err := c.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Warnf(ctx, "%s stopped: %v", c.Name, err)
				errCh <- err
			}
		})
	}

	servers := a.servers()
	for name, srv := range servers {
		spawn(func() {
			a.Logger.Infof(ctx, "%s server starting (addr=%s)", name, srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		})
	}

	// Ожидание сигнала остановки или фоновой ошибки.
	select {
	case <-ctx.Done():
		a.Logger.Infof(ctx, "shutdown requested, starting graceful shutdown")
	case err := <-errCh:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.Logger.Infof(ctx, "background component stopped: %v", err)
		} else {
			a.Logger.Warnf(ctx, "background error: %v", err)
		}
	}
	cancel()

	gt := a.gracefulTimeout
	if gt <= 0 {
		gt = 5 * time.Second
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), gt)
	defer stop()

	for name, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warnf(ctx, "%s server shutdown failed: %v", name, err)
		} else {
			a.Logger.Infof(ctx, "%s server stopped gracefully", name)
		}
	}

	if a.Syncer != nil {
		a.Syncer.Stop()
	}
	if a.KafkaConsumer != nil {
		if err := a.KafkaConsumer.Close(); err != nil {
			a.Logger.Warnf(ctx, "kafka consumer close error: %v", err)
		}
	}

	wg.Wait()
	a.Logger.Infof(ctx, "service stopped")
	return nil
}

func (a *App) servers() map[string]*http.Server {
	out := make(map[string]*http.Server, 3)
	if a.HTTPServer != nil {
		out["http"] = a.HTTPServer
	}
	if a.WorkerServer != nil {
		out["worker"] = a.WorkerServer
	}
	if a.MetricsServer != nil {
		out["metrics"] = a.MetricsServer
	}
	return out
}
