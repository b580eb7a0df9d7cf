package optimistic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/cache/memory"
	"github.com/Gunvolt24/resto_sync/internal/optimistic"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

func newCache() *memory.TTLCache[string] {
	return memory.NewTTLCache[string]("optimistic-test", 10, time.Minute)
}

func TestUpdate_SuccessKeepsSpeculative(t *testing.T) {
	c := newCache()
	c.Set("K", "A")
	u := optimistic.NewUpdater[string](c, nopLogger{})

	res, err := u.Update(context.Background(), "K", "B", func(context.Context) (any, error) {
		v, _ := c.Get("K")
		require.Equal(t, "B", v, "speculative value must be visible during the write")
		return "written", nil
	})

	require.NoError(t, err)
	require.Equal(t, "written", res)
	v, _ := c.Get("K")
	require.Equal(t, "B", v)
	require.False(t, u.Pending("K"))
}

func TestUpdate_FailureRestoresPrevious(t *testing.T) {
	c := newCache()
	c.Set("K", "A")
	u := optimistic.NewUpdater[string](c, nopLogger{})

	_, err := u.Update(context.Background(), "K", "B", func(context.Context) (any, error) {
		return nil, apperr.ErrNetwork
	})

	require.ErrorIs(t, err, apperr.ErrNetwork)
	v, ok := c.Get("K")
	require.True(t, ok)
	require.Equal(t, "A", v)
	require.False(t, u.Pending("K"))
}

func TestUpdate_FailureDeletesAbsentKey(t *testing.T) {
	c := newCache()
	u := optimistic.NewUpdater[string](c, nopLogger{})

	_, err := u.Update(context.Background(), "K", "B", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})

	require.Error(t, err)
	_, ok := c.Get("K")
	require.False(t, ok)
}

func TestUpdate_PendingDuringWrite(t *testing.T) {
	c := newCache()
	u := optimistic.NewUpdater[string](c, nopLogger{})

	_, err := u.Update(context.Background(), "K", "B", func(context.Context) (any, error) {
		require.True(t, u.Pending("K"))
		return nil, nil
	})
	require.NoError(t, err)
}

func TestUpdate_PerKeySerialization(t *testing.T) {
	c := newCache()
	c.Set("K", "A")
	u := optimistic.NewUpdater(c, nopLogger{}, optimistic.WithPerKeySerialization[string]())

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = u.Update(context.Background(), "K", "B", func(context.Context) (any, error) {
			close(firstStarted)
			<-releaseFirst
			return nil, errors.New("first fails")
		})
	}()
	<-firstStarted
	go func() {
		defer wg.Done()
		_, _ = u.Update(context.Background(), "K", "C", func(context.Context) (any, error) { return nil, nil })
	}()

	time.Sleep(10 * time.Millisecond)
	close(releaseFirst)
	wg.Wait()

	// второе обновление стартует после отката первого и остаётся в кэше
	v, _ := c.Get("K")
	require.Equal(t, "C", v)
}
