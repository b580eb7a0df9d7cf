package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/docstore"
	"github.com/Gunvolt24/resto_sync/internal/docstore/memory"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports/mocks"
	"github.com/Gunvolt24/resto_sync/internal/realtime"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

func TestStore_WriteReadUpdateRemove(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	path := domain.OrderPath("r1", "o1")

	_, err := s.ReadOnce(ctx, path)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.Write(ctx, path, json.RawMessage(`{"status":"pending","table_number":3}`)))
	require.NoError(t, s.Update(ctx, path, map[string]json.RawMessage{"status": json.RawMessage(`"ready"`)}))

	got, err := s.ReadOnce(ctx, domain.OrdersPath("r1"))
	require.NoError(t, err)
	require.JSONEq(t, `{"o1":{"status":"ready","table_number":3}}`, string(got))

	// запись по пути заменяет поддерево целиком
	require.NoError(t, s.Write(ctx, path, json.RawMessage(`{"status":"paid"}`)))
	got, err = s.ReadOnce(ctx, path)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"paid"}`, string(got))

	require.NoError(t, s.Remove(ctx, path))
	_, err = s.ReadOnce(ctx, path)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_ScalarReplacedByObject(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "a/b", json.RawMessage(`5`)))
	require.NoError(t, s.Write(ctx, "a/b/c", json.RawMessage(`1`)))

	got, err := s.ReadOnce(ctx, "a")
	require.NoError(t, err)
	require.JSONEq(t, `{"b":{"c":1}}`, string(got))
}

func TestStore_OfflineAndInjectedFailures(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	s.SetOnline(false)
	require.False(t, <-s.Connectivity())
	err := s.Write(ctx, "a", json.RawMessage(`1`))
	require.ErrorIs(t, err, apperr.ErrOffline)
	require.True(t, apperr.IsRetryable(err))

	s.SetOnline(true)
	require.True(t, <-s.Connectivity())

	boom := errors.New("boom")
	s.FailNext(boom, apperr.ErrPermissionDenied)
	require.ErrorIs(t, s.Write(ctx, "a", json.RawMessage(`1`)), boom)
	require.ErrorIs(t, s.Write(ctx, "a", json.RawMessage(`1`)), apperr.ErrPermissionDenied)
	require.NoError(t, s.Write(ctx, "a", json.RawMessage(`1`)))
}

func TestStore_LatencyHonoursContext(t *testing.T) {
	s := memory.New(memory.WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.ReadOnce(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_NotifiesHubSubscribers(t *testing.T) {
	hub := realtime.NewHub(nopLogger{})
	s := memory.New(memory.WithNotifier(docstore.Notifier{Hub: hub}))
	ctx := context.Background()

	var got []domain.Change
	unsub := s.Subscribe(domain.OrdersPath("r1"), func(c domain.Change) { got = append(got, c) })
	defer unsub()

	require.NoError(t, s.Write(ctx, domain.OrderPath("r1", "o1"), json.RawMessage(`{"status":"pending"}`)))
	require.NoError(t, s.Remove(ctx, domain.OrderPath("r1", "o1")))
	require.NoError(t, s.Write(ctx, domain.OrderPath("r2", "o1"), json.RawMessage(`{"status":"pending"}`)))

	require.Len(t, got, 2)
	require.Equal(t, domain.ChangeSet, got[0].Op)
	require.Equal(t, domain.ChangeRemove, got[1].Op)
}

func TestStore_PublisherTakesOverDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockChangePublisher(ctrl)
	hub := realtime.NewHub(nopLogger{})
	s := memory.New(memory.WithNotifier(docstore.Notifier{Hub: hub, Publisher: pub, Log: nopLogger{}}))

	local := 0
	s.Subscribe("a", func(domain.Change) { local++ })

	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c domain.Change) error {
		require.Equal(t, "a/b", c.Path)
		return errors.New("broker down")
	})

	require.NoError(t, s.Write(context.Background(), "a/b", json.RawMessage(`true`)), "publish errors are logged only")
	require.Zero(t, local)
}
