package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/resto_sync/internal/kafka/mocks"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

var testReaderConfig = kafka.ReaderConfig{Topic: "resto.changes", GroupID: "g1", Brokers: []string{"b:9092"}}

func newTestConsumer(r reader, a changeApplier) *Consumer {
	return newConsumer(r, a, nopLogger{}, &ConsumerConfig{
		ProcessTimeout: 30 * time.Millisecond,
		RetryInitial:   2 * time.Millisecond,
		RetryMax:       5 * time.Millisecond,
	})
}

// blockUntilCancel — последний FetchMessage сценария: ждёт отмены Run.
func blockUntilCancel(r *mocks.Mockreader) {
	r.EXPECT().FetchMessage(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (kafka.Message, error) {
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		})
}

// runBriefly — Run на время сценария; ждёт корректного выхода по отмене.
func runBriefly(t *testing.T, c *Consumer, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	time.Sleep(d)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Run to stop")
	}
}

func TestRun_AppliedChangeIsCommitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	a := mocks.NewMockchangeApplier(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	msg := kafka.Message{Offset: 1, Value: []byte("ok")}
	gomock.InOrder(
		r.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		a.EXPECT().ApplyChange(gomock.Any(), []byte("ok")).Return(nil),
		r.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
	)
	blockUntilCancel(r)

	runBriefly(t, newTestConsumer(r, a), 20*time.Millisecond)
}

// Битое изменение не повторяется: коммитим, чтобы не застрять.
func TestRun_PermanentFailureIsSkippedAndCommitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	a := mocks.NewMockchangeApplier(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 7, Value: []byte("bad")}, nil)
	a.EXPECT().ApplyChange(gomock.Any(), []byte("bad")).
		Return(apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "decode change")).
		Times(1)
	r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil)
	blockUntilCancel(r)

	runBriefly(t, newTestConsumer(r, a), 20*time.Millisecond)
}

// Временная ошибка повторяет то же сообщение; коммит только после успеха.
func TestRun_TransientFailureRetriesSameMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	a := mocks.NewMockchangeApplier(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	msg := kafka.Message{Offset: 2, Value: []byte("x")}
	gomock.InOrder(
		r.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		a.EXPECT().ApplyChange(gomock.Any(), []byte("x")).Return(apperr.ErrUnavailable),
		a.EXPECT().ApplyChange(gomock.Any(), []byte("x")).Return(apperr.ErrTimeout),
		a.EXPECT().ApplyChange(gomock.Any(), []byte("x")).Return(nil),
		r.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
	)
	blockUntilCancel(r)

	runBriefly(t, newTestConsumer(r, a), 50*time.Millisecond)
}

// Отмена посреди повторов: оффсет не коммитится, Run выходит.
func TestRun_CancelDuringRetriesDoesNotCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	a := mocks.NewMockchangeApplier(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 3, Value: []byte("x")}, nil)
	a.EXPECT().ApplyChange(gomock.Any(), gomock.Any()).Return(apperr.ErrNetwork).MinTimes(1)
	// CommitMessages не ожидается: лишний вызов уронит тест как unexpected call

	runBriefly(t, newTestConsumer(r, a), 20*time.Millisecond)
}

func TestRun_FetchErrorsBackOffUntilCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	a := mocks.NewMockchangeApplier(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker error")).MinTimes(2)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, newTestConsumer(r, a).Run(ctx), context.DeadlineExceeded)
}

// Ошибка коммита — только предупреждение; чтение продолжается.
func TestRun_CommitErrorKeepsConsuming(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	a := mocks.NewMockchangeApplier(ctrl)

	r.EXPECT().Config().Return(testReaderConfig).AnyTimes()
	r.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{Offset: 4, Value: []byte("ok")}, nil)
	a.EXPECT().ApplyChange(gomock.Any(), []byte("ok")).Return(nil)
	r.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(errors.New("rebalance in progress"))
	blockUntilCancel(r)

	runBriefly(t, newTestConsumer(r, a), 20*time.Millisecond)
}

func TestClose_Once(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := mocks.NewMockreader(ctrl)
	r.EXPECT().Close().Return(nil).Times(1)

	c := newTestConsumer(r, mocks.NewMockchangeApplier(ctrl))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

// Заголовок change-id попадает в контекст получателя как request id.
func TestApply_PropagatesChangeID(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockchangeApplier(ctrl)
	a.EXPECT().ApplyChange(gomock.Any(), []byte("{}")).
		DoAndReturn(func(ctx context.Context, _ []byte) error {
			id, ok := ctxmeta.RequestIDFromContext(ctx)
			require.True(t, ok)
			require.Equal(t, "chg-1", id)
			return nil
		})

	c := newTestConsumer(mocks.NewMockreader(ctrl), a)
	msg := kafka.Message{Value: []byte("{}"), Headers: []kafka.Header{{Key: headerChangeID, Value: []byte("chg-1")}}}
	require.NoError(t, c.apply(context.Background(), "resto.changes", &msg))
}
