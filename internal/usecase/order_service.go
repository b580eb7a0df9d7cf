package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/cache/memory"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/optimistic"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/internal/queue"
	"github.com/Gunvolt24/resto_sync/internal/retry"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var _ ports.OrderService = (*OrderService)(nil)

// OrdersCache — кэш списков заказов по ресторану (ключ domain.OrdersCacheKey).
type OrdersCache = memory.TTLCache[[]*domain.Order]

// Deps — зависимости OrderService.
type Deps struct {
	Store     ports.DocumentStore
	Cache     *OrdersCache
	Executor  *retry.Executor
	Queue     *queue.OperationQueue
	Syncer    ports.SyncManager
	Monitor   ports.ConnectionMonitor
	Validator ports.OrderValidator
	Log       ports.Logger
}

// OrderService — сценарии работы с заказами поверх удалённого хранилища документов
// (без знаний о транспорте). Чтения идут через кэш, записи через очередь и retry,
// неудавшиеся временно записи уходят в фоновую синхронизацию.
type OrderService struct {
	store     ports.DocumentStore
	cache     *OrdersCache
	updater   *optimistic.Updater[[]*domain.Order]
	exec      *retry.Executor
	queue     *queue.OperationQueue
	syncer    ports.SyncManager
	monitor   ports.ConnectionMonitor
	validator ports.OrderValidator
	log       ports.Logger

	reads singleflight.Group
	now   func() time.Time
}

type Option func(*OrderService)

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

// NewOrderService — DI-конструктор.
func NewOrderService(d Deps, opts ...Option) *OrderService {
	s := &OrderService{
		store:     d.Store,
		cache:     d.Cache,
		updater:   optimistic.NewUpdater[[]*domain.Order](d.Cache, d.Log, optimistic.WithPerKeySerialization[[]*domain.Order]()),
		exec:      d.Executor,
		queue:     d.Queue,
		syncer:    d.Syncer,
		monitor:   d.Monitor,
		validator: d.Validator,
		log:       d.Log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrders — заказы ресторана: из кэша, при промахе из хранилища с записью в кэш.
// Одновременные промахи по одному ресторану делят одно чтение.
func (s *OrderService) GetOrders(ctx context.Context, restaurantID string) ([]*domain.Order, error) {
	if restaurantID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "restaurant id is required")
	}
	ctx = ctxmeta.WithRestaurantID(ctx, restaurantID)
	key := domain.OrdersCacheKey(restaurantID)
	if orders, found := s.cache.Get(key); found {
		return orders, nil
	}
	if !s.monitor.State().Online {
		return nil, apperr.Wrap(apperr.ErrOffline, apperr.CodeOffline, "orders of %s are not cached", restaurantID)
	}

	v, err, shared := s.reads.Do(key, func() (any, error) {
		start := time.Now()
		orders, err := retry.Execute(ctx, s.exec, func(ctx context.Context) ([]*domain.Order, error) {
			return s.readOrders(ctx, restaurantID)
		})
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, orders)
		s.log.Infof(ctx, "orders of %s fetched: n=%d took=%s", restaurantID, len(orders), time.Since(start))
		return orders, nil
	})
	if err != nil {
		s.log.Errorf(ctx, "get orders restaurant=%s err=%v", restaurantID, err)
		return nil, err
	}
	orders := v.([]*domain.Order)
	if shared {
		orders = domain.CloneOrders(orders)
	}
	return orders, nil
}

// PlaceOrder — валидация, оптимистичная вставка в закэшированный список и запись.
// Офлайн или при временной ошибке заказ уходит в фоновую синхронизацию:
// возвращается заказ вместе с apperr.ErrQueued.
func (s *OrderService) PlaceOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "order is required")
	}
	o := s.prepare(order)
	ctx = ctxmeta.WithRestaurantID(ctx, o.RestaurantID)
	if err := s.validator.Validate(ctx, o); err != nil {
		s.log.Warnf(ctx, "validation failed order=%s err=%v", o.ID, err)
		return nil, err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	key := domain.OrdersCacheKey(o.RestaurantID)
	if !s.monitor.State().Online {
		s.showQueued(key, o)
		return s.enqueueOrder(ctx, o, apperr.ErrOffline)
	}

	write := func(ctx context.Context) (any, error) {
		return nil, s.write(ctx, domain.OrderPath(o.RestaurantID, o.ID), data)
	}
	if list, cached := s.cache.Get(key); cached {
		_, err = s.updater.Update(ctx, key, upsert(list, o), write)
	} else {
		_, err = write(ctx)
	}

	switch {
	case err == nil:
		s.log.Infof(ctx, "order placed id=%s restaurant=%s items=%d", o.ID, o.RestaurantID, len(o.Items))
		return o, nil
	case apperr.IsRetryable(err):
		s.showQueued(key, o)
		return s.enqueueOrder(ctx, o, err)
	default:
		s.log.Errorf(ctx, "place order id=%s err=%v", o.ID, err)
		return nil, err
	}
}

// UpdateOrderStatus — запись статуса с повторами и сброс кэша ресторана.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, restaurantID, orderID string, status domain.OrderStatus) error {
	if restaurantID == "" || orderID == "" {
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "restaurant and order ids are required")
	}
	if !status.Valid() {
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "unknown status %q", status)
	}
	ctx = ctxmeta.WithRestaurantID(ctx, restaurantID)

	var err error
	if s.monitor.State().Online {
		data, _ := json.Marshal(status)
		err = s.write(ctx, domain.OrderStatusPath(restaurantID, orderID), data)
		if err == nil {
			s.cache.Delete(domain.OrdersCacheKey(restaurantID))
			s.log.Infof(ctx, "order %s/%s status=%s", restaurantID, orderID, status)
			return nil
		}
		if apperr.IsPermanent(err) {
			s.log.Errorf(ctx, "update status %s/%s err=%v", restaurantID, orderID, err)
			return err
		}
	} else {
		err = apperr.ErrOffline
	}

	payload, perr := domain.NewStatusOperation(restaurantID, orderID, status)
	if perr != nil {
		return perr
	}
	op, qerr := s.syncer.AddOperation(ctx, domain.OpStatus, payload)
	if qerr != nil {
		return fmt.Errorf("queue status update: %w (after %w)", qerr, err)
	}
	s.cache.Delete(domain.OrdersCacheKey(restaurantID))
	s.log.Warnf(ctx, "status of %s/%s queued as %s: %v", restaurantID, orderID, op.ID, err)
	return apperr.Wrap(err, apperr.CodeQueued, "status update queued as %s", op.ID)
}

// ReplayOrder — воспроизведение отложенного заказа фоновой синхронизацией.
func (s *OrderService) ReplayOrder(ctx context.Context, op domain.PendingOperation) error {
	var (
		rid, oid string
		data     json.RawMessage
	)
	if err := errors.Join(
		op.Field(domain.FieldRestaurantID, &rid),
		op.Field(domain.FieldOrderID, &oid),
		op.Field(domain.FieldData, &data),
	); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidArgument, "replay order")
	}
	if err := s.store.Write(ctx, domain.OrderPath(rid, oid), data); err != nil {
		return err
	}
	s.cache.Delete(domain.OrdersCacheKey(rid))
	return nil
}

// ReplayStatus — воспроизведение отложенной смены статуса.
func (s *OrderService) ReplayStatus(ctx context.Context, op domain.PendingOperation) error {
	var (
		rid, oid string
		data     json.RawMessage
	)
	if err := errors.Join(
		op.Field(domain.FieldRestaurantID, &rid),
		op.Field(domain.FieldOrderID, &oid),
		op.Field(domain.FieldData, &data),
	); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidArgument, "replay status")
	}
	if err := s.store.Write(ctx, domain.OrderStatusPath(rid, oid), data); err != nil {
		return err
	}
	s.cache.Delete(domain.OrdersCacheKey(rid))
	return nil
}

// write — запись через очередь операций с повторами.
func (s *OrderService) write(ctx context.Context, path string, data json.RawMessage) error {
	_, err := queue.Do(ctx, s.queue, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.exec.Do(ctx, func(ctx context.Context) error {
			return s.store.Write(ctx, path, data)
		})
	})
	return err
}

func (s *OrderService) enqueueOrder(ctx context.Context, o *domain.Order, cause error) (*domain.Order, error) {
	payload, err := domain.NewOrderOperation(o)
	if err != nil {
		return nil, err
	}
	op, err := s.syncer.AddOperation(ctx, domain.OpOrder, payload)
	if err != nil {
		s.log.Errorf(ctx, "queue order id=%s err=%v", o.ID, err)
		return nil, fmt.Errorf("queue order: %w (after %w)", err, cause)
	}
	s.log.Warnf(ctx, "order %s queued for background sync as %s: %v", o.ID, op.ID, cause)
	return o, apperr.Wrap(cause, apperr.CodeQueued, "order %s queued as %s", o.ID, op.ID)
}

// showQueued — отложенный заказ виден в закэшированном списке до синхронизации.
func (s *OrderService) showQueued(key string, o *domain.Order) {
	if list, cached := s.cache.Get(key); cached {
		s.cache.Set(key, upsert(list, o))
	}
}

// prepare — копия заказа с заполненными id, статусом, временем и суммой.
func (s *OrderService) prepare(order *domain.Order) *domain.Order {
	o := order.Clone()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	if o.Total == 0 {
		o.Total = o.ComputeTotal()
	}
	return o
}

// readOrders — поддерево заказов ресторана; отсутствие документа — пустой список.
func (s *OrderService) readOrders(ctx context.Context, restaurantID string) ([]*domain.Order, error) {
	raw, err := s.store.ReadOnce(ctx, domain.OrdersPath(restaurantID))
	if errors.Is(err, apperr.ErrNotFound) {
		return []*domain.Order{}, nil
	}
	if err != nil {
		return nil, err
	}

	var byID map[string]*domain.Order
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidArgument, "decode orders of %s", restaurantID)
	}
	orders := make([]*domain.Order, 0, len(byID))
	for id, o := range byID {
		if o == nil {
			continue
		}
		if o.ID == "" {
			o.ID = id
		}
		if o.RestaurantID == "" {
			o.RestaurantID = restaurantID
		}
		orders = append(orders, o)
	}
	sortOrders(orders)
	return orders, nil
}

// upsert — новый список с заменой заказа по id (или добавлением в конец).
func upsert(list []*domain.Order, o *domain.Order) []*domain.Order {
	out := make([]*domain.Order, 0, len(list)+1)
	replaced := false
	for _, cur := range list {
		if cur.ID == o.ID {
			out = append(out, o.Clone())
			replaced = true
			continue
		}
		out = append(out, cur)
	}
	if !replaced {
		out = append(out, o.Clone())
	}
	sortOrders(out)
	return out
}

func sortOrders(orders []*domain.Order) {
	slices.SortStableFunc(orders, func(a, b *domain.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
