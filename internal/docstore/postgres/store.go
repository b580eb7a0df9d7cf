// Package postgres — хранилище документов поверх Postgres: каждый лист
// JSON-поддерева — строка таблицы documents(path, value jsonb).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/docstore"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ ports.DocumentStore = (*Store)(nil)

const DefaultPingInterval = 5 * time.Second

// Store — реализация DocumentStore на pgxpool.
type Store struct {
	pool     *pgxpool.Pool
	notifier docstore.Notifier
	log      ports.Logger
	interval time.Duration
	now      func() time.Time

	conn     chan bool
	mu       sync.Mutex
	lastPing *bool
}

type Option func(*Store)

func WithNotifier(n docstore.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

func New(pool *pgxpool.Pool, log ports.Logger, opts ...Option) *Store {
	s := &Store{
		pool:     pool,
		log:      log,
		interval: DefaultPingInterval,
		now:      time.Now,
		conn:     make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ReadOnce(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT path, value FROM documents
		WHERE path = $1 OR starts_with(path, $1 || '/')
	`, p)
	if err != nil {
		return nil, mapErr(err, "read "+p)
	}
	defer rows.Close()

	leaves := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, mapErr(err, "scan "+p)
		}
		leaves[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "read "+p)
	}

	raw, ok, err := docstore.Assemble(p, leaves)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Wrap(apperr.ErrNotFound, apperr.CodeNotFound, "document %s", p)
	}
	return raw, nil
}

func (s *Store) Write(ctx context.Context, path string, value json.RawMessage) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	leaves, err := docstore.Flatten(p, value)
	if err != nil {
		return err
	}

	if err := s.inTx(ctx, func(tx pgx.Tx) error {
		return replace(ctx, tx, p, leaves)
	}); err != nil {
		return mapErr(err, "write "+p)
	}

	s.notifier.Notify(ctx, s.change(p, value))
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}

	children := make(map[string]map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		child, err := docstore.CleanPath(docstore.Join(p, k))
		if err != nil {
			return err
		}
		leaves, err := docstore.Flatten(child, v)
		if err != nil {
			return err
		}
		children[child] = leaves
	}

	if err := s.inTx(ctx, func(tx pgx.Tx) error {
		for child, leaves := range children {
			if err := replace(ctx, tx, child, leaves); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return mapErr(err, "update "+p)
	}

	changes := make([]domain.Change, 0, len(fields))
	for k, v := range fields {
		changes = append(changes, s.change(docstore.Join(p, k), v))
	}
	s.notifier.Notify(ctx, changes...)
	return nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM documents WHERE path = $1 OR starts_with(path, $1 || '/')
	`, p); err != nil {
		return mapErr(err, "remove "+p)
	}

	s.notifier.Notify(ctx, domain.Change{Path: p, Op: domain.ChangeRemove, At: s.now()})
	return nil
}

func (s *Store) Subscribe(path string, fn func(domain.Change)) func() {
	return s.notifier.Subscribe(path, fn)
}

func (s *Store) Connectivity() <-chan bool { return s.conn }

// Run — периодический Ping; в Connectivity уходят только смены состояния.
func (s *Store) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.ping(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.ping(ctx)
		}
	}
}

// Probe — ping пула как health-check монитора; возвращает задержку.
func (s *Store) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return 0, apperr.Wrap(err, apperr.CodeNetwork, "ping document store")
	}
	return time.Since(start), nil
}

func (s *Store) ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, s.interval)
	err := s.pool.Ping(pingCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	up := err == nil

	s.mu.Lock()
	changed := s.lastPing == nil || *s.lastPing != up
	s.lastPing = &up
	s.mu.Unlock()
	if !changed {
		return
	}

	if !up {
		s.log.Warnf(ctx, "document store ping failed: %v", err)
	}
	select {
	case <-s.conn:
	default:
	}
	select {
	case s.conn <- up:
	default:
	}
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// После Commit Rollback вернёт ErrTxClosed — игнорируем.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warnf(ctx, "rollback: %v", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// replace — поддерево p заменяется листьями; листья-предки удаляются.
func replace(ctx context.Context, tx pgx.Tx, p string, leaves map[string]json.RawMessage) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM documents WHERE path = $1 OR starts_with(path, $1 || '/')
	`, p); err != nil {
		return err
	}
	if len(leaves) == 0 {
		return nil
	}
	if anc := docstore.Ancestors(p); len(anc) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE path = ANY($1)`, anc); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	for k, v := range leaves {
		batch.Queue(`
			INSERT INTO documents (path, value, updated_at) VALUES ($1, $2::jsonb, now())
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`, k, string(v))
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *Store) change(p string, value json.RawMessage) domain.Change {
	ch := domain.Change{Path: p, Op: domain.ChangeSet, Value: value, At: s.now()}
	if len(value) == 0 || string(value) == "null" {
		ch.Op = domain.ChangeRemove
		ch.Value = nil
	}
	return ch
}

// mapErr — ошибки pgx в коды apperr: права и кривые данные permanent,
// остальное (сеть, перегрузка, таймауты) — временный сбой.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return apperr.Wrap(err, apperr.CodeTimeout, "%s", what)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501":
			return apperr.Wrap(err, apperr.CodePermissionDenied, "%s", what)
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "22" || pgErr.Code[:2] == "23"):
			return apperr.Wrap(err, apperr.CodeInvalidArgument, "%s", what)
		}
	}
	return apperr.Wrap(err, apperr.CodeUnavailable, "%s", what)
}
