package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-presence-api/pkg/database"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// QueryObserver receives one call per statement issued by the repositories.
type QueryObserver interface {
	ObserveQuery(model, operation string, duration time.Duration, rows int, err error)
}

// ResultCache stores serialized read results.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Options wires the ambient collaborators of the repositories. Every field is
// optional.
type Options struct {
	Logger       *zap.Logger
	Observer     QueryObserver
	Cache        ResultCache
	// CacheTTL applies to cache strategies that carry no TTL of their own.
	CacheTTL     time.Duration
	// QueryTimeout bounds each statement run outside a transaction.
	QueryTimeout time.Duration
	Now          func() time.Time
}

// engine executes compiled statements for any model against the pool or,
// once bound, a transaction.
type engine struct {
	db       *database.Client
	tx       *sqlx.Tx
	logger   *zap.Logger
	observer QueryObserver
	cache    ResultCache
	cacheTTL time.Duration
	timeout  time.Duration
	now      func() time.Time
	// pending collects the models written by the bound transaction; their
	// cached reads are dropped once it commits.
	pending *pendingInvalidations
}

type pendingInvalidations struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func (p *pendingInvalidations) add(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[name] = struct{}{}
}

func (p *pendingInvalidations) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.names))
	for name := range p.names {
		names = append(names, name)
	}
	p.names = map[string]struct{}{}
	sort.Strings(names)
	return names
}

func newEngine(db *database.Client, opts Options) *engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &engine{
		db:       db,
		logger:   logger,
		observer: opts.Observer,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		timeout:  opts.QueryTimeout,
		now:      now,
	}
}

func (e *engine) withTx(tx *sqlx.Tx) *engine {
	clone := *e
	clone.tx = tx
	clone.pending = &pendingInvalidations{names: map[string]struct{}{}}
	return &clone
}

// querier returns the bound transaction or the current pool.
func (e *engine) querier() (database.Querier, error) {
	if e.tx != nil {
		return e.tx, nil
	}
	db := e.db.DB()
	if db == nil {
		return nil, appErrors.Clone(appErrors.ErrConnection, "database client is not connected")
	}
	return db, nil
}

// bound applies the statement timeout. Transactions carry their own.
func (e *engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.tx != nil || e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// atomically runs fn in a transaction with the client defaults, reusing the
// current one when the engine is already bound to a transaction.
func (e *engine) atomically(ctx context.Context, fn func(*engine) error) error {
	return e.transaction(ctx, fn)
}

// transaction binds fn to a new transaction, or to the current one. Cache
// invalidations recorded inside a new transaction are applied after commit
// and discarded on rollback.
func (e *engine) transaction(ctx context.Context, fn func(*engine) error, opts ...database.TxOptions) error {
	if e.tx != nil {
		return fn(e)
	}
	var bound *engine
	err := e.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		bound = e.withTx(tx)
		return fn(bound)
	}, opts...)
	if err != nil || bound == nil {
		return err
	}
	for _, name := range bound.pending.drain() {
		e.invalidateName(ctx, name)
	}
	return nil
}

func (e *engine) observe(model, op string, start time.Time, rows int, err error) {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("model", model),
		zap.String("operation", op),
		zap.Duration("duration", elapsed),
		zap.Int("rows", rows),
	}
	if err != nil {
		e.logger.Debug("query failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Debug("query executed", fields...)
	}
	if e.observer != nil {
		e.observer.ObserveQuery(model, op, elapsed, rows, err)
	}
}

// selectRows scans every row of stmt into dest, a pointer to a slice.
func (e *engine) selectRows(ctx context.Context, m *query.Model, op string, dest interface{}, stmt query.Statement) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	q, err := e.querier()
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.SelectContext(ctx, q, dest, stmt.SQL, stmt.Args...)
	rows := 0
	if err == nil {
		rows = reflect.ValueOf(dest).Elem().Len()
	} else {
		err = appErrors.FromDriver(err, m.Name+"."+op)
	}
	e.observe(m.Name, op, start, rows, err)
	return err
}

// getRow scans the single row of stmt into a new *T of the model's row type.
// A missing row yields a NOT_FOUND error.
func (e *engine) getRow(ctx context.Context, m *query.Model, op string, stmt query.Statement) (reflect.Value, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	q, err := e.querier()
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(rowType(m))
	start := time.Now()
	err = sqlx.GetContext(ctx, q, ptr.Interface(), stmt.SQL, stmt.Args...)
	rows := 1
	if err != nil {
		rows = 0
		err = appErrors.FromDriver(err, m.Name+"."+op)
	}
	e.observe(m.Name, op, start, rows, err)
	if err != nil {
		return reflect.Value{}, err
	}
	return ptr, nil
}

func (e *engine) queryMaps(ctx context.Context, m *query.Model, op string, stmt query.Statement) ([]map[string]interface{}, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	q, err := e.querier()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := database.QueryRaw(ctx, q, stmt.SQL, stmt.Args...)
	err = reclassify(err, m.Name+"."+op)
	e.observe(m.Name, op, start, len(rows), err)
	return rows, err
}

func (e *engine) scalar(ctx context.Context, m *query.Model, op string, stmt query.Statement) (int64, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	q, err := e.querier()
	if err != nil {
		return 0, err
	}
	var n int64
	start := time.Now()
	err = sqlx.GetContext(ctx, q, &n, stmt.SQL, stmt.Args...)
	if err != nil {
		err = appErrors.FromDriver(err, m.Name+"."+op)
	}
	e.observe(m.Name, op, start, 1, err)
	return n, err
}

func (e *engine) exec(ctx context.Context, m *query.Model, op string, stmt query.Statement) (int64, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	q, err := e.querier()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	affected, err := database.ExecuteRaw(ctx, q, stmt.SQL, stmt.Args...)
	err = reclassify(err, m.Name+"."+op)
	e.observe(m.Name, op, start, int(affected), err)
	return affected, err
}

// reclassify renames the operation of an error already classified by the raw
// helpers.
func reclassify(err error, op string) error {
	if err == nil {
		return nil
	}
	if cause := errors.Unwrap(err); cause != nil {
		return appErrors.FromDriver(cause, op)
	}
	return err
}

// cacheKey identifies a read by its statement plus the in-memory paging
// applied after it, which distinct reads keep out of the SQL.
func cacheKey(m *query.Model, stmt query.Statement, paging ...interface{}) string {
	args, _ := json.Marshal(stmt.Args)
	sum := sha256.New()
	sum.Write([]byte(stmt.SQL + "\x00"))
	sum.Write(args)
	if len(paging) > 0 {
		extra, _ := json.Marshal(paging)
		sum.Write([]byte("\x00"))
		sum.Write(extra)
	}
	return "qcache:" + m.Name + ":" + hex.EncodeToString(sum.Sum(nil))
}

// invalidate drops every cached read of m. Inside a transaction the drop waits
// for the commit. Cache failures never fail a write.
func (e *engine) invalidate(ctx context.Context, m *query.Model) {
	if e.cache == nil {
		return
	}
	if e.tx != nil && e.pending != nil {
		e.pending.add(m.Name)
		return
	}
	e.invalidateName(ctx, m.Name)
}

func (e *engine) invalidateName(ctx context.Context, name string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.DeleteByPattern(ctx, "qcache:"+name+":*"); err != nil {
		e.logger.Warn("failed to invalidate query cache", zap.String("model", name), zap.Error(err))
	}
}
