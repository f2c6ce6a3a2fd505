package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-presence-api/pkg/config"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// IsolationLevel names a transaction isolation level.
type IsolationLevel string

const (
	ReadUncommitted IsolationLevel = "ReadUncommitted"
	ReadCommitted   IsolationLevel = "ReadCommitted"
	RepeatableRead  IsolationLevel = "RepeatableRead"
	Serializable    IsolationLevel = "Serializable"
)

// TxOptions tunes an interactive transaction. Zero values fall back to the
// client defaults.
type TxOptions struct {
	// MaxWait bounds how long to wait for a pooled connection.
	MaxWait time.Duration
	// Timeout bounds the whole transaction, including commit.
	Timeout        time.Duration
	IsolationLevel IsolationLevel
	ReadOnly       bool
}

// TxOptionsFromConfig converts the configured transaction defaults.
func TxOptionsFromConfig(cfg config.TransactionConfig) TxOptions {
	return TxOptions{MaxWait: cfg.MaxWait, Timeout: cfg.Timeout, IsolationLevel: IsolationLevel(cfg.IsolationLevel)}
}

func (l IsolationLevel) sqlLevel() (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.ReplaceAll(string(l), " ", "")) {
	case "":
		return sql.LevelDefault, nil
	case "readuncommitted":
		return sql.LevelReadUncommitted, nil
	case "readcommitted":
		return sql.LevelReadCommitted, nil
	case "repeatableread":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, appErrors.Validation("unsupported isolation level %q", string(l))
	}
}

// Client owns the connection pool lifecycle and the transaction surface.
type Client struct {
	cfg        config.DatabaseConfig
	txDefaults TxOptions
	logger     *zap.Logger

	mu sync.RWMutex
	db *sqlx.DB
}

// NewClient returns an unconnected client; call Connect before use.
func NewClient(cfg config.DatabaseConfig, txDefaults TxOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, txDefaults: txDefaults, logger: logger}
}

// NewClientFromDB wraps an already opened pool.
func NewClientFromDB(db *sqlx.DB, txDefaults TxOptions, logger *zap.Logger) *Client {
	c := NewClient(config.DatabaseConfig{}, txDefaults, logger)
	c.db = db
	return c
}

// Connect opens the pool and verifies the server answers. Calling it on a
// connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db, err := Open(c.cfg)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrConnection.Code, appErrors.ErrConnection.Status, "failed to configure database pool")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return appErrors.Wrap(err, appErrors.ErrConnection.Code, appErrors.ErrConnection.Status,
			fmt.Sprintf("can't reach database server at %s:%d", c.cfg.Host, c.cfg.Port))
	}

	c.db = db
	c.logger.Info("database connected", zap.String("host", c.cfg.Host), zap.String("database", c.cfg.Name))
	return nil
}

// Disconnect closes the pool. A disconnected client can Connect again.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	c.logger.Info("database disconnected")
	return nil
}

// DB returns the underlying pool or nil when not connected.
func (c *Client) DB() *sqlx.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Ping checks the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	db := c.DB()
	if db == nil {
		return appErrors.Clone(appErrors.ErrConnection, "database client is not connected")
	}
	if err := db.PingContext(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConnection.Code, appErrors.ErrConnection.Status, appErrors.ErrConnection.Message)
	}
	return nil
}

// QueryRaw runs a raw query against the pool.
func (c *Client) QueryRaw(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	db := c.DB()
	if db == nil {
		return nil, appErrors.Clone(appErrors.ErrConnection, "database client is not connected")
	}
	return QueryRaw(ctx, db, query, args...)
}

// ExecuteRaw runs a raw statement against the pool.
func (c *Client) ExecuteRaw(ctx context.Context, query string, args ...interface{}) (int64, error) {
	db := c.DB()
	if db == nil {
		return 0, appErrors.Clone(appErrors.ErrConnection, "database client is not connected")
	}
	return ExecuteRaw(ctx, db, query, args...)
}

// Transaction runs fn inside a transaction. fn's error or a panic rolls back;
// otherwise the transaction commits. Exceeding MaxWait or Timeout yields a
// TRANSACTION_TIMEOUT error.
func (c *Client) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error, opts ...TxOptions) (err error) {
	db := c.DB()
	if db == nil {
		return appErrors.Clone(appErrors.ErrConnection, "database client is not connected")
	}

	o := c.resolve(opts)
	level, err := o.IsolationLevel.sqlLevel()
	if err != nil {
		return err
	}

	txID := uuid.NewString()
	log := c.logger.With(zap.String("tx_id", txID))

	waitCtx, cancelWait := withOptionalTimeout(ctx, o.MaxWait)
	defer cancelWait()
	conn, err := db.Connx(waitCtx)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return appErrors.Wrap(err, appErrors.ErrTransactionTimeout.Code, appErrors.ErrTransactionTimeout.Status,
				fmt.Sprintf("unable to start a transaction in the given time (max wait %s)", o.MaxWait))
		}
		return appErrors.FromDriver(err, "$transaction")
	}
	defer conn.Close()

	txCtx, cancel := withOptionalTimeout(ctx, o.Timeout)
	defer cancel()

	tx, err := conn.BeginTxx(txCtx, &sql.TxOptions{Isolation: level, ReadOnly: o.ReadOnly})
	if err != nil {
		return appErrors.FromDriver(err, "$transaction")
	}
	log.Debug("transaction started", zap.String("isolation", string(o.IsolationLevel)))

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			log.Warn("transaction rolled back after panic")
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		log.Debug("transaction rolled back", zap.Error(err))
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return timeoutError(err, o.Timeout)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return timeoutError(err, o.Timeout)
		}
		return appErrors.FromDriver(err, "$transaction.commit")
	}
	log.Debug("transaction committed")
	return nil
}

func (c *Client) resolve(opts []TxOptions) TxOptions {
	o := c.txDefaults
	if len(opts) == 0 {
		return o
	}
	override := opts[0]
	if override.MaxWait > 0 {
		o.MaxWait = override.MaxWait
	}
	if override.Timeout > 0 {
		o.Timeout = override.Timeout
	}
	if override.IsolationLevel != "" {
		o.IsolationLevel = override.IsolationLevel
	}
	o.ReadOnly = override.ReadOnly
	return o
}

func timeoutError(err error, timeout time.Duration) error {
	return appErrors.Wrap(err, appErrors.ErrTransactionTimeout.Code, appErrors.ErrTransactionTimeout.Status,
		fmt.Sprintf("transaction already closed: timeout of %s exceeded", timeout))
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
