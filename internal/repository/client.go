package repository

import (
	"context"

	"github.com/noah-isme/sma-presence-api/pkg/database"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// Client groups the repositories of every model. A Client obtained inside
// Transaction runs all of its calls on that transaction.
type Client struct {
	engine *engine

	VerificationTokens *VerificationTokenRepository
	Accounts           *AccountRepository
	Sessions           *SessionRepository
	Users              *UserRepository
	Roles              *RoleRepository
	UserRoles          *UserRoleRepository
	Permissions        *PermissionRepository
	RolePermissions    *RolePermissionRepository
	DatabaseMetrics    *DatabaseMetricRepository
	Schedules          *ScheduleRepository
	Subjects           *SubjectRepository
	Teachers           *TeacherRepository
	TeacherSubjects    *TeacherSubjectRepository
	Lectures           *LectureRepository
	Presence           *PresenceRepository
}

// NewClient builds the repositories on top of a database client. The
// database client may be connected later.
func NewClient(db *database.Client, opts Options) *Client {
	return bind(newEngine(db, opts))
}

func bind(e *engine) *Client {
	return &Client{
		engine:             e,
		VerificationTokens: NewVerificationTokenRepository(e),
		Accounts:           NewAccountRepository(e),
		Sessions:           NewSessionRepository(e),
		Users:              NewUserRepository(e),
		Roles:              NewRoleRepository(e),
		UserRoles:          NewUserRoleRepository(e),
		Permissions:        NewPermissionRepository(e),
		RolePermissions:    NewRolePermissionRepository(e),
		DatabaseMetrics:    NewDatabaseMetricRepository(e),
		Schedules:          NewScheduleRepository(e),
		Subjects:           NewSubjectRepository(e),
		Teachers:           NewTeacherRepository(e),
		TeacherSubjects:    NewTeacherSubjectRepository(e),
		Lectures:           NewLectureRepository(e),
		Presence:           NewPresenceRepository(e),
	}
}

// Connect opens the pool.
func (c *Client) Connect(ctx context.Context) error { return c.engine.db.Connect(ctx) }

// Disconnect closes the pool.
func (c *Client) Disconnect() error { return c.engine.db.Disconnect() }

// Ping checks the store answers.
func (c *Client) Ping(ctx context.Context) error { return c.engine.db.Ping(ctx) }

// InTransaction reports whether the client is bound to a transaction.
func (c *Client) InTransaction() bool { return c.engine.tx != nil }

// Transaction runs fn with a client bound to a new transaction. Calling it on
// a client that is already inside a transaction reuses that transaction.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Client) error, opts ...database.TxOptions) error {
	if c.engine.tx != nil {
		return fn(c)
	}
	return c.engine.transaction(ctx, func(e *engine) error {
		return fn(bind(e))
	}, opts...)
}

// Operation is one step of a Batch.
type Operation func(ctx context.Context, tx *Client) (interface{}, error)

// Batch runs every operation in one transaction and returns their results in
// order. The first failure rolls back the whole batch.
func (c *Client) Batch(ctx context.Context, ops ...Operation) ([]interface{}, error) {
	results := make([]interface{}, 0, len(ops))
	err := c.Transaction(ctx, func(tx *Client) error {
		for _, op := range ops {
			res, err := op(ctx, tx)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Model returns the untyped table of a model for name-addressed calls.
func (c *Client) Model(name string) (*DynamicTable, error) {
	m, ok := Schema.Model(name)
	if !ok {
		return nil, appErrors.Validation("unknown model %q", name)
	}
	return &DynamicTable{engine: c.engine, model: m}, nil
}

// QueryRaw runs a raw query on the pool or the bound transaction.
func (c *Client) QueryRaw(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	q, err := c.engine.querier()
	if err != nil {
		return nil, err
	}
	return database.QueryRaw(ctx, q, sql, args...)
}

// ExecuteRaw runs a raw statement on the pool or the bound transaction.
func (c *Client) ExecuteRaw(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	q, err := c.engine.querier()
	if err != nil {
		return 0, err
	}
	return database.ExecuteRaw(ctx, q, sql, args...)
}
