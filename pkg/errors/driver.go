package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes mapped to error kinds.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgConnectionClass      = "08"
)

// FromDriver classifies an error returned by database/sql or lib/pq into one of
// the typed kinds. op names the operation, e.g. "presence.create".
func FromDriver(err error, op string) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(err, ErrNotFound.Code, ErrNotFound.Status, fmt.Sprintf("%s: record not found", op))
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fromPQ(pqErr, op)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrTransactionTimeout.Code, ErrTransactionTimeout.Status, fmt.Sprintf("%s: %s", op, ErrTransactionTimeout.Message))
	}

	if isConnectionError(err) {
		return Wrap(err, ErrConnection.Code, ErrConnection.Status, fmt.Sprintf("%s: %s", op, ErrConnection.Message))
	}

	return Wrap(err, ErrInternal.Code, ErrInternal.Status, fmt.Sprintf("%s failed", op))
}

func fromPQ(pqErr *pq.Error, op string) error {
	code := string(pqErr.Code)
	var out *Error
	switch {
	case code == pgUniqueViolation:
		out = Wrap(pqErr, ErrConflict.Code, ErrConflict.Status, fmt.Sprintf("%s: unique constraint failed", op))
	case code == pgForeignKeyViolation:
		out = Wrap(pqErr, ErrForeignKey.Code, ErrForeignKey.Status, fmt.Sprintf("%s: foreign key constraint failed", op))
	case code == pgNotNullViolation:
		out = Wrap(pqErr, ErrNullConstraint.Code, ErrNullConstraint.Status, fmt.Sprintf("%s: null constraint violated on %s", op, pqErr.Column))
	case code == pgSerializationFailure || code == pgDeadlockDetected:
		out = Wrap(pqErr, ErrWriteConflict.Code, ErrWriteConflict.Status, fmt.Sprintf("%s: %s", op, ErrWriteConflict.Message))
	case code == pgQueryCanceled:
		out = Wrap(pqErr, ErrTransactionTimeout.Code, ErrTransactionTimeout.Status, fmt.Sprintf("%s: statement canceled", op))
	case strings.HasPrefix(code, pgConnectionClass):
		out = Wrap(pqErr, ErrConnection.Code, ErrConnection.Status, fmt.Sprintf("%s: %s", op, ErrConnection.Message))
	default:
		return Wrap(pqErr, ErrInternal.Code, ErrInternal.Status, fmt.Sprintf("%s failed", op))
	}

	out.Meta = map[string]string{"sqlstate": code}
	if pqErr.Constraint != "" {
		out.Meta["constraint"] = pqErr.Constraint
	}
	if pqErr.Table != "" {
		out.Meta["table"] = pqErr.Table
	}
	if pqErr.Column != "" {
		out.Meta["column"] = pqErr.Column
	}
	return out
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
