package errors

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDriverClassifiesPQCodes(t *testing.T) {
	cases := []struct {
		name string
		code pq.ErrorCode
		want *Error
	}{
		{name: "unique", code: "23505", want: ErrConflict},
		{name: "foreign key", code: "23503", want: ErrForeignKey},
		{name: "not null", code: "23502", want: ErrNullConstraint},
		{name: "serialization", code: "40001", want: ErrWriteConflict},
		{name: "connection", code: "08006", want: ErrConnection},
		{name: "other", code: "42601", want: ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := FromDriver(&pq.Error{Code: tc.code, Constraint: "presence_user_id_lecture_id_key"}, "presence.create")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.want.Status, FromError(err).Status)
		})
	}
}

func TestFromDriverKeepsConstraintMeta(t *testing.T) {
	err := FromDriver(&pq.Error{Code: "23505", Constraint: "role_name_key", Table: "role"}, "role.create")

	typed := FromError(err)
	assert.Equal(t, "CONFLICT", typed.Code)
	assert.Equal(t, "role_name_key", typed.Meta["constraint"])
	assert.Equal(t, "role", typed.Meta["table"])
	assert.True(t, IsConflict(err))
}

func TestFromDriverWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("insert presence: %w", &pq.Error{Code: "23503"})
	assert.True(t, IsForeignKey(FromDriver(wrapped, "presence.create")))

	assert.True(t, IsNotFound(FromDriver(sql.ErrNoRows, "users.findUniqueOrThrow")))
	assert.True(t, IsTimeout(FromDriver(context.DeadlineExceeded, "$transaction")))
	assert.True(t, IsConnection(FromDriver(&net.OpError{Op: "dial", Err: fmt.Errorf("refused")}, "connect")))
	assert.Nil(t, FromDriver(nil, "noop"))
}

func TestFromDriverPassesTypedErrorsThrough(t *testing.T) {
	original := Validation("where must select a unique key")
	assert.Same(t, original, FromDriver(original, "users.findUnique"))
}

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "lecture not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsConflict(err))

	meta := WithMeta(ErrConflict, "constraint", "x")
	assert.Nil(t, ErrConflict.Meta)
	assert.Equal(t, "x", meta.Meta["constraint"])
}
