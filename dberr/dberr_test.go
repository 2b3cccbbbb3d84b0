package dberr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStringCoversAllKinds(t *testing.T) {
	cases := map[Kind]string{
		KindTypeMismatch:        "TypeMismatch",
		KindNullConstraint:      "NullConstraint",
		KindUniqueConstraint:    "UniqueConstraint",
		KindNotFound:            "NotFound",
		KindInvalidSchema:       "InvalidSchema",
		KindColumnNotFound:      "ColumnNotFound",
		KindTableNotFound:       "TableNotFound",
		KindIndexNotFound:       "IndexNotFound",
		KindForeignKeyViolation: "ForeignKeyViolation",
		KindInvalidOperation:    "InvalidOperation",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
	assert.Equal(t, "Unknown", Kind(99).String())
}

func TestErrorMessagesIncludeOperands(t *testing.T) {
	assert.Contains(t, NewTypeMismatch("age", "expected int32").Error(), "age")
	assert.Contains(t, NewNullConstraint("users", "email").Error(), "users")
	assert.Contains(t, NewUniqueConstraint("users", "email_idx", "a@b.com").Error(), "a@b.com")
	assert.Contains(t, NewNotFound("row 5").Error(), "row 5")
	assert.Contains(t, NewInvalidSchema("bad column").Error(), "bad column")
	assert.Contains(t, NewColumnNotFound("users", "nope").Error(), "nope")
	assert.Contains(t, NewTableNotFound("ghost").Error(), "ghost")
	assert.Contains(t, NewIndexNotFound("users", "idx_x").Error(), "idx_x")
	assert.Contains(t, NewForeignKeyViolation("orders", "user_id", "dangling").Error(), "dangling")
	assert.Contains(t, NewInvalidOperation("cannot drop").Error(), "cannot drop")
}

func TestErrorsIsMatchesByKindOnly(t *testing.T) {
	a := NewTableNotFound("foo")
	b := NewTableNotFound("bar")
	assert.True(t, errors.Is(a, b))

	c := NewColumnNotFound("foo", "x")
	assert.False(t, errors.Is(a, c))
}

func TestErrorsAsExtractsConcreteType(t *testing.T) {
	var target *Error
	err := error(NewUniqueConstraint("t", "idx", 1))
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, KindUniqueConstraint, target.Kind)
}
