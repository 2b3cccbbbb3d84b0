// Package dberr defines the structured error taxonomy surfaced across the
// engine's public API: schema/definition errors, constraint violations,
// lookup failures, lock contention, and internal invariant violations.
package dberr

import "fmt"

// Kind classifies an error for errors.Is-style matching without inspecting
// message text.
type Kind int

const (
	KindTypeMismatch Kind = iota
	KindNullConstraint
	KindUniqueConstraint
	KindNotFound
	KindInvalidSchema
	KindColumnNotFound
	KindTableNotFound
	KindIndexNotFound
	KindForeignKeyViolation
	KindInvalidOperation
)

func (k Kind) String() string {
	switch k {
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindNullConstraint:
		return "NullConstraint"
	case KindUniqueConstraint:
		return "UniqueConstraint"
	case KindNotFound:
		return "NotFound"
	case KindInvalidSchema:
		return "InvalidSchema"
	case KindColumnNotFound:
		return "ColumnNotFound"
	case KindTableNotFound:
		return "TableNotFound"
	case KindIndexNotFound:
		return "IndexNotFound"
	case KindForeignKeyViolation:
		return "ForeignKeyViolation"
	case KindInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// Error is the concrete structured error type returned across the engine.
// It carries the offending operands so embedders can build rich messages
// without re-parsing Error().
type Error struct {
	Kind    Kind
	Table   string
	Column  string
	Index   string
	Value   any
	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTypeMismatch:
		return fmt.Sprintf("type mismatch: column %q: %s", e.Column, e.Message)
	case KindNullConstraint:
		return fmt.Sprintf("null constraint violated: column %q in table %q", e.Column, e.Table)
	case KindUniqueConstraint:
		return fmt.Sprintf("unique constraint violated: index %q in table %q, value %v", e.Index, e.Table, e.Value)
	case KindNotFound:
		return fmt.Sprintf("not found: %s", e.Message)
	case KindInvalidSchema:
		return fmt.Sprintf("invalid schema: %s", e.Message)
	case KindColumnNotFound:
		return fmt.Sprintf("column not found: %q in table %q", e.Column, e.Table)
	case KindTableNotFound:
		return fmt.Sprintf("table not found: %q", e.Table)
	case KindIndexNotFound:
		return fmt.Sprintf("index not found: %q on table %q", e.Index, e.Table)
	case KindForeignKeyViolation:
		return fmt.Sprintf("foreign key violation: column %q in table %q: %s", e.Column, e.Table, e.Message)
	case KindInvalidOperation:
		return fmt.Sprintf("invalid operation: %s", e.Message)
	default:
		return e.Message
	}
}

// Is makes errors.Is(err, &dberr.Error{Kind: dberr.KindX}) match any
// *Error of the same Kind, ignoring the other fields; callers typically
// use errors.As and inspect Kind directly, but this keeps errors.Is
// ergonomic for simple checks.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func NewTypeMismatch(column string, message string) *Error {
	return &Error{Kind: KindTypeMismatch, Column: column, Message: message}
}

func NewNullConstraint(table, column string) *Error {
	return &Error{Kind: KindNullConstraint, Table: table, Column: column}
}

func NewUniqueConstraint(table, index string, value any) *Error {
	return &Error{Kind: KindUniqueConstraint, Table: table, Index: index, Value: value}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewInvalidSchema(message string) *Error {
	return &Error{Kind: KindInvalidSchema, Message: message}
}

func NewColumnNotFound(table, column string) *Error {
	return &Error{Kind: KindColumnNotFound, Table: table, Column: column}
}

func NewTableNotFound(table string) *Error {
	return &Error{Kind: KindTableNotFound, Table: table}
}

func NewIndexNotFound(table, index string) *Error {
	return &Error{Kind: KindIndexNotFound, Table: table, Index: index}
}

func NewForeignKeyViolation(table, column, message string) *Error {
	return &Error{Kind: KindForeignKeyViolation, Table: table, Column: column, Message: message}
}

func NewInvalidOperation(message string) *Error {
	return &Error{Kind: KindInvalidOperation, Message: message}
}
