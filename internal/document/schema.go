package document

import (
	"fmt"

	"github.com/mmynk/splitledger/internal/storage"
)

// Schema describes one document kind: its default value, its fields, and how
// each of the four change ops applies to each field. Handlers return
// ErrUnsupportedChange or ErrInvalidValue instead of panicking; the Manager
// logs those and moves on.
type Schema[T any, F ~string] interface {
	Kind() storage.Kind
	Fields() []F
	Empty(id string) T
	SetID(doc *T, id string)

	HandleSet(doc *T, field F, value any) error
	HandleAdd(doc *T, field F, value any) error
	HandleRemove(doc *T, field F, value any) error
	HandleUpdate(doc *T, field F, key string, value any) error
}

// Apply routes c to the schema handler for its op.
func Apply[T any, F ~string](s Schema[T, F], doc *T, c Change[F]) error {
	switch c.Op {
	case OpSet:
		return s.HandleSet(doc, c.Field, c.Value)
	case OpAdd:
		return s.HandleAdd(doc, c.Field, c.Value)
	case OpRemove:
		return s.HandleRemove(doc, c.Field, c.Value)
	case OpUpdate:
		return s.HandleUpdate(doc, c.Field, c.Key, c.Value)
	default:
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedChange, c.Op, c.Field)
	}
}

// Unsupported builds the error a handler returns for an op the field doesn't take.
func Unsupported[F ~string](op Op, field F) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedChange, op, field)
}

// Invalid builds the error a handler returns for a value of the wrong type.
func Invalid[F ~string](field F, value any) error {
	return fmt.Errorf("%w: %s got %T", ErrInvalidValue, field, value)
}
