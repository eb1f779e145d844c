package document

import "fmt"

// Op is the kind of a queued mutation.
type Op int

const (
	// OpSet overwrites a scalar or sub-field.
	OpSet Op = iota + 1
	// OpAdd inserts a value into a set-like collection if it is absent.
	OpAdd
	// OpRemove removes a value from a collection, or a key from a map field.
	OpRemove
	// OpUpdate upserts Value under Key in a map field.
	OpUpdate
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Change is a queued mutation against one field of a document.
// F is the closed field enum of the document kind.
type Change[F ~string] struct {
	Op    Op
	Field F
	Key   string // OpUpdate only
	Value any
}

func (c Change[F]) String() string {
	if c.Op == OpUpdate {
		return fmt.Sprintf("%s %s[%s]", c.Op, c.Field, c.Key)
	}
	return fmt.Sprintf("%s %s", c.Op, c.Field)
}

func Set[F ~string](field F, value any) Change[F] {
	return Change[F]{Op: OpSet, Field: field, Value: value}
}

func Add[F ~string](field F, value any) Change[F] {
	return Change[F]{Op: OpAdd, Field: field, Value: value}
}

func Remove[F ~string](field F, value any) Change[F] {
	return Change[F]{Op: OpRemove, Field: field, Value: value}
}

func Update[F ~string](field F, key string, value any) Change[F] {
	return Change[F]{Op: OpUpdate, Field: field, Key: key, Value: value}
}

// ChangeLog is the ordered list of changes pending against one document.
// The zero value is an empty log.
type ChangeLog[F ~string] struct {
	changes []Change[F]
}

// Append queues c after every change already in the log.
func (l *ChangeLog[F]) Append(c Change[F]) {
	l.changes = append(l.changes, c)
}

// Len returns the number of pending changes.
func (l *ChangeLog[F]) Len() int {
	return len(l.changes)
}

// Changes returns a copy of the pending changes in enqueue order.
func (l *ChangeLog[F]) Changes() []Change[F] {
	return append([]Change[F](nil), l.changes...)
}

// DropFirst removes the first n changes, i.e. the ones a flush persisted.
func (l *ChangeLog[F]) DropFirst(n int) {
	if n >= len(l.changes) {
		l.changes = nil
		return
	}
	l.changes = append([]Change[F](nil), l.changes[n:]...)
}
