package document

import "errors"

var (
	// ErrUnknownField is returned for a field that is not part of the kind's schema.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnsupportedChange is returned when a field does not accept the change's op,
	// e.g. Set on a map field that only supports Update.
	ErrUnsupportedChange = errors.New("unsupported change for field")

	// ErrInvalidValue is returned when a change carries a value of the wrong type.
	ErrInvalidValue = errors.New("invalid value for field")

	// ErrNotFetched is returned by ApplyChanges before the manager has state.
	ErrNotFetched = errors.New("document not fetched")

	// ErrBroken is returned by every I/O method of a manager that failed to construct.
	ErrBroken = errors.New("manager is unusable")
)
