package document

import "slices"

// AppendUnique appends v unless it is already present.
func AppendUnique[E comparable](s []E, v E) []E {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

// PrependUnique puts v first unless it is already present.
func PrependUnique[E comparable](s []E, v E) []E {
	if slices.Contains(s, v) {
		return s
	}
	return append([]E{v}, s...)
}

// RemoveValue drops every occurrence of v.
func RemoveValue[E comparable](s []E, v E) []E {
	return slices.DeleteFunc(slices.Clone(s), func(e E) bool { return e == v })
}
