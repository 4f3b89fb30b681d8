// Package selector provides the values a caller passes for each dimension
// of a result query: absent, one scalar, an ordered collection, or (for the
// registration dimension) a hierarchical toolkit/command/version mapping.
package selector

import (
	"fmt"
	"strings"
)

// Kind classifies a selector.
type Kind int

const (
	KindAbsent Kind = iota
	KindScalar
	KindMany
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMany:
		return "many"
	default:
		return "absent"
	}
}

// Selector is the value given for one query dimension. The zero value is absent.
type Selector[T comparable] struct {
	kind   Kind
	values []T
}

// Absent returns a selector that leaves the dimension to its default.
func Absent[T comparable]() Selector[T] {
	return Selector[T]{}
}

// One returns a scalar selector.
func One[T comparable](v T) Selector[T] {
	return Selector[T]{kind: KindScalar, values: []T{v}}
}

// Many returns a collection selector. It denotes one result per element,
// concatenated in order, even when it holds a single element.
func Many[T comparable](vs ...T) Selector[T] {
	values := make([]T, len(vs))
	copy(values, vs)
	return Selector[T]{kind: KindMany, values: values}
}

// Of returns One for a single value and Many otherwise.
func Of[T comparable](vs ...T) Selector[T] {
	if len(vs) == 1 {
		return One(vs[0])
	}
	return Many(vs...)
}

// Kind returns the selector kind.
func (s Selector[T]) Kind() Kind { return s.kind }

// IsAbsent reports whether no value was given.
func (s Selector[T]) IsAbsent() bool { return s.kind == KindAbsent }

// IsScalar reports whether exactly one concrete value was given.
func (s Selector[T]) IsScalar() bool { return s.kind == KindScalar }

// IsIterable reports whether the selector is a collection. A scalar string
// is never iterable.
func (s Selector[T]) IsIterable() bool { return s.kind == KindMany }

// IsEmpty reports whether the selector is absent, an empty collection or
// the zero value of T.
func (s Selector[T]) IsEmpty() bool {
	var zero T
	switch s.kind {
	case KindScalar:
		return s.values[0] == zero
	case KindMany:
		return len(s.values) == 0
	default:
		return true
	}
}

// Value returns the scalar value, or the zero value for other kinds.
func (s Selector[T]) Value() T {
	var zero T
	if s.kind != KindScalar {
		return zero
	}
	return s.values[0]
}

// Values returns the values the selector denotes.
func (s Selector[T]) Values() []T {
	if s.kind == KindAbsent {
		return nil
	}
	out := make([]T, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of values.
func (s Selector[T]) Len() int { return len(s.values) }

// Contains reports whether v is one of the selected values.
func (s Selector[T]) Contains(v T) bool {
	for _, x := range s.values {
		if x == v {
			return true
		}
	}
	return false
}

func (s Selector[T]) String() string {
	switch s.kind {
	case KindScalar:
		return fmt.Sprint(s.values[0])
	case KindMany:
		parts := make([]string, len(s.values))
		for i, v := range s.values {
			parts[i] = fmt.Sprint(v)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return "<absent>"
	}
}

// IsIterable reports whether s is a collection selector.
func IsIterable[T comparable](s Selector[T]) bool {
	return s.IsIterable()
}
