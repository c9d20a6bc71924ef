// Package codes holds the wire code tables used by device frames and the API.
//
// Each table is a named integer type. Codes without a name are kept as-is,
// so converting a code to a variant and back never loses information.
package codes

import "strconv"

type table[T comparable] struct {
	names  map[T]string
	byName map[string]T
}

func newTable[T comparable](names map[T]string) table[T] {
	t := table[T]{names: names, byName: make(map[string]T, len(names))}
	for v, n := range names {
		t.byName[n] = v
	}
	return t
}

func (t table[T]) name(v T) (string, bool) {
	n, ok := t.names[v]
	return n, ok
}

func (t table[T]) parse(name string, unknown T) T {
	if v, ok := t.byName[name]; ok {
		return v
	}
	return unknown
}

func (t table[T]) values() []T {
	out := make([]T, 0, len(t.names))
	for v := range t.names {
		out = append(out, v)
	}
	return out
}

func unnamed(prefix string, code int64) string {
	return prefix + "(" + strconv.FormatInt(code, 10) + ")"
}
