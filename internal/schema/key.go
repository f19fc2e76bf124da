package schema

import (
	"cmp"
	"slices"
)

// RowKey identifies a row of the tree. A zero Column means the table row
// itself; table and column keys never compare equal.
type RowKey struct {
	Table  string
	Column string
}

// TableKey is the key of a table row
func TableKey(table string) RowKey {
	return RowKey{Table: table}
}

// ColumnKey is the key of a column row
func ColumnKey(table, column string) RowKey {
	return RowKey{Table: table, Column: column}
}

// IsTable reports whether k addresses a table row
func (k RowKey) IsTable() bool {
	return k.Column == ""
}

// String renders the legacy row id: "table" or "table-column"
func (k RowKey) String() string {
	if k.IsTable() {
		return k.Table
	}

	return k.Table + "-" + k.Column
}

func compareKeys(a, b RowKey) int {
	if c := cmp.Compare(a.Table, b.Table); c != 0 {
		return c
	}

	return cmp.Compare(a.Column, b.Column)
}

// Selection is the set of rows taking part in generation. Table and column
// membership are independent entries.
type Selection map[RowKey]struct{}

// NewSelection builds a selection holding keys
func NewSelection(keys ...RowKey) Selection {
	s := make(Selection, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}

	return s
}

// Has reports membership
func (s Selection) Has(k RowKey) bool {
	_, ok := s[k]
	return ok
}

// Add inserts keys
func (s Selection) Add(keys ...RowKey) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Remove deletes keys
func (s Selection) Remove(keys ...RowKey) {
	for _, k := range keys {
		delete(s, k)
	}
}

// Keys returns the members sorted by table then column
func (s Selection) Keys() []RowKey {
	keys := make([]RowKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, compareKeys)

	return keys
}

// Clone returns an independent copy
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k := range s {
		out[k] = struct{}{}
	}

	return out
}
