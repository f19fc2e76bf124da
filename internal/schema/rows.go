package schema

import (
	"fmt"
	"slices"

	"github.com/kyleking/gen-console/internal/errors"
)

// ColumnRow is one column of a table candidate
type ColumnRow struct {
	Table      string
	Name       string
	Field      string
	Chinese    string
	Type       string
	Length     *int64
	IsNullable bool
	Comment    string
}

// Key returns the column's row key
func (c ColumnRow) Key() RowKey {
	return ColumnKey(c.Table, c.Name)
}

// TableRow is one table candidate for generation
type TableRow struct {
	Name    string
	Comment string
	Flags   Flags
	Columns []ColumnRow
}

// Key returns the table's row key
func (t TableRow) Key() RowKey {
	return TableKey(t.Name)
}

// Column finds a column by name
func (t TableRow) Column(name string) (ColumnRow, int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return c, i, true
		}
	}

	return ColumnRow{}, -1, false
}

func (t TableRow) clone() TableRow {
	t.Columns = slices.Clone(t.Columns)
	for i := range t.Columns {
		if l := t.Columns[i].Length; l != nil {
			v := *l
			t.Columns[i].Length = &v
		}
	}

	return t
}

// Tree owns the loaded rows. Rows are handed out and taken back by value;
// the only mutation is Update, which replaces one row and bumps Revision.
// A Tree is not safe for concurrent use; its owner serialises access.
type Tree struct {
	rows     []TableRow
	index    map[string]int
	revision uint64
}

// NewTree validates rows and takes a private copy of them
func NewTree(rows []TableRow) (*Tree, error) {
	t := &Tree{
		rows:  make([]TableRow, 0, len(rows)),
		index: make(map[string]int, len(rows)),
	}

	for _, row := range rows {
		if err := validateRow(row); err != nil {
			return nil, err
		}

		if _, dup := t.index[row.Name]; dup {
			return nil, errors.Newf(errors.ErrTypeValidation, "duplicate table %q", row.Name)
		}

		t.index[row.Name] = len(t.rows)
		t.rows = append(t.rows, row.clone())
	}

	return t, nil
}

func validateRow(row TableRow) error {
	if row.Name == "" {
		return errors.New(errors.ErrTypeValidation, "table name must not be empty")
	}

	seen := make(map[string]bool, len(row.Columns))

	for _, c := range row.Columns {
		if c.Name == "" {
			return errors.Newf(errors.ErrTypeValidation, "table %q has a column without a name", row.Name)
		}

		if c.Table != row.Name {
			return errors.Newf(errors.ErrTypeValidation, "column %q belongs to %q, not %q", c.Name, c.Table, row.Name)
		}

		if seen[c.Name] {
			return errors.Newf(errors.ErrTypeValidation, "duplicate column %q in table %q", c.Name, row.Name)
		}

		seen[c.Name] = true
	}

	return nil
}

// Len returns the number of tables
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}

	return len(t.rows)
}

// Revision increases on every Update; renderers compare it to skip redraws
func (t *Tree) Revision() uint64 {
	if t == nil {
		return 0
	}

	return t.revision
}

// Row returns a copy of the row at i
func (t *Tree) Row(i int) (TableRow, bool) {
	if t == nil || i < 0 || i >= len(t.rows) {
		return TableRow{}, false
	}

	return t.rows[i].clone(), true
}

// Lookup returns a copy of the named table row and its index
func (t *Tree) Lookup(table string) (TableRow, int, bool) {
	if t == nil {
		return TableRow{}, -1, false
	}

	i, ok := t.index[table]
	if !ok {
		return TableRow{}, -1, false
	}

	return t.rows[i].clone(), i, true
}

// Rows returns copies of every row in load order
func (t *Tree) Rows() []TableRow {
	if t == nil {
		return nil
	}

	out := make([]TableRow, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.clone()
	}

	return out
}

// Update replaces the row at i. The replacement must keep the table name so
// keys stay stable.
func (t *Tree) Update(i int, row TableRow) error {
	if t == nil || i < 0 || i >= len(t.rows) {
		return errors.Newf(errors.ErrTypeNotFound, "no row at index %d", i)
	}

	if row.Name != t.rows[i].Name {
		return errors.Newf(errors.ErrTypeValidation, "row %d is %q, cannot replace it with %q", i, t.rows[i].Name, row.Name)
	}

	if err := validateRow(row); err != nil {
		return err
	}

	t.rows[i] = row.clone()
	t.revision++

	return nil
}

// Toggle applies a tag click on flag to the named table and returns its new flags
func (t *Tree) Toggle(table string, flag Flag) (Flags, error) {
	row, i, ok := t.Lookup(table)
	if !ok {
		return Flags{}, errors.Newf(errors.ErrTypeNotFound, "table %q is not loaded", table)
	}

	row.Flags = row.Flags.Toggle(flag)

	if err := t.Update(i, row); err != nil {
		return Flags{}, err
	}

	return row.Flags, nil
}

// SetField changes the generated identifier of a column
func (t *Tree) SetField(key RowKey, value string) error {
	return t.editColumn(key, func(c *ColumnRow) { c.Field = value })
}

// SetChinese changes the display label of a column
func (t *Tree) SetChinese(key RowKey, value string) error {
	return t.editColumn(key, func(c *ColumnRow) { c.Chinese = value })
}

func (t *Tree) editColumn(key RowKey, edit func(*ColumnRow)) error {
	if key.IsTable() {
		return errors.Newf(errors.ErrTypeValidation, "%s is a table, not a column", key)
	}

	row, i, ok := t.Lookup(key.Table)
	if !ok {
		return errors.Newf(errors.ErrTypeNotFound, "table %q is not loaded", key.Table)
	}

	_, ci, ok := row.Column(key.Column)
	if !ok {
		return errors.Newf(errors.ErrTypeNotFound, "column %q is not in table %q", key.Column, key.Table)
	}

	edit(&row.Columns[ci])

	return t.Update(i, row)
}

// Column returns a copy of the column addressed by key
func (t *Tree) Column(key RowKey) (ColumnRow, bool) {
	if key.IsTable() {
		return ColumnRow{}, false
	}

	row, _, ok := t.Lookup(key.Table)
	if !ok {
		return ColumnRow{}, false
	}

	c, _, ok := row.Column(key.Column)

	return c, ok
}

// Has reports whether key addresses a loaded row
func (t *Tree) Has(key RowKey) bool {
	if key.IsTable() {
		_, _, ok := t.Lookup(key.Table)
		return ok
	}

	_, ok := t.Column(key)

	return ok
}

// Keys returns every row key in display order: each table followed by its columns
func (t *Tree) Keys() []RowKey {
	if t == nil {
		return nil
	}

	var keys []RowKey

	for _, r := range t.rows {
		keys = append(keys, r.Key())
		for _, c := range r.Columns {
			keys = append(keys, c.Key())
		}
	}

	return keys
}

// Resolve maps operator input to a key. It accepts a table name, "table.column",
// or the legacy "table-column" id; the first loaded row that matches wins.
func (t *Tree) Resolve(s string) (RowKey, error) {
	if t != nil {
		if _, ok := t.index[s]; ok {
			return TableKey(s), nil
		}

		for _, r := range t.rows {
			for _, c := range r.Columns {
				k := c.Key()
				if s == k.Table+"."+k.Column || s == k.String() {
					return k, nil
				}
			}
		}
	}

	return RowKey{}, errors.Newf(errors.ErrTypeNotFound, "no table or column matches %q", s)
}

func (t *Tree) String() string {
	return fmt.Sprintf("Tree(%d tables, rev %d)", t.Len(), t.Revision())
}
