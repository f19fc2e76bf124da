package schema

import (
	"fmt"
	"strings"
)

// Flag identifies one per-table generation feature
type Flag int

const (
	ListPage Flag = iota
	Query
	Selectable
	Pagination
	SerialNumber
	Add
	OperatorEdit
	OperatorDelete
	BatchDelete
	ModalEdit
	PageEdit
)

// AllFlags lists every flag in display order
var AllFlags = []Flag{
	ListPage, Query, Selectable, Pagination, SerialNumber,
	Add, OperatorEdit, OperatorDelete, BatchDelete,
	ModalEdit, PageEdit,
}

type flagInfo struct {
	name  string
	label string
	color string
}

var flagTable = map[Flag]flagInfo{
	ListPage:       {"listPage", "list page", "orange"},
	Query:          {"query", "query", "gold"},
	Selectable:     {"selectable", "selectable", "lime"},
	Pagination:     {"pagination", "pagination", "green"},
	SerialNumber:   {"serialNumber", "serial no.", "cyan"},
	Add:            {"add", "add", "blue"},
	OperatorEdit:   {"operatorEdit", "edit", "geekblue"},
	OperatorDelete: {"operatorDelete", "delete", "red"},
	BatchDelete:    {"batchDelete", "batch delete", "red"},
	ModalEdit:      {"modalEdit", "modal edit", "purple"},
	PageEdit:       {"pageEdit", "page edit", "purple"},
}

// DisabledColor is the tag color of any flag that is off
const DisabledColor = "gray"

// String returns the wire name of the flag, e.g. "listPage"
func (f Flag) String() string {
	if info, ok := flagTable[f]; ok {
		return info.name
	}

	return fmt.Sprintf("Flag(%d)", int(f))
}

// Label is the human-readable tag text
func (f Flag) Label() string {
	return flagTable[f].label
}

// Color is the tag color used when the flag is enabled
func (f Flag) Color() string {
	return flagTable[f].color
}

// IsEditMode reports whether f is one of the two mutually exclusive edit modes
func (f Flag) IsEditMode() bool {
	return f == ModalEdit || f == PageEdit
}

// ParseFlag accepts a wire name ("operatorEdit") or a label ("edit"), case-insensitively
func ParseFlag(s string) (Flag, error) {
	needle := strings.ToLower(strings.TrimSpace(s))

	for _, f := range AllFlags {
		info := flagTable[f]
		if strings.ToLower(info.name) == needle || info.label == needle {
			return f, nil
		}
	}

	return 0, fmt.Errorf("unknown flag %q", s)
}

// Flags is the set of generation features of one table
type Flags struct {
	ListPage       bool `json:"listPage"`
	Query          bool `json:"query"`
	Selectable     bool `json:"selectable"`
	Pagination     bool `json:"pagination"`
	SerialNumber   bool `json:"serialNumber"`
	Add            bool `json:"add"`
	OperatorEdit   bool `json:"operatorEdit"`
	OperatorDelete bool `json:"operatorDelete"`
	BatchDelete    bool `json:"batchDelete"`
	ModalEdit      bool `json:"modalEdit"`
	PageEdit       bool `json:"pageEdit"`
}

// DefaultFlags is the state of a freshly loaded table: the whole list group
// on, modal editing on, page editing off.
func DefaultFlags() Flags {
	return Flags{
		ListPage:       true,
		Query:          true,
		Selectable:     true,
		Pagination:     true,
		SerialNumber:   true,
		Add:            true,
		OperatorEdit:   true,
		OperatorDelete: true,
		BatchDelete:    true,
		ModalEdit:      true,
		PageEdit:       false,
	}
}

func (f *Flags) field(flag Flag) *bool {
	switch flag {
	case ListPage:
		return &f.ListPage
	case Query:
		return &f.Query
	case Selectable:
		return &f.Selectable
	case Pagination:
		return &f.Pagination
	case SerialNumber:
		return &f.SerialNumber
	case Add:
		return &f.Add
	case OperatorEdit:
		return &f.OperatorEdit
	case OperatorDelete:
		return &f.OperatorDelete
	case BatchDelete:
		return &f.BatchDelete
	case ModalEdit:
		return &f.ModalEdit
	case PageEdit:
		return &f.PageEdit
	default:
		return nil
	}
}

// Get reports whether flag is enabled
func (f Flags) Get(flag Flag) bool {
	if p := f.field(flag); p != nil {
		return *p
	}

	return false
}

// Set returns a copy of f with flag set to v and nothing else touched
func (f Flags) Set(flag Flag, v bool) Flags {
	if p := f.field(flag); p != nil {
		*p = v
	}

	return f
}

// Toggle returns the flags after a click on flag. With next = !f[flag]:
//   - listPage sets the whole list group (every flag but the edit modes) to next
//   - enabling modalEdit clears pageEdit, and the other way round
//   - anything else flips alone, and turning a list-group flag on forces listPage on
//
// Disabling an edit mode never touches the other one, so both may end up off.
func (f Flags) Toggle(flag Flag) Flags {
	next := !f.Get(flag)

	switch {
	case flag == ListPage:
		for _, k := range AllFlags {
			if !k.IsEditMode() {
				f = f.Set(k, next)
			}
		}
	case flag == ModalEdit && next:
		f.ModalEdit = true
		f.PageEdit = false
	case flag == PageEdit && next:
		f.PageEdit = true
		f.ModalEdit = false
	default:
		f = f.Set(flag, next)
		if !flag.IsEditMode() && next {
			f.ListPage = true
		}
	}

	return f
}

// Enabled lists the flags that are on, in display order
func (f Flags) Enabled() []Flag {
	var out []Flag

	for _, k := range AllFlags {
		if f.Get(k) {
			out = append(out, k)
		}
	}

	return out
}
