package table

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"anchor-studio/codec"
	"anchor-studio/idl"
)

// DefaultPageSize is used when a table is created with a page size below 1.
const DefaultPageSize = 10

// Row is one decoded account. A row whose data failed to decode keeps its
// address and carries Err instead of values.
type Row struct {
	Address string
	Values  codec.Fields
	Err     error

	cells []string
}

// RawAccount is undecoded account data.
type RawAccount struct {
	Address string
	Data    []byte
}

// SortKey orders rows by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Table holds rows with their own filter, sort and page state. The row set
// is fixed at construction; paging and filtering never refetch.
type Table struct {
	Columns []Column

	rows     []*Row
	view     []*Row
	filter   string
	sorts    []SortKey
	pageSize int
	page     int
}

// New formats every row once and returns a table showing the first page.
func New(columns []Column, rows []Row, pageSize int) *Table {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	t := &Table{Columns: columns, pageSize: pageSize}
	t.rows = make([]*Row, len(rows))
	for i := range rows {
		r := rows[i]
		r.cells = make([]string, len(columns))
		for j, col := range columns {
			switch {
			case col.ID == AddressColumn:
				r.cells[j] = r.Address
			case r.Err != nil:
			default:
				r.cells[j] = FormatCell(r.Values[col.ID], col.Type)
			}
		}
		t.rows[i] = &r
	}
	t.refresh()
	return t
}

// DecodeAccounts decodes each account as the given kind. A row that fails
// to decode carries its error; only a schema problem fails the whole call.
func DecodeAccounts(s *idl.Schema, kind string, accounts []RawAccount, pageSize int) (*Table, error) {
	fields, err := s.AccountFields(kind)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(accounts))
	for i, acc := range accounts {
		rows[i].Address = acc.Address
		values, err := codec.DecodeAccountAs(s, kind, acc.Data)
		if err != nil {
			rows[i].Err = err
			continue
		}
		rows[i].Values = values
	}
	return New(resolveAliases(s, BuildColumns(fields)), rows, pageSize), nil
}

// resolveAliases gives alias-typed columns their primitive type so they
// format and sort like it.
func resolveAliases(s *idl.Schema, cols []Column) []Column {
	for i, c := range cols {
		if _, ok := c.Type.(idl.Defined); !ok {
			continue
		}
		if p, err := s.Resolve(c.Type); err == nil {
			if prim, ok := p.(idl.Primitive); ok {
				cols[i].Type = prim
			}
		}
	}
	return cols
}

// Len is the number of rows passing the filter.
func (t *Table) Len() int { return len(t.view) }

// Total is the number of rows regardless of the filter.
func (t *Table) Total() int { return len(t.rows) }

// Cell returns the formatted text of a row in the named column.
func (t *Table) Cell(r *Row, column string) string {
	i := t.columnIndex(column)
	if i < 0 || r.cells == nil {
		return ""
	}
	return r.cells[i]
}

func (t *Table) columnIndex(id string) int {
	for i, c := range t.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// SetFilter keeps only rows where some formatted cell contains query,
// ignoring case. An empty query shows every row. The page resets to the
// first one.
func (t *Table) SetFilter(query string) {
	t.filter = strings.ToLower(strings.TrimSpace(query))
	t.page = 0
	t.refresh()
}

// Filter returns the current filter query.
func (t *Table) Filter() string { return t.filter }

// SortBy orders rows by the given keys, the first key taking precedence.
// Ties keep their original order. No keys restores the original order.
func (t *Table) SortBy(keys ...SortKey) error {
	for _, k := range keys {
		if t.columnIndex(k.Column) < 0 {
			return fmt.Errorf("no column %q", k.Column)
		}
	}
	t.sorts = append(t.sorts[:0], keys...)
	t.refresh()
	return nil
}

// Sorts returns the active sort keys.
func (t *Table) Sorts() []SortKey { return append([]SortKey(nil), t.sorts...) }

func (t *Table) refresh() {
	t.view = t.view[:0]
	for _, r := range t.rows {
		if t.matches(r) {
			t.view = append(t.view, r)
		}
	}
	if len(t.sorts) > 0 {
		sort.SliceStable(t.view, func(i, j int) bool {
			return t.less(t.view[i], t.view[j])
		})
	}
	t.clampPage()
}

func (t *Table) matches(r *Row) bool {
	if t.filter == "" {
		return true
	}
	for _, c := range r.cells {
		if strings.Contains(strings.ToLower(c), t.filter) {
			return true
		}
	}
	return false
}

func (t *Table) less(a, b *Row) bool {
	for _, k := range t.sorts {
		i := t.columnIndex(k.Column)
		c := compareCells(t.Columns[i], a.cells[i], b.cells[i])
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// compareCells orders integer columns numerically and everything else by
// text. Empty cells, from rows that failed to decode, sort first.
func compareCells(col Column, a, b string) int {
	if a == "" || b == "" {
		return strings.Compare(a, b)
	}
	if p, ok := col.Type.(idl.Primitive); ok && p.IsInteger() {
		x, okA := new(big.Int).SetString(a, 10)
		y, okB := new(big.Int).SetString(b, 10)
		if okA && okB {
			return x.Cmp(y)
		}
	}
	return strings.Compare(a, b)
}

// SetPageSize changes the number of rows per page and goes to the first
// page.
func (t *Table) SetPageSize(n int) {
	if n < 1 {
		n = DefaultPageSize
	}
	t.pageSize = n
	t.page = 0
}

// PageSize returns the rows per page.
func (t *Table) PageSize() int { return t.pageSize }

// PageCount is the number of pages, at least one.
func (t *Table) PageCount() int {
	if len(t.view) == 0 {
		return 1
	}
	return (len(t.view) + t.pageSize - 1) / t.pageSize
}

// PageIndex returns the zero-based current page.
func (t *Table) PageIndex() int { return t.page }

// SetPage moves to page i, clamped to the valid range.
func (t *Table) SetPage(i int) {
	t.page = i
	t.clampPage()
}

func (t *Table) clampPage() {
	if last := t.PageCount() - 1; t.page > last {
		t.page = last
	}
	if t.page < 0 {
		t.page = 0
	}
}

// NextPage advances one page and reports whether it moved.
func (t *Table) NextPage() bool {
	if t.page+1 >= t.PageCount() {
		return false
	}
	t.page++
	return true
}

// PrevPage goes back one page and reports whether it moved.
func (t *Table) PrevPage() bool {
	if t.page == 0 {
		return false
	}
	t.page--
	return true
}

// Page returns the rows of the current page.
func (t *Table) Page() []*Row {
	start := t.page * t.pageSize
	if start >= len(t.view) {
		return nil
	}
	end := min(start+t.pageSize, len(t.view))
	return t.view[start:end]
}

// Rows returns every row passing the filter, in display order.
func (t *Table) Rows() []*Row { return t.view }
