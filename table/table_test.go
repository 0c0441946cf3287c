package table

import (
	"errors"
	"math/big"
	"os"
	"strings"
	"testing"

	"anchor-studio/codec"
	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"
	keyB = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	keyC = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func loadVault(t *testing.T) *idl.Schema {
	t.Helper()
	data, err := os.ReadFile("../idl/testdata/vault.json")
	require.NoError(t, err)
	s, err := idl.Parse(data)
	require.NoError(t, err)
	return s
}

func TestBuildColumns(t *testing.T) {
	cols := BuildColumns([]idl.Field{
		{Name: "authority", Type: idl.Pubkey},
		{Name: "balance", Type: idl.U64},
	})
	require.Len(t, cols, 3)
	assert.Equal(t, AddressColumn, cols[0].ID)
	assert.True(t, cols[0].IsPubkey())
	assert.Equal(t, "Authority", cols[1].Header)
	assert.True(t, cols[1].IsPubkey())
	assert.Equal(t, "Balance", cols[2].Header)
	assert.False(t, cols[2].IsPubkey())
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   idl.TypeRef
		want  string
	}{
		{"pubkey string", keyA, idl.Pubkey, keyA},
		{"pubkey value", solana.MustPublicKeyFromBase58(keyB), idl.Pubkey, keyB},
		{"nil pubkey", nil, idl.Pubkey, ""},
		{"u64", uint64(18446744073709551615), idl.U64, "18446744073709551615"},
		{"i32", int32(-7), idl.I32, "-7"},
		{"u128", new(big.Int).Lsh(big.NewInt(1), 100), idl.U128, "1267650600228229401496703205376"},
		{"missing integer", nil, idl.U8, "0"},
		{"true", true, idl.Bool, "Yes"},
		{"false", false, idl.Bool, "No"},
		{"string", "hello", idl.String, "hello"},
		{"vec", []any{uint8(1), uint8(2)}, idl.Vec{Elem: idl.U8}, "[1,2]"},
		{"none", nil, idl.Option{Elem: idl.U8}, "null"},
		{"struct", codec.Fields{"b": true, "a": uint16(3)}, idl.Defined{Name: "Config"}, `{"a":3,"b":true}`},
		{"enum", codec.EnumValue{Variant: "Open"}, idl.Defined{Name: "Mode"}, `{"variant":"Open"}`},
		{"bytes", []byte{1, 2, 3}, idl.Bytes, "AQID"},
		{"decoded bytes", "AQID", idl.Bytes, "AQID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCell(tt.value, tt.typ))
		})
	}
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "Fg6P…sLnS", Shorten(keyA))
	assert.Equal(t, "short", Shorten("short"))
}

func sampleTable(pageSize int) *Table {
	cols := BuildColumns([]idl.Field{
		{Name: "owner", Type: idl.Pubkey},
		{Name: "amount", Type: idl.U64},
		{Name: "active", Type: idl.Bool},
	})
	rows := []Row{
		{Address: "addr1", Values: codec.Fields{"owner": keyA, "amount": uint64(700), "active": true}},
		{Address: "addr2", Values: codec.Fields{"owner": keyB, "amount": uint64(5000), "active": false}},
		{Address: "addr3", Values: codec.Fields{"owner": keyA, "amount": uint64(700), "active": false}},
		{Address: "addr4", Err: errors.New("truncated")},
		{Address: "addr5", Values: codec.Fields{"owner": keyC, "amount": uint64(90), "active": true}},
	}
	return New(cols, rows, pageSize)
}

func addresses(rows []*Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Address
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"addr1", "addr2", "addr3", "addr4", "addr5"}},
		{"yes", []string{"addr1", "addr5"}},
		{"YES", []string{"addr1", "addr5"}},
		{"fg6p", []string{"addr1", "addr3"}},
		{"5000", []string{"addr2"}},
		{"addr4", []string{"addr4"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			tbl := sampleTable(10)
			tbl.SetFilter(tt.query)
			assert.Equal(t, tt.want, addresses(tbl.Rows()))
			assert.Equal(t, 5, tbl.Total())
		})
	}
}

func TestFilter_MatchesFormattedValue(t *testing.T) {
	tbl := sampleTable(10)
	// raw bools are never searched, only their Yes/No rendering
	tbl.SetFilter("true")
	assert.Equal(t, 0, tbl.Len())
	tbl.SetFilter("no")
	assert.Equal(t, []string{"addr2", "addr3"}, addresses(tbl.Rows()))
}

func TestSortBy(t *testing.T) {
	tbl := sampleTable(10)

	require.NoError(t, tbl.SortBy(SortKey{Column: "amount"}))
	assert.Equal(t, []string{"addr4", "addr5", "addr1", "addr3", "addr2"}, addresses(tbl.Rows()))

	require.NoError(t, tbl.SortBy(SortKey{Column: "amount", Desc: true}))
	assert.Equal(t, []string{"addr2", "addr1", "addr3", "addr5", "addr4"}, addresses(tbl.Rows()))

	require.NoError(t, tbl.SortBy(SortKey{Column: "amount"}, SortKey{Column: "active", Desc: true}))
	assert.Equal(t, []string{"addr4", "addr5", "addr1", "addr3", "addr2"}, addresses(tbl.Rows()))

	require.NoError(t, tbl.SortBy(SortKey{Column: "active"}, SortKey{Column: "amount", Desc: true}))
	assert.Equal(t, []string{"addr4", "addr2", "addr3", "addr1", "addr5"}, addresses(tbl.Rows()))

	require.NoError(t, tbl.SortBy())
	assert.Equal(t, []string{"addr1", "addr2", "addr3", "addr4", "addr5"}, addresses(tbl.Rows()))

	assert.Error(t, tbl.SortBy(SortKey{Column: "missing"}))
}

func TestPagination(t *testing.T) {
	tbl := sampleTable(2)
	assert.Equal(t, 3, tbl.PageCount())
	assert.Equal(t, []string{"addr1", "addr2"}, addresses(tbl.Page()))

	assert.True(t, tbl.NextPage())
	assert.True(t, tbl.NextPage())
	assert.Equal(t, []string{"addr5"}, addresses(tbl.Page()))
	assert.False(t, tbl.NextPage())
	assert.Equal(t, 2, tbl.PageIndex())

	tbl.SetFilter("addr")
	assert.Equal(t, 0, tbl.PageIndex())

	tbl.SetPage(99)
	assert.Equal(t, 2, tbl.PageIndex())
	assert.True(t, tbl.PrevPage())
	assert.Equal(t, []string{"addr3", "addr4"}, addresses(tbl.Page()))

	tbl.SetFilter("yes")
	assert.Equal(t, 1, tbl.PageCount())
	tbl.SetFilter("nothing")
	assert.Equal(t, 1, tbl.PageCount())
	assert.Empty(t, tbl.Page())
	assert.False(t, tbl.PrevPage())

	tbl.SetFilter("")
	tbl.SetPageSize(0)
	assert.Equal(t, DefaultPageSize, tbl.PageSize())
	assert.Len(t, tbl.Page(), 5)
}

func TestTables_KeepOwnState(t *testing.T) {
	a, b := sampleTable(2), sampleTable(2)
	a.SetFilter("yes")
	a.NextPage()
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 0, b.PageIndex())
}

func TestDecodeAccounts(t *testing.T) {
	s := loadVault(t)
	good := func(balance uint64) []byte {
		data, err := codec.EncodeAccount(s, "Vault", codec.Fields{
			"authority": keyA,
			"balance":   balance,
			"bump":      uint8(255),
			"mode":      codec.EnumValue{Variant: "Locked", Fields: codec.Fields{"until": int64(99)}},
			"history":   []any{int64(1)},
		})
		require.NoError(t, err)
		return data
	}

	tbl, err := DecodeAccounts(s, "Vault", []RawAccount{
		{Address: keyB, Data: good(5000)},
		{Address: keyC, Data: []byte{1, 2, 3}},
		{Address: keyA, Data: good(700)},
	}, 10)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	rows := tbl.Rows()
	assert.NoError(t, rows[0].Err)
	assert.Equal(t, "5000", tbl.Cell(rows[0], "balance"))
	assert.Equal(t, `{"variant":"Locked","fields":{"until":99}}`, tbl.Cell(rows[0], "mode"))
	assert.Equal(t, "[1]", tbl.Cell(rows[0], "history"))
	assert.Error(t, rows[1].Err)
	assert.Equal(t, keyC, tbl.Cell(rows[1], AddressColumn))
	assert.Equal(t, "", tbl.Cell(rows[1], "balance"))

	// alias columns sort numerically
	require.NoError(t, tbl.SortBy(SortKey{Column: "balance", Desc: true}))
	assert.Equal(t, []string{keyB, keyA, keyC}, addresses(tbl.Rows()))

	_, err = DecodeAccounts(s, "Nope", nil, 10)
	assert.True(t, idl.IsSchemaError(err))
}

func TestRender(t *testing.T) {
	tbl := sampleTable(2)
	tbl.SetPage(1)
	out := tbl.Render(Options{})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "Address")
	assert.Contains(t, lines[0], "Amount")
	assert.Contains(t, lines[2], "Fg6P…sLnS")
	assert.Contains(t, lines[2], "700")
	assert.Contains(t, lines[3], "decode error: truncated")
	assert.Contains(t, lines[4], "Page 2 of 3")

	full := tbl.Render(Options{FullAddresses: true})
	assert.Contains(t, full, keyA)
}
