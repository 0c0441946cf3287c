package idl

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *Schema {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	s, err := Parse(data)
	require.NoError(t, err)
	return s
}

func TestParse_Modern(t *testing.T) {
	s := loadFixture(t, "vault.json")

	assert.Equal(t, "vault", s.Name)
	assert.Equal(t, "0.1.0", s.Version)
	assert.Equal(t, "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS", s.Address)
	require.Len(t, s.Instructions, 3)

	ix, ok := s.Instruction("deposit")
	require.True(t, ok)
	assert.Equal(t, []string{"amount", "memo"}, FieldNames(ix.Args))
	assert.Equal(t, Option{Elem: String}, ix.Args[1].Type)

	// composite group is flattened in place
	require.Len(t, ix.Accounts, 5)
	names := make([]string, len(ix.Accounts))
	for i, a := range ix.Accounts {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"vault", "authority", "referrer", "event_authority", "program"}, names)
	assert.True(t, ix.Accounts[0].IsMut)
	assert.True(t, ix.Accounts[1].IsSigner)
	assert.True(t, ix.Accounts[2].IsOptional)

	init, ok := s.Instruction("initialize")
	require.True(t, ok)
	require.NotNil(t, init.Accounts[0].PDA)
	assert.Equal(t, SeedConst, init.Accounts[0].PDA.Seeds[0].Kind)
	assert.Equal(t, []byte("vault"), init.Accounts[0].PDA.Seeds[0].Value)
	assert.Equal(t, "authority", init.Accounts[0].PDA.Seeds[1].Path)
	assert.Equal(t, "11111111111111111111111111111111", init.Accounts[2].Address)

	ev, ok := s.Event("Deposited")
	require.True(t, ok)
	assert.Equal(t, []string{"vault", "amount"}, FieldNames(ev.Fields))

	fields, err := s.AccountFields("Vault")
	require.NoError(t, err)
	assert.Equal(t, []string{"authority", "balance", "bump", "mode", "history"}, FieldNames(fields))

	e, ok := s.ErrorByCode(6000)
	require.True(t, ok)
	assert.Equal(t, "Unauthorized", e.Name)
}

func TestParse_Legacy(t *testing.T) {
	s := loadFixture(t, "legacy.json")

	assert.Equal(t, "counter", s.Name)
	ix, ok := s.Instruction("updatePool")
	require.True(t, ok)
	assert.Equal(t, Pubkey, ix.Args[1].Type)
	assert.Equal(t, Vec{Elem: Defined{Name: "Tag"}}, ix.Args[2].Type)
	assert.True(t, ix.Accounts[1].IsOptional)
	assert.True(t, ix.Accounts[1].IsSigner)
	assert.False(t, ix.Accounts[1].IsMut)

	// camelCase names are hashed in snake_case
	assert.Equal(t, []byte{239, 214, 170, 78, 36, 35, 30, 34}, ix.Discriminator)

	acc, ok := s.Account("Pool")
	require.True(t, ok)
	assert.Equal(t, []byte{241, 154, 109, 4, 17, 177, 109, 188}, acc.Discriminator)
	fields, err := s.AccountFields("Pool")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "count"}, FieldNames(fields))

	ev, ok := s.Event("PoolUpdated")
	require.True(t, ok)
	assert.Equal(t, []byte{218, 43, 210, 231, 127, 214, 72, 245}, ev.Discriminator)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "syntax",
			doc:  `{"instructions": [`,
			want: ErrInvalidJSON,
		},
		{
			name: "unknown primitive",
			doc:  `{"instructions":[{"name":"a","accounts":[],"args":[{"name":"x","type":"u256"}]}]}`,
			want: ErrUnknownType,
		},
		{
			name: "dangling defined",
			doc:  `{"instructions":[{"name":"a","accounts":[],"args":[{"name":"x","type":{"defined":"Missing"}}]}]}`,
			want: ErrUnknownType,
		},
		{
			name: "direct cycle",
			doc: `{"types":[{"name":"Node","type":{"kind":"struct","fields":[
				{"name":"next","type":{"defined":"Node"}}]}}]}`,
			want: ErrCyclicType,
		},
		{
			name: "cycle through option and vec",
			doc: `{"types":[
				{"name":"A","type":{"kind":"struct","fields":[{"name":"b","type":{"option":{"defined":"B"}}}]}},
				{"name":"B","type":{"kind":"struct","fields":[{"name":"a","type":{"vec":{"defined":{"name":"A"}}}}]}}]}`,
			want: ErrCyclicType,
		},
		{
			name: "alias cycle",
			doc: `{"types":[
				{"name":"X","type":{"kind":"type","alias":{"defined":{"name":"Y"}}}},
				{"name":"Y","type":{"kind":"type","alias":{"defined":{"name":"X"}}}}]}`,
			want: ErrCyclicType,
		},
		{
			name: "event without layout",
			doc:  `{"events":[{"name":"Ghost","discriminator":[1,2,3,4,5,6,7,8]}]}`,
			want: ErrMissingDef,
		},
		{
			name: "duplicate type",
			doc: `{"types":[
				{"name":"T","type":{"kind":"struct","fields":[]}},
				{"name":"T","type":{"kind":"struct","fields":[]}}]}`,
			want: ErrDuplicate,
		},
		{
			name: "generic array length",
			doc:  `{"types":[{"name":"G","type":{"kind":"struct","fields":[{"name":"a","type":{"array":["u8",{"generic":"N"}]}}]}}]}`,
			want: ErrUnsupportedType,
		},
		{
			name: "oversized array",
			doc:  `{"instructions":[{"name":"big","accounts":[],"args":[{"name":"x","type":{"array":["u8",1099511627776]}}]}]}`,
			want: ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, IsSchemaError(err))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	s := loadFixture(t, "vault.json")

	rt, err := s.Resolve(Defined{Name: "Lamports"})
	require.NoError(t, err)
	assert.Equal(t, U64, rt)

	rt, err = s.Resolve(Defined{Name: "Config"})
	require.NoError(t, err)
	st, ok := rt.(*Struct)
	require.True(t, ok)
	assert.Equal(t, []string{"fee", "admins", "seed", "limit"}, FieldNames(st.Fields))
	assert.Equal(t, Array{Elem: U8, Len: 4}, st.Fields[2].Type)

	rt, err = s.Resolve(Defined{Name: "Mode"})
	require.NoError(t, err)
	en, ok := rt.(*Enum)
	require.True(t, ok)
	require.Len(t, en.Variants, 3)
	assert.Empty(t, en.Variants[0].Fields)
	assert.False(t, en.Variants[1].Tuple)
	assert.True(t, en.Variants[2].Tuple)
	assert.Equal(t, []string{"0", "1"}, FieldNames(en.Variants[2].Fields))
	_, idx, ok := en.Variant("Custom")
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 1, en.TagSize())

	// non-defined shapes pass through unchanged
	rt, err = s.Resolve(Vec{Elem: Defined{Name: "Mode"}})
	require.NoError(t, err)
	assert.Equal(t, Vec{Elem: Defined{Name: "Mode"}}, rt)

	_, err = s.Resolve(Defined{Name: "Nope"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, []byte{175, 175, 109, 31, 13, 152, 155, 237}, InstructionDiscriminator("initialize"))
	assert.Equal(t, []byte{108, 158, 154, 175, 212, 98, 52, 66}, InstructionDiscriminator("setConfig"))
	assert.Equal(t, []byte{111, 141, 26, 45, 161, 35, 100, 57}, ComputeDiscriminator(NamespaceEvent, "Deposited"))
	assert.Equal(t, []byte{211, 8, 232, 43, 2, 152, 117, 119}, ComputeDiscriminator(NamespaceAccount, "Vault"))
	assert.Equal(t, "e445a52e51cb9a1d", HexDiscriminator(EventCPITag))
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"initialize":    "initialize",
		"updatePool":    "update_pool",
		"SetConfig":     "set_config",
		"set_config":    "set_config",
		"withdrawV2":    "withdraw_v2",
		"parseHTTPBody": "parse_http_body",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestLookups(t *testing.T) {
	s := loadFixture(t, "vault.json")

	ix, ok := s.InstructionByDiscriminator([]byte{242, 35, 198, 137, 82, 225, 242, 182, 1, 2})
	require.True(t, ok)
	assert.Equal(t, "deposit", ix.Name)

	_, ok = s.InstructionByDiscriminator([]byte{0, 0, 0})
	assert.False(t, ok)

	acc, ok := s.AccountByDiscriminator([]byte{211, 8, 232, 43, 2, 152, 117, 119, 9})
	require.True(t, ok)
	assert.Equal(t, "Vault", acc.Name)

	ev, ok := s.EventByDiscriminator([]byte{111, 141, 26, 45, 161, 35, 100, 57})
	require.True(t, ok)
	assert.Equal(t, "Deposited", ev.Name)

	types := s.Types()
	require.Len(t, types, 5)
	assert.Equal(t, "Vault", types[0].Name)
	assert.Equal(t, KindAlias, types[4].Kind)

	_, err := s.AccountFields("Unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}
