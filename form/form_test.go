package form

import (
	"errors"
	"os"
	"testing"

	"anchor-studio/codec"
	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadVault(t *testing.T) *idl.Schema {
	t.Helper()
	data, err := os.ReadFile("../idl/testdata/vault.json")
	require.NoError(t, err)
	s, err := idl.Parse(data)
	require.NoError(t, err)
	return s
}

func TestBuild_Kinds(t *testing.T) {
	s := loadVault(t)
	f, err := NewInstructionForm(s, "set_config")
	require.NoError(t, err)
	require.Len(t, f.Args, 2)

	cfg := f.Arg("config")
	require.NotNil(t, cfg)
	assert.Equal(t, KindStruct, cfg.Kind)
	assert.Equal(t, idl.Defined{Name: "Config"}, cfg.Type)

	tests := []struct {
		field string
		kind  Kind
		path  string
	}{
		{"fee", KindInteger, "config.fee"},
		{"admins", KindVec, "config.admins"},
		{"seed", KindArray, "config.seed"},
		{"limit", KindOption, "config.limit"},
	}
	for _, tt := range tests {
		c := cfg.Field(tt.field)
		require.NotNil(t, c, tt.field)
		assert.Equal(t, tt.kind, c.Kind, tt.field)
		assert.Equal(t, tt.path, c.Path, tt.field)
	}
	assert.Len(t, cfg.Field("seed").Items, 4)
	assert.Equal(t, "config.seed[3]", cfg.Field("seed").Items[3].Path)
	assert.Nil(t, cfg.Field("limit").Inner)

	mode := f.Arg("mode")
	assert.Equal(t, KindEnum, mode.Kind)
	assert.Equal(t, []string{"Open", "Locked", "Custom"}, mode.VariantNames())
	assert.Equal(t, "", mode.SelectedVariant())

	// aliases resolve to their target shape
	vault, err := Build(s, "balance", idl.Defined{Name: "Lamports"})
	require.NoError(t, err)
	assert.Equal(t, KindInteger, vault.Kind)
	assert.Equal(t, idl.U64, vault.Primitive)
}

func TestBuild_Errors(t *testing.T) {
	s := loadVault(t)
	_, err := Build(s, "x", idl.Defined{Name: "Missing"})
	assert.True(t, idl.IsSchemaError(err))

	_, err = Build(s, "x", idl.Primitive("u256"))
	assert.ErrorIs(t, err, idl.ErrUnknownType)

	_, err = NewInstructionForm(s, "nope")
	assert.ErrorIs(t, err, idl.ErrNotFound)

	_, err = Build(s, "x", idl.Array{Elem: idl.U8, Len: 1 << 40})
	assert.ErrorIs(t, err, idl.ErrUnsupportedType)

	square := idl.Array{Elem: idl.Array{Elem: idl.U8, Len: idl.MaxArrayLen}, Len: idl.MaxArrayLen}
	_, err = Build(s, "x", square)
	assert.ErrorIs(t, err, idl.ErrUnsupportedType)

	c, err := Build(s, "x", idl.Array{Elem: idl.Pubkey, Len: 64})
	require.NoError(t, err)
	assert.Len(t, c.Items, 64)
}

func TestScalarValidation(t *testing.T) {
	s := loadVault(t)
	pk := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name string
		typ  idl.Primitive
		text string
		want any
		err  error
	}{
		{"u8 max", idl.U8, "255", uint8(255), nil},
		{"u8 overflow", idl.U8, "256", nil, ErrOutOfRange},
		{"u8 negative", idl.U8, "-1", nil, ErrOutOfRange},
		{"i8 min", idl.I8, "-128", int8(-128), nil},
		{"u64 underscores", idl.U64, "1_000_000", uint64(1000000), nil},
		{"i64 garbage", idl.I64, "12abc", nil, ErrInvalid},
		{"u16 empty", idl.U16, "  ", nil, ErrRequired},
		{"f32", idl.F32, "1.5", float32(1.5), nil},
		{"f32 overflow", idl.F32, "1e40", nil, ErrOutOfRange},
		{"f64 garbage", idl.F64, "one", nil, ErrInvalid},
		{"string empty", idl.String, "", "", nil},
		{"pubkey", idl.Pubkey, pk, pk, nil},
		{"pubkey short", idl.Pubkey, "abc", nil, ErrInvalid},
		{"pubkey not base58", idl.Pubkey, "0OIl", nil, ErrInvalid},
		{"pubkey empty", idl.Pubkey, "", nil, ErrRequired},
		{"bytes hex", idl.Bytes, "0x0102", []byte{1, 2}, nil},
		{"bytes base64", idl.Bytes, "AQI=", []byte{1, 2}, nil},
		{"bytes bad", idl.Bytes, "0xzz", nil, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Build(s, "v", tt.typ)
			require.NoError(t, err)
			err = c.SetText(tt.text)
			got, verr := c.Value()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.ErrorIs(t, verr, tt.err)
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "v", ve.Path)
				return
			}
			require.NoError(t, err)
			require.NoError(t, verr)
			assert.Equal(t, tt.want, got)
		})
	}

	u128, err := Build(s, "v", idl.U128)
	require.NoError(t, err)
	require.NoError(t, u128.SetText("340282366920938463463374607431768211455"))
	v, err := u128.Value()
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", v.(interface{ String() string }).String())
	assert.ErrorIs(t, u128.SetText("340282366920938463463374607431768211456"), ErrOutOfRange)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	s := loadVault(t)
	f, err := NewInstructionForm(s, "set_config")
	require.NoError(t, err)

	cfg := f.Arg("config")
	assert.ErrorIs(t, cfg.Field("fee").SetText("70000"), ErrOutOfRange)
	_, err = cfg.Field("admins").AddItem()
	require.NoError(t, err)

	err = f.Validate()
	require.Error(t, err)
	paths := map[string]error{}
	for _, ve := range ValidationErrors(err) {
		paths[ve.Path] = ve.Err
	}
	assert.Equal(t, ErrOutOfRange, paths["config.fee"])
	assert.Equal(t, ErrRequired, paths["config.admins[0]"])
	assert.Equal(t, ErrRequired, paths["config.seed[0]"])
	assert.Equal(t, ErrNoVariant, paths["mode"])
	assert.Equal(t, ErrRequired, paths["accounts.vault"])
	assert.Equal(t, ErrRequired, paths["accounts.authority"])
	assert.NotContains(t, paths, "config.limit")

	_, err = f.Values()
	assert.Error(t, err)
}

func TestVecAndArrayRows(t *testing.T) {
	s := loadVault(t)
	c, err := Build(s, "tags", idl.Vec{Elem: idl.Vec{Elem: idl.U8}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.AddItem()
		require.NoError(t, err)
	}
	_, err = c.Items[2].AddItem()
	require.NoError(t, err)
	assert.Equal(t, "tags[2][0]", c.Items[2].Items[0].Path)

	require.NoError(t, c.RemoveItem(0))
	require.Len(t, c.Items, 2)
	assert.Equal(t, "tags[1]", c.Items[1].Path)
	assert.Equal(t, "[1]", c.Items[1].Label)
	assert.Equal(t, "tags[1][0]", c.Items[1].Items[0].Path)
	assert.ErrorIs(t, c.RemoveItem(5), ErrOutOfRange)

	require.NoError(t, c.Resize(0))
	v, err := c.Value()
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	arr, err := Build(s, "seed", idl.Array{Elem: idl.U8, Len: 2})
	require.NoError(t, err)
	_, err = arr.AddItem()
	assert.ErrorIs(t, err, ErrFixedLength)
	assert.ErrorIs(t, arr.RemoveItem(0), ErrFixedLength)
	assert.ErrorIs(t, arr.Resize(3), ErrFixedLength)
	assert.NoError(t, arr.Resize(2))
}

func TestEnumSelection(t *testing.T) {
	s := loadVault(t)
	c, err := Build(s, "mode", idl.Defined{Name: "Mode"})
	require.NoError(t, err)

	require.NoError(t, c.SelectVariant("Locked"))
	require.Len(t, c.Variant, 1)
	assert.Equal(t, "mode.until", c.Variant[0].Path)
	require.NoError(t, c.Field("until").SetText("-5"))
	v, err := c.Value()
	require.NoError(t, err)
	assert.Equal(t, codec.EnumValue{Variant: "Locked", Fields: codec.Fields{"until": int64(-5)}}, v)

	// switching variants swaps the sub-form
	require.NoError(t, c.SelectVariant("Open"))
	assert.Empty(t, c.Variant)
	v, err = c.Value()
	require.NoError(t, err)
	assert.Equal(t, codec.EnumValue{Variant: "Open"}, v)

	var ve *ValidationError
	require.True(t, errors.As(c.SelectVariant("Closed"), &ve))
	assert.ErrorIs(t, ve, ErrInvalid)
}

func TestValue_RoundTripsThroughCodec(t *testing.T) {
	s := loadVault(t)
	admin := solana.NewWallet().PublicKey().String()

	cfg, err := Build(s, "config", idl.Defined{Name: "Config"})
	require.NoError(t, err)
	require.NoError(t, cfg.SetValue(map[string]any{
		"fee":    12,
		"admins": []any{admin},
		"seed":   []any{1, 2, 3, 4},
		"limit":  nil,
	}))

	v, err := cfg.Value()
	require.NoError(t, err)
	data, err := codec.EncodeValue(s, cfg.Type, v)
	require.NoError(t, err)
	decoded, err := codec.DecodeValue(s, cfg.Type, data)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	mode, err := Build(s, "mode", idl.Defined{Name: "Mode"})
	require.NoError(t, err)
	require.NoError(t, mode.SetValue(map[string]any{"custom": []any{7, "x"}}))
	v, err = mode.Value()
	require.NoError(t, err)
	data, err = codec.EncodeValue(s, mode.Type, v)
	require.NoError(t, err)
	decoded, err = codec.DecodeValue(s, mode.Type, data)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestSetValue_FromDecoded(t *testing.T) {
	s := loadVault(t)
	c, err := Build(s, "mode", idl.Defined{Name: "Mode"})
	require.NoError(t, err)

	require.NoError(t, c.SetValue(codec.EnumValue{Variant: "Locked", Fields: codec.Fields{"until": int64(9)}}))
	assert.Equal(t, "9", c.Field("until").Text)

	require.NoError(t, c.SetValue(map[string]any{"variant": "Custom", "fields": map[string]any{"0": 1, "1": "a"}}))
	assert.Equal(t, "Custom", c.SelectedVariant())

	assert.Error(t, c.SetValue(map[string]any{"Open": nil, "Locked": nil}))
	assert.Error(t, c.SetValue(42))

	arr, err := Build(s, "seed", idl.Array{Elem: idl.U8, Len: 2})
	require.NoError(t, err)
	assert.ErrorIs(t, arr.SetValue([]any{1}), ErrFixedLength)
}

func TestImportJSON(t *testing.T) {
	s := loadVault(t)
	f, err := NewInstructionForm(s, "set_config")
	require.NoError(t, err)

	vault := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()
	err = f.ImportJSON([]byte(`{
		"args": {
			"config": {
				"fee": 300,
				"admins": [],
				"seed": [1, 2, 3, 4],
				"limit": 340282366920938463463374607431768211455
			},
			"mode": {"Locked": {"until": 1700000000}}
		},
		"accounts": {"vault": "` + vault.String() + `", "authority": "` + authority.String() + `"}
	}`))
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	args, err := f.Values()
	require.NoError(t, err)
	data, err := codec.EncodeInstruction(s, "set_config", args)
	require.NoError(t, err)
	decoded, err := codec.DecodeInstruction(s, data)
	require.NoError(t, err)
	assert.Equal(t, "set_config", decoded.Name)

	keys, err := f.AccountKeys()
	require.NoError(t, err)
	assert.Equal(t, map[string]solana.PublicKey{"vault": vault, "authority": authority}, keys)

	// a bare object is read as the arguments
	f, err = NewInstructionForm(s, "deposit")
	require.NoError(t, err)
	require.NoError(t, f.ImportJSON([]byte(`{"amount": 5, "memo": "hi"}`)))
	args = f.PartialValues()
	assert.Equal(t, uint64(5), args["amount"])
	assert.Equal(t, "hi", args["memo"])

	assert.Error(t, f.ImportJSON([]byte(`{"nope": 1}`)))
	assert.Error(t, f.ImportJSON([]byte(`{`)))
}

func TestInstructionForm_Accounts(t *testing.T) {
	s := loadVault(t)
	f, err := NewInstructionForm(s, "deposit")
	require.NoError(t, err)

	key := solana.NewWallet().PublicKey()
	assert.True(t, f.Prefill("authority", key, "wallet"))
	assert.Equal(t, "wallet", f.Account("authority").Source)

	require.NoError(t, f.SetAccount("vault", key.String()))
	assert.False(t, f.Prefill("vault", solana.NewWallet().PublicKey(), "pda"))
	assert.ErrorIs(t, f.SetAccount("event_authority", "xyz"), ErrInvalid)
	assert.Error(t, f.SetAccount("missing", key.String()))

	partial := f.PartialAccountKeys()
	assert.Equal(t, key, partial["vault"])
	assert.Equal(t, key, partial["authority"])
	assert.NotContains(t, partial, "event_authority")

	// referrer is optional and may stay empty
	require.NoError(t, f.SetAccount("event_authority", key.String()))
	require.NoError(t, f.SetAccount("program", key.String()))
	keys, err := f.AccountKeys()
	require.NoError(t, err)
	assert.NotContains(t, keys, "referrer")
	assert.Len(t, keys, 4)
}

type scriptedAsker struct {
	answers []any
	asked   []string
}

func (a *scriptedAsker) next(msg string) any {
	a.asked = append(a.asked, msg)
	if len(a.answers) == 0 {
		panic("no answer for " + msg)
	}
	v := a.answers[0]
	a.answers = a.answers[1:]
	return v
}

func (a *scriptedAsker) Input(message, _, _ string, validate func(string) error) (string, error) {
	s := a.next(message).(string)
	if validate != nil {
		if err := validate(s); err != nil {
			return "", err
		}
	}
	return s, nil
}

func (a *scriptedAsker) Confirm(message string, _ bool) (bool, error) {
	return a.next(message).(bool), nil
}

func (a *scriptedAsker) Select(message string, _ []string, _ string) (string, error) {
	return a.next(message).(string), nil
}

func TestFillInstruction(t *testing.T) {
	s := loadVault(t)
	f, err := NewInstructionForm(s, "set_config")
	require.NoError(t, err)
	vault := solana.NewWallet().PublicKey()
	wallet := solana.NewWallet().PublicKey()
	f.Prefill("authority", wallet, "wallet")

	asker := &scriptedAsker{answers: []any{
		// config
		"25",
		"1",
		wallet.String(),
		"9", "8", "7", "6",
		true,
		"1000",
		// mode
		"Custom",
		"3",
		"tag",
		// accounts; authority was prefilled
		vault.String(),
	}}
	require.NoError(t, FillInstruction(f, asker))
	assert.Empty(t, asker.answers)

	args, err := f.Values()
	require.NoError(t, err)
	cfg := args["config"].(codec.Fields)
	assert.Equal(t, uint16(25), cfg["fee"])
	assert.Equal(t, []any{wallet.String()}, cfg["admins"])
	assert.Equal(t, []any{uint8(9), uint8(8), uint8(7), uint8(6)}, cfg["seed"])
	assert.Equal(t, codec.EnumValue{Variant: "Custom", Fields: codec.Fields{"0": uint8(3), "1": "tag"}}, args["mode"])

	keys, err := f.AccountKeys()
	require.NoError(t, err)
	assert.Equal(t, vault, keys["vault"])
	assert.Equal(t, wallet, keys["authority"])
}

func TestFill_RejectsInvalidAnswer(t *testing.T) {
	s := loadVault(t)
	c, err := Build(s, "fee", idl.U16)
	require.NoError(t, err)

	err = Fill(c, &scriptedAsker{answers: []any{"99999"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 65535")
	assert.Equal(t, "", c.Text)
}
