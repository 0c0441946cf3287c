package table

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
)

// AddressColumn is the id of the leading identity column.
const AddressColumn = "address"

// Column describes one table column. Type is nil for the address column.
type Column struct {
	ID     string
	Header string
	Type   idl.TypeRef
}

// IsPubkey reports whether cells of the column hold base58 addresses.
func (c Column) IsPubkey() bool {
	return c.Type == nil || c.Type == idl.Pubkey
}

// BuildColumns returns the address column followed by one column per field.
func BuildColumns(fields []idl.Field) []Column {
	cols := make([]Column, 0, len(fields)+1)
	cols = append(cols, Column{ID: AddressColumn, Header: "Address"})
	for _, f := range fields {
		cols = append(cols, Column{ID: f.Name, Header: headerName(f.Name), Type: f.Type})
	}
	return cols
}

func headerName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// FormatCell renders a decoded value as text. Pubkeys are rendered in
// full, integers in decimal, bools as Yes/No and bytes as base64; strings
// are shown as is and every other value as JSON.
func FormatCell(v any, t idl.TypeRef) string {
	if p, ok := t.(idl.Primitive); ok {
		switch {
		case p == idl.Pubkey:
			return pubkeyText(v)
		case p.IsInteger():
			if v == nil {
				return "0"
			}
			return integerText(v)
		case p == idl.Bool:
			if b, _ := v.(bool); b {
				return "Yes"
			}
			return "No"
		case p == idl.Bytes:
			if b, ok := v.([]byte); ok {
				return base64.StdEncoding.EncodeToString(b)
			}
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return jsonText(v)
}

func pubkeyText(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case solana.PublicKey:
		return k.String()
	case []byte:
		return solana.PublicKeyFromBytes(k).String()
	}
	return fmt.Sprint(v)
}

func integerText(v any) string {
	switch n := v.(type) {
	case *big.Int:
		return n.String()
	case json.Number:
		return n.String()
	}
	return fmt.Sprint(v)
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Shorten abbreviates an address to its first and last four characters.
func Shorten(addr string) string {
	if utf8.RuneCountInString(addr) <= 11 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

// clip cuts text to at most width runes, marking the cut with an ellipsis.
func clip(text string, width int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if width <= 0 || utf8.RuneCountInString(text) <= width {
		return text
	}
	runes := []rune(text)
	return string(runes[:width-1]) + "…"
}
