package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Upstream payloads mix quoted and native JSON numbers for the same field.
// The types below accept either form so the rest of the pipeline sees one type.

// Amount is a currency value. Unparseable input decodes to zero.
type Amount struct {
	d   decimal.Decimal
	set bool
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d, set: true}
}

// AmountFromFloat is a convenience for tests and payload builders.
func AmountFromFloat(f float64) Amount {
	return NewAmount(decimal.NewFromFloat(f))
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

// IsSet reports whether the field was present and non-null in the payload.
func (a Amount) IsSet() bool { return a.set }

func (a *Amount) UnmarshalJSON(raw []byte) error {
	a.d, a.set = parseAmount(raw)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

func parseAmount(raw []byte) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, true
		}
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			return d, true
		}
		return decimal.Zero, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, true
	}
	return d, true
}

// Int is an integer that may arrive as a number or a numeric string.
type Int struct {
	v   int
	set bool
}

func NewInt(v int) Int { return Int{v: v, set: true} }

func (i Int) IsSet() bool { return i.set }

// Or returns the value, or def when the field was absent or unparseable.
func (i Int) Or(def int) int {
	if !i.set {
		return def
	}
	return i.v
}

func (i *Int) UnmarshalJSON(raw []byte) error {
	*i = Int{}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if v, err := strconv.Atoi(s); err == nil {
		*i = Int{v: v, set: true}
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*i = Int{v: int(f), set: true}
	}
	return nil
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(i.v)), nil
}

// ID is an opaque identifier that the backend sometimes emits as a number.
type ID string

func (id *ID) UnmarshalJSON(raw []byte) error {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		*id = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		*id = ID(str)
	default:
		*id = ID(s)
	}
	return nil
}

func (id ID) String() string { return string(id) }

// stringifyKeys rewrites number and boolean values under keys as JSON
// strings, so text fields decode whatever scalar the backend sent.
func stringifyKeys(raw []byte, keys ...string) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}

	changed := false
	for _, k := range keys {
		v := bytes.TrimSpace(obj[k])
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		switch v[0] {
		case '"', '{', '[':
			continue
		}
		quoted, err := json.Marshal(string(v))
		if err != nil {
			return nil, err
		}
		obj[k] = quoted
		changed = true
	}
	if !changed {
		return raw, nil
	}
	return json.Marshal(obj)
}
