package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// LooseString handles dynamically typed text fields: Odoo sends `false`
// for empty text, storefront plugins occasionally send null or numbers.
type LooseString string

// UnmarshalJSON accepts a string, null or a boolean.
func (os *LooseString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*os = LooseString(s)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*os = ""
		if b {
			*os = "true"
		}
		return nil
	}

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*os = ""
		return nil
	}

	// Anything else (numbers, objects) is schema drift in an optional field.
	*os = ""
	return nil
}

func (os LooseString) String() string {
	return string(os)
}

// LooseFloat decodes numeric fields that upstream systems send as numbers,
// numeric strings, null or false. Valid is false when no number could be read.
type LooseFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON never fails: unreadable values decode as invalid.
func (f *LooseFloat) UnmarshalJSON(data []byte) error {
	*f = LooseFloat{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = LooseFloat{Value: n, Valid: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*f = LooseFloat{Value: v, Valid: true}
		}
	}
	return nil
}

// Ptr returns nil for an invalid value.
func (f LooseFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// OrZero returns the value, or zero when invalid.
func (f LooseFloat) OrZero() float64 {
	if !f.Valid {
		return 0
	}
	return f.Value
}
