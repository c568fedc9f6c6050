package types

import "encoding/json"

// NullableString represents a string that may be absent.
// An empty string with Valid=true is present, unlike a zero NullableString.
type NullableString struct {
	Value string
	Valid bool // Valid is true if the field was present and not null
}

// String returns the string value if valid, or an empty string if absent.
func (ns NullableString) String() string {
	if ns.Valid {
		return ns.Value
	}
	return ""
}

// IsNil reports whether the string is absent or null.
func (ns NullableString) IsNil() bool {
	return !ns.Valid
}

// IsEmpty reports whether the string is absent or present but empty.
func (ns NullableString) IsEmpty() bool {
	return !ns.Valid || ns.Value == ""
}

// Set assigns a value and marks it as present.
func (ns *NullableString) Set(value string) {
	ns.Value = value
	ns.Valid = true
}

// MarshalJSON encodes the value, or null when absent.
func (ns NullableString) MarshalJSON() ([]byte, error) {
	if ns.Valid {
		return json.Marshal(ns.Value)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON decodes a JSON string; null leaves the value absent.
func (ns *NullableString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ns.Value = ""
		ns.Valid = false
		return nil
	}
	ns.Valid = true
	return json.Unmarshal(data, &ns.Value)
}

// NullableStringFrom returns a present NullableString.
func NullableStringFrom(s string) NullableString {
	return NullableString{Value: s, Valid: true}
}

// NullString returns an absent NullableString.
func NullString() NullableString {
	return NullableString{Value: "", Valid: false}
}

var _ json.Marshaler = &NullableString{}
var _ json.Unmarshaler = &NullableString{}
var _ Nullable = &NullableString{}
