package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrFieldMissing is returned when a field is not present in the document.
	ErrFieldMissing = errors.New("field is missing")
	// ErrFieldType is returned when a field is present with an unexpected JSON type.
	ErrFieldType = errors.New("field has unexpected type")
	// ErrNotObject is returned when the input is valid JSON but not an object.
	ErrNotObject = errors.New("document is not a JSON object")
	// ErrInvalidJSON is returned when the input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)

var emptyObject = []byte("{}")

// Document is a JSON object kept in its wire form. Field order is preserved as
// received, and reads go through explicit presence checks so callers can tell an
// absent field from a null one or one of the wrong type. Documents are values:
// mutating methods return a modified copy.
type Document struct {
	raw []byte
}

// NewDocument returns an empty document.
func NewDocument() Document {
	return Document{raw: emptyObject}
}

// ParseDocument validates data as a JSON object. Empty input yields an empty document.
func ParseDocument(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return NewDocument(), nil
	}
	if !gjson.ValidBytes(trimmed) {
		return Document{}, ErrInvalidJSON
	}
	if !gjson.ParseBytes(trimmed).IsObject() {
		return Document{}, ErrNotObject
	}
	raw := make([]byte, len(trimmed))
	copy(raw, trimmed)
	return Document{raw: raw}, nil
}

// MustParseDocument is like ParseDocument but panics on error.
func MustParseDocument(data string) Document {
	d, err := ParseDocument([]byte(data))
	if err != nil {
		panic(err)
	}
	return d
}

// DocumentFrom converts v into a Document. Documents, raw JSON and byte slices are
// parsed as-is; any other value is marshaled first. A nil value yields an empty document.
func DocumentFrom(v any) (Document, error) {
	switch val := v.(type) {
	case nil:
		return NewDocument(), nil
	case Document:
		return val, nil
	case *Document:
		if val == nil {
			return NewDocument(), nil
		}
		return *val, nil
	case json.RawMessage:
		return ParseDocument(val)
	case []byte:
		return ParseDocument(val)
	case string:
		return ParseDocument([]byte(val))
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return Document{}, err
		}
		return ParseDocument(b)
	}
}

func (d Document) bytes() []byte {
	if len(d.raw) == 0 {
		return emptyObject
	}
	return d.raw
}

// Raw returns the JSON encoding of the document.
func (d Document) Raw() json.RawMessage {
	return json.RawMessage(d.bytes())
}

// String returns the JSON text of the document.
func (d Document) String() string {
	return string(d.bytes())
}

// IsEmpty reports whether the document has no fields.
func (d Document) IsEmpty() bool {
	empty := true
	gjson.ParseBytes(d.bytes()).ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

// Keys returns the top-level field names in document order.
func (d Document) Keys() []string {
	var keys []string
	gjson.ParseBytes(d.bytes()).ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	return keys
}

// Lookup returns the raw result for a top-level field and whether it is present.
func (d Document) Lookup(key string) (gjson.Result, bool) {
	r := gjson.GetBytes(d.bytes(), escapeKey(key))
	return r, r.Exists()
}

// Has reports whether the field is present, including when it is null.
func (d Document) Has(key string) bool {
	_, ok := d.Lookup(key)
	return ok
}

// IsNull reports whether the field is present with an explicit null.
func (d Document) IsNull(key string) bool {
	r, ok := d.Lookup(key)
	return ok && r.Type == gjson.Null
}

// GetString reads a string field. A null field yields an absent NullableString
// and no error.
func (d Document) GetString(key string) (NullableString, error) {
	r, ok := d.Lookup(key)
	switch {
	case !ok:
		return NullString(), ErrFieldMissing
	case r.Type == gjson.Null:
		return NullString(), nil
	case r.Type != gjson.String:
		return NullString(), ErrFieldType
	}
	return NullableStringFrom(r.String()), nil
}

// GetInt reads an integral number field.
func (d Document) GetInt(key string) (int64, error) {
	r, ok := d.Lookup(key)
	if !ok {
		return 0, ErrFieldMissing
	}
	if r.Type != gjson.Number {
		return 0, ErrFieldType
	}
	return r.Int(), nil
}

// GetBool reads a boolean field.
func (d Document) GetBool(key string) (bool, error) {
	r, ok := d.Lookup(key)
	if !ok {
		return false, ErrFieldMissing
	}
	if r.Type != gjson.True && r.Type != gjson.False {
		return false, ErrFieldType
	}
	return r.Bool(), nil
}

// GetArray reads an array field.
func (d Document) GetArray(key string) ([]gjson.Result, error) {
	r, ok := d.Lookup(key)
	if !ok {
		return nil, ErrFieldMissing
	}
	if !r.IsArray() {
		return nil, ErrFieldType
	}
	return r.Array(), nil
}

// GetDocument reads an object field as a Document.
func (d Document) GetDocument(key string) (Document, error) {
	r, ok := d.Lookup(key)
	if !ok {
		return Document{}, ErrFieldMissing
	}
	if !r.IsObject() {
		return Document{}, ErrFieldType
	}
	return ParseDocument([]byte(r.Raw))
}

// GetDocuments reads an array of objects. Non-object elements are skipped.
func (d Document) GetDocuments(key string) ([]Document, error) {
	items, err := d.GetArray(key)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		doc, err := ParseDocument([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// With returns a copy with key set to value.
func (d Document) With(key string, value any) (Document, error) {
	out, err := sjson.SetBytes(d.clone(), escapeKey(key), value)
	if err != nil {
		return d, err
	}
	return Document{raw: out}, nil
}

// WithRaw returns a copy with key set to the given raw JSON.
func (d Document) WithRaw(key string, raw []byte) (Document, error) {
	if !gjson.ValidBytes(raw) {
		return d, ErrInvalidJSON
	}
	out, err := sjson.SetRawBytes(d.clone(), escapeKey(key), raw)
	if err != nil {
		return d, err
	}
	return Document{raw: out}, nil
}

// Without returns a copy with key removed. Removing an absent key is a no-op.
func (d Document) Without(key string) Document {
	if !d.Has(key) {
		return d
	}
	out, err := sjson.DeleteBytes(d.clone(), escapeKey(key))
	if err != nil {
		return d
	}
	return Document{raw: out}
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.bytes(), v)
}

// Map returns the document as a generic map.
func (d Document) Map() map[string]any {
	m, _ := gjson.ParseBytes(d.bytes()).Value().(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func (d Document) clone() []byte {
	src := d.bytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.clone(), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null yields an empty document.
func (d *Document) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = NewDocument()
		return nil
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// escapeKey turns a literal field name into a gjson/sjson path component.
func escapeKey(key string) string {
	const special = `\.*?|#@!=<>%"`
	if !strings.ContainsAny(key, special) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ json.Marshaler = Document{}
var _ json.Unmarshaler = &Document{}
