package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPresence(t *testing.T) {
	doc := MustParseDocument(`{"sid":"abc","empty":"","nil":null,"num":3,"flag":true,"list":[1,2],"obj":{"a":1}}`)

	tests := []struct {
		name    string
		key     string
		want    NullableString
		wantErr error
	}{
		{name: "present", key: "sid", want: NullableStringFrom("abc")},
		{name: "present but empty", key: "empty", want: NullableStringFrom("")},
		{name: "null", key: "nil", want: NullString()},
		{name: "missing", key: "nope", want: NullString(), wantErr: ErrFieldMissing},
		{name: "wrong type", key: "num", want: NullString(), wantErr: ErrFieldType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := doc.GetString(tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, doc.Has("nil"))
	assert.True(t, doc.IsNull("nil"))
	assert.False(t, doc.Has("nope"))

	n, err := doc.GetInt("num")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = doc.GetInt("sid")
	assert.ErrorIs(t, err, ErrFieldType)

	b, err := doc.GetBool("flag")
	require.NoError(t, err)
	assert.True(t, b)

	items, err := doc.GetArray("list")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	obj, err := doc.GetDocument("obj")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, obj.Keys())
}

func TestDocumentMutationReturnsCopy(t *testing.T) {
	orig := MustParseDocument(`{"b":1,"a":2}`)

	withC, err := orig.With("c", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, orig.Keys())
	assert.Equal(t, []string{"b", "a", "c"}, withC.Keys())

	without := withC.Without("b")
	assert.Equal(t, []string{"a", "c"}, without.Keys())
	assert.Equal(t, without, without.Without("missing"))

	withRaw, err := orig.WithRaw("objects", []byte(`[{"n":1}]`))
	require.NoError(t, err)
	docs, err := withRaw.GetDocuments("objects")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = orig.WithRaw("bad", []byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestDocumentKeysWithSpecialCharacters(t *testing.T) {
	doc, err := NewDocument().With("a.b", 1)
	require.NoError(t, err)
	assert.True(t, doc.Has("a.b"))
	assert.False(t, doc.Has("a"))
	assert.JSONEq(t, `{"a.b":1}`, doc.String())
}

func TestParseDocument(t *testing.T) {
	_, err := ParseDocument([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ParseDocument([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	empty, err := ParseDocument(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "{}", empty.String())

	fromMap, err := DocumentFrom(map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", fromMap.Map()["k"])
}

func TestDocumentJSONRoundTripInStruct(t *testing.T) {
	type envelope struct {
		Data Document `json:"data"`
	}
	var e envelope
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"z":1,"a":2}}`), &e))
	assert.Equal(t, []string{"z", "a"}, e.Data.Keys())

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"z":1,"a":2}}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"data":null}`), &e))
	assert.True(t, e.Data.IsEmpty())
}

func TestNullableString(t *testing.T) {
	var ns NullableString
	assert.True(t, ns.IsNil())
	assert.True(t, ns.IsEmpty())

	require.NoError(t, json.Unmarshal([]byte(`""`), &ns))
	assert.False(t, ns.IsNil())
	assert.True(t, ns.IsEmpty())

	ns.Set("x")
	out, err := json.Marshal(ns)
	require.NoError(t, err)
	assert.Equal(t, `"x"`, string(out))

	out, err = json.Marshal(NullString())
	require.NoError(t, err)
	assert.Equal(t, `null`, string(out))
}
