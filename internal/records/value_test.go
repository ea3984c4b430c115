package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONKeepsKinds(t *testing.T) {
	in := Metadata{
		"name":  String("alice"),
		"count": Int(3),
		"ok":    Bool(true),
		"tags":  Strings("a", "b"),
		"nested": Map(map[string]Value{
			"ratio": Number(0.5),
			"none":  {},
		}),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Metadata
	require.NoError(t, json.Unmarshal(b, &out))

	assert.Equal(t, KindString, out["name"].Kind())
	assert.Equal(t, KindNumber, out["count"].Kind())
	assert.Equal(t, KindBool, out["ok"].Kind())
	assert.Equal(t, KindList, out["tags"].Kind())
	nested, ok := out["nested"].Fields()
	require.True(t, ok)
	ratio, _ := nested["ratio"].Num()
	assert.InDelta(t, 0.5, ratio, 1e-9)
	assert.True(t, nested["none"].IsNull())
	assert.Equal(t, in["tags"].Interface(), out["tags"].Interface())
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{"a": []any{1, "x", false}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{float64(1), "x", false}}, v.Interface())

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestMetadata_Flatten(t *testing.T) {
	m := Metadata{
		"user": Map(map[string]Value{"id": String("u1"), "roles": Strings("admin", "ops")}),
		"n":    Int(7),
	}
	var got []string
	m.Flatten("metadata", func(path, value string) {
		got = append(got, path+"="+value)
	})
	assert.Equal(t, []string{
		"metadata.n=7",
		"metadata.user.id=u1",
		"metadata.user.roles.0=admin",
		"metadata.user.roles.1=ops",
	}, got)
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	inner := map[string]Value{"k": String("v")}
	m := Metadata{"inner": Map(inner)}
	c := m.Clone()
	inner["k"] = String("changed")

	fields, _ := c["inner"].Fields()
	s, _ := fields["k"].Str()
	assert.Equal(t, "v", s)
}
