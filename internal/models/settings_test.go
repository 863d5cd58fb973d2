package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibility_StringAndParse(t *testing.T) {
	assert.Equal(t, "private", Private.String())
	assert.Equal(t, "public", Public.String())

	v, err := ParseVisibility("private")
	require.NoError(t, err)
	assert.Equal(t, Private, v)

	v, err = ParseVisibility("public")
	require.NoError(t, err)
	assert.Equal(t, Public, v)

	_, err = ParseVisibility("friends")
	require.Error(t, err)
}

func TestPost_WireShapeHasFixedKeys(t *testing.T) {
	b, err := json.Marshal(Post{ID: 1, Kind: 2, Content: "hi", CreatedAt: 1000, Deleted: true})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	assert.Len(t, m, 6)
	for _, k := range []string{"id", "type", "content", "time", "files", "access"} {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, "", m["files"])
	assert.Equal(t, "", m["access"])
}
