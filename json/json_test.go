package json

import (
	"bytes"
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPreset struct {
	Name    string `json:"name" default:"thumbnail"`
	Width   int    `json:"width" default:"300"`
	Height  int    `json:"height" default:"200"`
	Crop    bool   `json:"crop" default:"true"`
	Quality int    `json:"quality,omitempty"`
}

func TestMarshalAppliesDefaults(t *testing.T) {
	p := &testPreset{Name: "banner"}

	data, err := Marshal(p)
	require.NoError(t, err)

	assert.Equal(t, 300, p.Width)
	assert.True(t, p.Crop)

	var decoded testPreset
	require.NoError(t, stdjson.Unmarshal(data, &decoded))
	assert.Equal(t, *p, decoded)
}

func TestMarshalNonPointerValues(t *testing.T) {
	data, err := Marshal([]string{"a", "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	data, err = Marshal(testPreset{Name: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","width":0,"height":0,"crop":false}`, string(data))
}

func TestUnmarshalKeepsDefaultsForMissingFields(t *testing.T) {
	var p testPreset
	require.NoError(t, Unmarshal([]byte(`{"name":"optimized","width":1000}`), &p))

	assert.Equal(t, "optimized", p.Name)
	assert.Equal(t, 1000, p.Width)
	assert.Equal(t, 200, p.Height)
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(&testPreset{Name: "banner", Width: 1200, Height: 400}))

	var out testPreset
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, 1200, out.Width)
	assert.Equal(t, 400, out.Height)
	assert.True(t, out.Crop)
}
