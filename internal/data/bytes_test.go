package data

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_MarshalUnpadded(t *testing.T) {
	buf, err := json.Marshal(Bytes("a"))
	require.NoError(t, err)
	assert.Equal(t, `"YQ"`, string(buf))

	buf, err = json.Marshal(Bytes{0xfb, 0xff})
	require.NoError(t, err)
	assert.NotContains(t, string(buf), "=")
	// Standard alphabet, not URL-safe.
	assert.Equal(t, `"+/8"`, string(buf))
}

func TestBytes_UnmarshalAcceptsPadding(t *testing.T) {
	var padded, unpadded Bytes
	require.NoError(t, json.Unmarshal([]byte(`"YQ=="`), &padded))
	require.NoError(t, json.Unmarshal([]byte(`"YQ"`), &unpadded))
	assert.Equal(t, unpadded, padded)
	assert.Equal(t, Bytes("a"), padded)
}

func TestBytes_RoundTrip(t *testing.T) {
	original := Bytes{0, 1, 2, 253, 254, 255}
	buf, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Bytes
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestBytes_UnmarshalErrors(t *testing.T) {
	var b Bytes
	assert.Error(t, json.Unmarshal([]byte(`"not base64!!"`), &b))
	assert.Error(t, json.Unmarshal([]byte(`42`), &b))
}
