package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte(`{"rpid":"0xabc","total":"1000000000000000000"}`)

	sealed, err := Seal(plaintext, "secret-password", 1)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "rpid")

	opened, err := Open(sealed, "secret-password", 1)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenWrongPassword(t *testing.T) {
	sealed, err := Seal([]byte("payload"), "right", 1)
	require.NoError(t, err)

	_, err = Open(sealed, "wrong", 1)
	assert.Error(t, err)
}

func TestUnsupportedVersion(t *testing.T) {
	_, err := Seal([]byte("x"), "pw", 2)
	assert.Error(t, err)

	_, err = Open("AAAA", "pw", 0)
	assert.Error(t, err)
}

func TestOpenMalformed(t *testing.T) {
	_, err := Open("not base64!!!", "pw", 1)
	assert.Error(t, err)

	_, err = Open("AAAA", "pw", 1)
	assert.Error(t, err)
}
