package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte { return bytes.Repeat([]byte{7}, 32) }

func TestXChaCha_RoundTrip(t *testing.T) {
	c, err := NewXChaCha(testKey())
	require.NoError(t, err)

	for _, text := range []string{"hi bob", "", "ünïcødé ✓", strings.Repeat("x", 4096)} {
		sealed, err := c.Seal(text)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
		if text != "" {
			assert.NotContains(t, sealed, text)
		}

		opened, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, text, opened)
	}
}

func TestXChaCha_NoncesDiffer(t *testing.T) {
	c, err := NewXChaCha(testKey())
	require.NoError(t, err)
	a, _ := c.Seal("same")
	b, _ := c.Seal("same")
	assert.NotEqual(t, a, b)
}

func TestXChaCha_OpenLegacyAndTampered(t *testing.T) {
	c, err := NewXChaCha(testKey())
	require.NoError(t, err)

	opened, err := c.Open("stored before encryption")
	require.NoError(t, err)
	assert.Equal(t, "stored before encryption", opened)

	sealed, err := c.Seal("secret")
	require.NoError(t, err)
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = c.Open(sealedPrefix + base64.RawStdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Open(sealedPrefix + "!!")
	assert.ErrorIs(t, err, ErrMalformed)

	other, err := NewXChaCha(bytes.Repeat([]byte{8}, 32))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFromHexKey(t *testing.T) {
	c, err := FromHexKey("")
	require.NoError(t, err)
	assert.IsType(t, Plaintext{}, c)

	_, err = FromHexKey("zz")
	assert.Error(t, err)

	_, err = FromHexKey("abcd")
	assert.Error(t, err)

	c, err = FromHexKey(strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.IsType(t, &XChaCha{}, c)
}

func TestPlaintext_RefusesSealedPayload(t *testing.T) {
	_, err := Plaintext{}.Open(sealedPrefix + "abc")
	assert.ErrorIs(t, err, ErrMalformed)

	out, err := Plaintext{}.Seal("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}
