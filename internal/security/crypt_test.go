package security

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := newKey(t)

	for _, plaintext := range []string{
		"shpat_0123456789abcdef",
		"",
		"token with spaces and unicode ✓",
	} {
		enc, err := EncryptToken(key, plaintext)
		require.NoError(t, err)
		assert.NotContains(t, enc, plaintext, "ciphertext must not leak the token")

		dec, err := DecryptToken(key, enc)
		require.NoError(t, err)
		assert.Equal(t, plaintext, dec)
	}
}

func TestEncryptionIsNonDeterministic(t *testing.T) {
	key := newKey(t)
	a, err := EncryptToken(key, "shpat_tok")
	require.NoError(t, err)
	b, err := EncryptToken(key, "shpat_tok")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per encryption")
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	enc, err := EncryptToken(newKey(t), "shpat_tok")
	require.NoError(t, err)

	_, err = DecryptToken(newKey(t), enc)
	require.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := newKey(t)
	enc, err := EncryptToken(key, "shpat_tok")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(enc)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = DecryptToken(key, base64.RawURLEncoding.EncodeToString(raw))
	require.Error(t, err)
}

func TestTokenKeyValidation(t *testing.T) {
	t.Setenv("TOKEN_ENC_KEY_B64", "")
	_, err := TokenKey()
	require.Error(t, err)

	t.Setenv("TOKEN_ENC_KEY_B64", base64.StdEncoding.EncodeToString(make([]byte, 16)))
	_, err = TokenKey()
	require.Error(t, err, "key must be exactly 32 bytes")

	t.Setenv("TOKEN_ENC_KEY_B64", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	key, err := TokenKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}
