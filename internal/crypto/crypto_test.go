package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncryptor(t *testing.T) *Encryptor {
	key, err := GenerateKeyBytes()
	require.NoError(t, err)
	enc, err := NewEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestNewEncryptor(t *testing.T) {
	t.Run("valid key size", func(t *testing.T) {
		enc, err := NewEncryptor(make([]byte, KeySize))
		require.NoError(t, err)
		assert.NotNil(t, enc)
	})

	t.Run("invalid key sizes", func(t *testing.T) {
		for _, size := range []int{0, 16, 64} {
			enc, err := NewEncryptor(make([]byte, size))
			assert.ErrorIs(t, err, ErrInvalidKeySize)
			assert.Nil(t, enc)
		}
	})

	t.Run("from base64", func(t *testing.T) {
		enc, err := NewEncryptorFromBase64(base64.StdEncoding.EncodeToString(make([]byte, KeySize)))
		require.NoError(t, err)
		assert.NotNil(t, enc)

		_, err = NewEncryptorFromBase64("not-valid-base64!!!")
		assert.Error(t, err)

		_, err = NewEncryptorFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 16)))
		assert.ErrorIs(t, err, ErrInvalidKeySize)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	enc := newTestEncryptor(t)

	for name, plaintext := range map[string]string{
		"refresh token": "1//0gLq-refresh-token-value",
		"unicode":       "Тест Unicode 日本語",
	} {
		t.Run(name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt(plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, plaintext, ciphertext)

			raw, err := base64.StdEncoding.DecodeString(ciphertext)
			require.NoError(t, err)
			assert.Len(t, raw, NonceSize+len(plaintext)+16)

			decrypted, err := enc.Decrypt(ciphertext)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}

	t.Run("empty string", func(t *testing.T) {
		ciphertext, err := enc.Encrypt("")
		require.NoError(t, err)
		assert.Empty(t, ciphertext)

		decrypted, err := enc.Decrypt("")
		require.NoError(t, err)
		assert.Empty(t, decrypted)
	})

	t.Run("fresh nonce per call", func(t *testing.T) {
		c1, err := enc.Encrypt("same-text")
		require.NoError(t, err)
		c2, err := enc.Encrypt("same-text")
		require.NoError(t, err)
		assert.NotEqual(t, c1, c2)
	})
}

func TestDecryptErrors(t *testing.T) {
	enc := newTestEncryptor(t)

	t.Run("invalid base64", func(t *testing.T) {
		_, err := enc.Decrypt("not-valid-base64!!!")
		assert.Error(t, err)
	})

	t.Run("ciphertext too short", func(t *testing.T) {
		_, err := enc.Decrypt(base64.StdEncoding.EncodeToString(make([]byte, NonceSize)))
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		ciphertext, err := enc.Encrypt("secret")
		require.NoError(t, err)

		data, _ := base64.StdEncoding.DecodeString(ciphertext)
		data[len(data)-1] ^= 0xFF
		_, err = enc.Decrypt(base64.StdEncoding.EncodeToString(data))
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("wrong key", func(t *testing.T) {
		ciphertext, err := enc.Encrypt("secret")
		require.NoError(t, err)

		_, err = newTestEncryptor(t).Decrypt(ciphertext)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestPassphraseKeys(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)

	k1, err := DeriveKey("correct horse battery staple", salt)
	require.NoError(t, err)
	k2, err := DeriveKey("correct horse battery staple", salt)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)

	other, err := GenerateSalt()
	require.NoError(t, err)
	k3, err := DeriveKey("correct horse battery staple", other)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	_, err = DeriveKey("", salt)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
	_, err = DeriveKey("pass", []byte("short"))
	assert.Error(t, err)

	enc, err := NewEncryptorFromPassphrase("correct horse battery staple", salt)
	require.NoError(t, err)
	ciphertext, err := enc.Encrypt("token")
	require.NoError(t, err)

	again, err := NewEncryptorFromPassphrase("correct horse battery staple", salt)
	require.NoError(t, err)
	plaintext, err := again.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "token", plaintext)
}

func TestGenerateKey(t *testing.T) {
	encodedKey, err := GenerateKey()
	require.NoError(t, err)

	enc, err := NewEncryptorFromBase64(encodedKey)
	require.NoError(t, err)
	assert.NotNil(t, enc)

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, encodedKey, other)
}
