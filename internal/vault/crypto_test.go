package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/pkg/errors"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	passphrase := []byte("a-test-passphrase-16")
	plaintext := []byte("the quick brown fox")

	blob, err := encryptSecret(passphrase, plaintext)
	require.NoError(t, err)

	// salt + iv + tag + ciphertext
	assert.Equal(t, saltSize+ivSize+tagSize+len(plaintext), len(blob))

	back, err := decryptSecret(passphrase, blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, back)
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	t.Parallel()

	blob, err := encryptSecret([]byte("correct-passphrase-1"), []byte("secret"))
	require.NoError(t, err)

	_, err = decryptSecret([]byte("wrong-passphrase-123"), blob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCrypto))
}

func TestDecrypt_TamperedCiphertextFailsClosed(t *testing.T) {
	t.Parallel()

	passphrase := []byte("a-test-passphrase-16")
	blob, err := encryptSecret(passphrase, []byte("secret"))
	require.NoError(t, err)

	// Flip one ciphertext bit; the authentication tag must catch it.
	blob[len(blob)-1] ^= 0x01
	_, err = decryptSecret(passphrase, blob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCrypto))
}

func TestDecrypt_TamperedTagFailsClosed(t *testing.T) {
	t.Parallel()

	passphrase := []byte("a-test-passphrase-16")
	blob, err := encryptSecret(passphrase, []byte("secret"))
	require.NoError(t, err)

	blob[saltSize+ivSize] ^= 0x01 // first tag byte
	_, err = decryptSecret(passphrase, blob)
	assert.Error(t, err)
}

func TestDecrypt_Truncated(t *testing.T) {
	t.Parallel()

	_, err := decryptSecret([]byte("a-test-passphrase-16"), []byte("short"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCrypto))
}

func TestEncrypt_FreshSaltPerCall(t *testing.T) {
	t.Parallel()

	passphrase := []byte("a-test-passphrase-16")
	a, err := encryptSecret(passphrase, []byte("same"))
	require.NoError(t, err)
	b, err := encryptSecret(passphrase, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a[:saltSize], b[:saltSize])
	assert.NotEqual(t, a, b)
}

func TestSecureBytes_Destroy(t *testing.T) {
	t.Parallel()

	sb := newSecureBytes([]byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3}, sb.bytes())

	sb.destroy()
	assert.Nil(t, sb.bytes())

	// Safe to destroy twice
	sb.destroy()
}
