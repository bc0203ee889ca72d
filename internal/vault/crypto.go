package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/scrypt"

	"github.com/casthq/warden/pkg/errors"
)

// At-rest encryption parameters. Keys are derived per wallet with scrypt
// (N=2^15, r=8 → 32 MiB memory cost) and sealed with AES-256-GCM.
// The stored blob is salt ‖ iv ‖ tag ‖ ciphertext.
const (
	saltSize = 16
	ivSize   = 12
	tagSize  = 16
	keySize  = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// deriveKey runs the KDF over the vault passphrase and per-wallet salt.
func deriveKey(passphrase, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, errors.Crypto("key derivation failed", err)
	}
	return key, nil
}

// encryptSecret seals plaintext under the passphrase with a fresh salt
// and IV. The caller retains ownership of plaintext and should zero it.
func encryptSecret(passphrase, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Crypto("generating salt", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Crypto("generating iv", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Crypto("initializing cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Crypto("initializing gcm", err)
	}

	// Seal appends ciphertext‖tag; split the tag out to match the
	// stored layout salt‖iv‖tag‖ct.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, saltSize+ivSize+tagSize+len(ct))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return blob, nil
}

// decryptSecret opens a blob produced by encryptSecret. Fails closed on
// any truncation or authentication-tag mismatch.
func decryptSecret(passphrase, blob []byte) ([]byte, error) {
	if len(blob) < saltSize+ivSize+tagSize {
		return nil, errors.Crypto("encrypted blob is truncated", nil)
	}

	salt := blob[:saltSize]
	iv := blob[saltSize : saltSize+ivSize]
	tag := blob[saltSize+ivSize : saltSize+ivSize+tagSize]
	ct := blob[saltSize+ivSize+tagSize:]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Crypto("initializing cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Crypto("initializing gcm", err)
	}

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, errors.Crypto("decryption failed: wrong passphrase or corrupted blob", err)
	}
	return plaintext, nil
}
