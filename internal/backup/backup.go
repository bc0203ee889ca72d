// Package backup exports the vault's at-rest state as an age-encrypted
// archive. The archive carries public wallet metadata, policies, and
// the AEAD ciphertext blobs exactly as the vault stores them; plaintext
// secret keys never enter the archive.
package backup

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"filippo.io/age"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/vault"
	"github.com/casthq/warden/pkg/errors"
)

// FormatVersion identifies the archive layout.
const FormatVersion = 1

// Archive is the plaintext structure encrypted into a backup.
type Archive struct {
	Version    int                     `json:"version"`
	ExportedAt time.Time               `json:"exportedAt"`
	Wallets    []vault.ExportedWallet  `json:"wallets"`
}

// Exporter produces encrypted backups of one vault.
type Exporter struct {
	vault      *vault.Vault
	passphrase string
	log        *zap.Logger
}

// NewExporter creates an exporter. The passphrase protects the archive
// itself and is independent of the vault's key-encryption secret.
func NewExporter(v *vault.Vault, passphrase string, log *zap.Logger) (*Exporter, error) {
	if passphrase == "" {
		return nil, errors.Validation("backup passphrase must not be empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{vault: v, passphrase: passphrase, log: log}, nil
}

// Export serialises the vault's exported wallets and encrypts the
// archive with an age scrypt recipient.
func (e *Exporter) Export() ([]byte, error) {
	archive := Archive{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC(),
		Wallets:    e.vault.Export(),
	}

	plain, err := json.Marshal(archive)
	if err != nil {
		return nil, errors.Internal("encoding backup archive", err)
	}

	recipient, err := age.NewScryptRecipient(e.passphrase)
	if err != nil {
		return nil, errors.Crypto("creating backup recipient", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, errors.Crypto("starting backup encryption", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, errors.Crypto("encrypting backup archive", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Crypto("finalising backup archive", err)
	}

	e.log.Info("vault backup exported",
		zap.Int("wallets", len(archive.Wallets)),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Open decrypts an archive produced by Export. Used by the restore
// tooling and by tests; a wrong passphrase fails closed.
func Open(data []byte, passphrase string) (Archive, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return Archive{}, errors.Crypto("creating backup identity", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return Archive{}, errors.Crypto("decrypting backup archive", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return Archive{}, errors.Crypto("reading backup archive", err)
	}

	var archive Archive
	if err := json.Unmarshal(plain, &archive); err != nil {
		return Archive{}, errors.Internal("decoding backup archive", err)
	}
	if archive.Version != FormatVersion {
		return Archive{}, errors.Validation("unsupported backup version %d", archive.Version)
	}
	return archive, nil
}
