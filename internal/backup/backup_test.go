package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casthq/warden/internal/vault"
	"github.com/casthq/warden/pkg/errors"
)

func TestExportRoundTrip(t *testing.T) {
	t.Parallel()

	v := vault.New("vault-passphrase-16ch", nil)
	defer v.Close()
	w1, err := v.CreateWallet("alpha")
	require.NoError(t, err)
	_, err = v.CreateWallet("beta")
	require.NoError(t, err)

	e, err := NewExporter(v, "backup-passphrase", nil)
	require.NoError(t, err)

	data, err := e.Export()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	archive, err := Open(data, "backup-passphrase")
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, archive.Version)
	require.Len(t, archive.Wallets, 2)

	var found bool
	for _, ew := range archive.Wallets {
		if ew.Info.ID == w1.ID {
			found = true
			assert.Equal(t, w1.PublicKey, ew.Info.PublicKey)
			assert.NotEmpty(t, ew.EncryptedSecret)
		}
	}
	assert.True(t, found, "exported archive should contain the first wallet")
}

func TestOpen_WrongPassphrase(t *testing.T) {
	t.Parallel()

	v := vault.New("vault-passphrase-16ch", nil)
	defer v.Close()
	_, err := v.CreateWallet("alpha")
	require.NoError(t, err)

	e, err := NewExporter(v, "backup-passphrase", nil)
	require.NoError(t, err)
	data, err := e.Export()
	require.NoError(t, err)

	_, err = Open(data, "not-the-passphrase")
	require.Error(t, err)
	assert.Equal(t, errors.CodeCrypto, errors.Code(err))
}

func TestNewExporter_RequiresPassphrase(t *testing.T) {
	t.Parallel()

	v := vault.New("vault-passphrase-16ch", nil)
	defer v.Close()

	_, err := NewExporter(v, "", nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
