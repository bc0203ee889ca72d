package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "warden")
}

func TestServe_MainnetFailsClosed(t *testing.T) {
	t.Setenv("NETWORK", "mainnet-beta")

	err := runServe("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mainnet")
}
