package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlwio/internal/infra/crypto"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestHashPasswordFromArg(t *testing.T) {
	out, err := execute(t, "", "hash-password", "hunter2")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "argon2id$"), hash)
	ok, err := crypto.VerifyArgon2id("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	require.NoError(t, err)

	ok, err := crypto.VerifyArgon2id("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordRequiresInput(t *testing.T) {
	_, err := execute(t, "", "hash-password")
	assert.EqualError(t, err, "password is required")
}

func TestSeedCommandUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
content:
  - title: Perfect Blue
    releaseYear: 1997
    category: Anime
    thumbnail: https://img.example.com/perfect-blue.jpg
`), 0o600))

	configPath := filepath.Join(dir, "mlwio.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
auth:
  bootstrap_username: admin
  bootstrap_password: hunter2
catalog:
  seed_file: `+seedPath+`
log:
  level: error
`), 0o600))

	out, err := execute(t, "", "seed", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "admin created: true")
	assert.Contains(t, out, "content created: 1")
}

func TestSeedCommandRejectsBadPort(t *testing.T) {
	_, err := execute(t, "", "seed", "--port", "not-a-port")
	assert.Error(t, err)
}
