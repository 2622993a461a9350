package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
  "accounts": [{
    "name": "main",
    "platform": "twitch",
    "twitch": {"username": "murmur", "oauth_token": "oauth:abc"},
    "channels": [{"id": "somestreamer", "name": "games", "use_ai": true}]
  }],
  "models": [{"name": "g", "provider": "google", "model_name": "gemini-2.0-flash", "api_key": "secret-key-1234", "enabled": true}]
}`

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "murmur.json")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

	out, err := runCmd(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "main (twitch)")
	assert.Contains(t, out, `somestreamer "games" ai=on`)
	assert.Contains(t, out, "key=****1234")
	assert.NotContains(t, out, "secret-key")
	assert.Contains(t, out, "config ok")
}

func TestCheckInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "murmur.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts": []}`), 0o600))

	_, err := runCmd(t, "check", "--config", path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no enabled models")
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "murmur dev")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask(""))
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "****cdef", mask("abcdef"))
}
