package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "turnstile version "+turnstile.Version+"\n", out)
}

func TestThreadCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "absent.yaml")

	out, err := execute(t, "thread", "ls", "--config", cfg, "--store", "file", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No threads found.")

	_, err = execute(t, "thread", "inspect", "missing", "--config", cfg, "--store", "file", "--dir", dir)
	assert.Error(t, err)

	_, err = execute(t, "thread", "rm", "--config", cfg)
	assert.Error(t, err, "rm requires at least one id")
}
