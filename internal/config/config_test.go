package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.SymStoreKey)
	assert.NotNil(t, cfg.Local)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: :9090\nsym_store: s3\ns3:\n  bucket: crashes\n  region: us-east-1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "s3", cfg.SymStoreKey)
	require.NotNil(t, cfg.S3)
	assert.Equal(t, "crashes", cfg.S3.BucketName)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: :9090\n"), 0o644))

	t.Setenv("SYMBOLICATOR_ADDR", ":7070")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
}

func TestValidate_UnknownBackendIsInvalid(t *testing.T) {
	cfg := Default()
	cfg.SymStoreKey = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestValidate_SelectedBackendRequiresItsBlock(t *testing.T) {
	cfg := Default()
	cfg.SymStoreKey = "s3"
	cfg.S3 = nil
	assert.Error(t, cfg.Validate())
}

func TestValidate_UnknownLogFormatIsInvalid(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.Validate())
}
