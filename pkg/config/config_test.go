package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseFilePath_DefaultsUnderDataDir(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, "/data/mbs4.db", cfg.DatabaseFilePath())
}

func TestDatabaseFilePath_FromURL(t *testing.T) {
	cfg := &Config{DataDir: "/data", DatabaseURL: "sqlite:///var/lib/mbs4.db"}
	assert.Equal(t, "/var/lib/mbs4.db", cfg.DatabaseFilePath())
}

func TestResolvedFilesDir_Default(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, "/data/ebooks", cfg.ResolvedFilesDir())
}

func TestResolvedFilesDir_Override(t *testing.T) {
	cfg := &Config{DataDir: "/data", FilesDir: "/mnt/ebooks"}
	assert.Equal(t, "/mnt/ebooks", cfg.ResolvedFilesDir())
}

func TestResolvedIndexPath_Default(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, "/data/mbs4-ft-idx.db", cfg.ResolvedIndexPath())
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, "sqlite://:memory:", cfg.DatabaseURL)
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath())
}
