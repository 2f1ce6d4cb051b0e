package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	require.NoError(t, err)
	require.NotEmpty(t, configDir)

	assert.True(t, strings.Contains(configDir, appName),
		"config dir %q should contain %q", configDir, appName)

	switch runtime.GOOS {
	case "windows":
		assert.True(t, strings.Contains(configDir, "AppData") || strings.Contains(configDir, "Local"))
	default:
		assert.Contains(t, configDir, ".config")
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, configFile, filepath.Base(configPath))
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	assert.Equal(t, 1, reg.Version)
	assert.NotNil(t, reg.Routers)
	assert.Empty(t, reg.Default)
}

func TestRegistrySetRouter(t *testing.T) {
	reg := NewRegistry()

	reg.SetRouter("home", &Router{Host: "192.168.8.1"})

	router := reg.GetRouter("home")
	require.NotNil(t, router)
	assert.Equal(t, "192.168.8.1", router.Host)
	// Username defaults to the factory login.
	assert.Equal(t, DefaultUsername, router.Username)
	// First profile becomes default.
	assert.Equal(t, "home", reg.Default)
	assert.Same(t, router, reg.DefaultRouter())
}

func TestRegistrySetRouter_KeepsExistingDefault(t *testing.T) {
	reg := NewRegistry()
	reg.SetRouter("home", &Router{Host: "192.168.8.1"})
	reg.SetRouter("office", &Router{Host: "10.0.0.1", Username: "root"})

	assert.Equal(t, "home", reg.Default)
	assert.Equal(t, "root", reg.GetRouter("office").Username)
}

func TestRegistryRemoveRouter(t *testing.T) {
	reg := NewRegistry()
	reg.SetRouter("home", &Router{Host: "192.168.8.1"})

	assert.True(t, reg.RemoveRouter("home"))
	assert.Nil(t, reg.GetRouter("home"))
	// Removing the default profile clears the default.
	assert.Empty(t, reg.Default)

	assert.False(t, reg.RemoveRouter("missing"))
}

func TestRegistryTouchRouter(t *testing.T) {
	reg := NewRegistry()
	reg.SetRouter("home", &Router{Host: "192.168.8.1"})

	require.True(t, reg.GetRouter("home").LastSeen.IsZero())
	reg.TouchRouter("home")
	assert.False(t, reg.GetRouter("home").LastSeen.IsZero())

	// Touching an unknown profile must not panic.
	reg.TouchRouter("missing")
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.SetRouter("home", &Router{Host: "192.168.8.1", Username: "admin"})

	data, err := yaml.Marshal(reg)
	require.NoError(t, err)

	var loaded Registry
	require.NoError(t, yaml.Unmarshal(data, &loaded))

	assert.Equal(t, reg.Version, loaded.Version)
	assert.Equal(t, "home", loaded.Default)
	require.NotNil(t, loaded.GetRouter("home"))
	assert.Equal(t, "192.168.8.1", loaded.GetRouter("home").Host)
}

func TestLoadRegistryFromDisk_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	if runtime.GOOS == "windows" {
		t.Setenv("LOCALAPPDATA", tmpDir)
	}

	reg, err := loadRegistryFromDisk()
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Version)
	assert.Empty(t, reg.Routers)
}

func TestLoadRegistryFromDisk_BadVersion(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	if runtime.GOOS == "windows" {
		t.Setenv("LOCALAPPDATA", tmpDir)
	}

	configDir := filepath.Join(tmpDir, appName)
	require.NoError(t, os.MkdirAll(configDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, configFile), []byte("version: 2\n"), 0600))

	_, err := loadRegistryFromDisk()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version")
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	if runtime.GOOS == "windows" {
		t.Setenv("LOCALAPPDATA", tmpDir)
	}

	reg := NewRegistry()
	reg.SetRouter("home", &Router{Host: "192.168.8.1"})
	require.NoError(t, reg.Save())

	loaded, err := loadRegistryFromDisk()
	require.NoError(t, err)
	require.NotNil(t, loaded.GetRouter("home"))
	assert.Equal(t, "192.168.8.1", loaded.GetRouter("home").Host)

	// The saved file carries the security header comment.
	data, err := os.ReadFile(filepath.Join(tmpDir, appName, configFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "passwords are NEVER stored")
}
