package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesSectionsAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.conf", `
[defaults]
full_interval = 3600
log_file = /var/log/%n.log

[home]
source = /srv/home
destination = backup:/mnt/home
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sections, 1)

	home := cfg.Sections[0]
	assert.Equal(t, "home", home.Name)
	assert.Equal(t, 3600*time.Second, home.FullInterval)
	assert.Equal(t, "/var/log/home.log", home.LogFile)
}

func TestLoadRejectsSourceDestinationInDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.conf", `
[defaults]
source = /no

[home]
destination = backup:/mnt/home
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingSourceOrDestination(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.conf", `
[home]
source = /srv/home
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadSplicesIncludedFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "extra.conf", `
[extra]
source = /srv/extra
destination = backup:/mnt/extra
`)
	path := writeConfig(t, dir, "main.conf", `
include = extra.conf

[home]
source = /srv/home
destination = backup:/mnt/home
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Sections))
	for _, s := range cfg.Sections {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"home", "extra"}, names)
}

func TestLoadIncludeSkipsBackupSuffixedFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "extra.conf~", `
[extra]
source = /srv/extra
destination = backup:/mnt/extra
`)
	path := writeConfig(t, dir, "main.conf", `
include = extra.conf*

[home]
source = /srv/home
destination = backup:/mnt/home
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Sections))
	for _, s := range cfg.Sections {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"home"}, names)
}

func TestLoadExcludeKeyRepeatable(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "main.conf", `
[home]
source = /srv/home
destination = backup:/mnt/home
exclude = *.log
exclude = *.tmp
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sections, 1)
	assert.ElementsMatch(t, []string{"*.log", "*.tmp"}, cfg.Sections[0].Excludes)
}
