package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches into dir for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", s.Host)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "localhost:8080", s.Addr())
	assert.Equal(t, "scenarios", s.ScenariosDir)
	assert.Equal(t, "sessions", s.SessionsDir)
	assert.Equal(t, StorageFile, s.StorageType)
	assert.Equal(t, "sessions/autodrive.db", s.SQLitePath)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "autodrive.log", s.LogFile)
	assert.False(t, s.NgrokEnabled)
	assert.Equal(t, "", s.NgrokDomain)
	assert.Equal(t, 300*time.Millisecond, s.ReplayDelay)
}

func TestLoad_WorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	cfg := `{
		"server": {"port": 9090},
		"storage": {"type": "sqlite", "sqlitePath": "data/runs.db"},
		"replay": {"delay": "1s"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(cfg), 0644))
	chdir(t, dir)

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, StorageSQLite, s.StorageType)
	assert.Equal(t, "data/runs.db", s.SQLitePath)
	assert.Equal(t, time.Second, s.ReplayDelay)
	assert.Equal(t, "localhost", s.Host)
}

func TestLoad_ExplicitPath(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log": {"level": "debug"}}`), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load("/nonexistent/autodrive.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading settings file")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AUTODRIVE_SERVER_PORT", "7070")
	t.Setenv("AUTODRIVE_NGROK_ENABLED", "true")
	t.Setenv("AUTODRIVE_PATHS_SCENARIOS", "/srv/scenarios")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, s.Port)
	assert.True(t, s.NgrokEnabled)
	assert.Equal(t, "/srv/scenarios", s.ScenariosDir)
}

func TestLoad_InvalidStorageType(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AUTODRIVE_STORAGE_TYPE", "postgres")

	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestValidate(t *testing.T) {
	valid := Settings{StorageType: StorageFile, Port: 8080}
	assert.NoError(t, valid.Validate())

	badPort := valid
	badPort.Port = 0
	assert.ErrorIs(t, badPort.Validate(), ErrInvalidSettings)

	badDelay := valid
	badDelay.ReplayDelay = -time.Second
	assert.ErrorIs(t, badDelay.Validate(), ErrInvalidSettings)
}
