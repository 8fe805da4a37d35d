package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	os.Unsetenv("ENVIRONMENT")

	env, err := loadEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, env.Environment)
	assert.Equal(t, 8080, env.ServerPort)
	assert.Equal(t, "node1", env.RaftID)
	assert.True(t, env.RaftBootstrap)
	assert.Equal(t, 4, env.ImportWorkers)
	assert.Empty(t, env.ImportDir)
}

func TestLoadEnv_Dotenv(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	os.Unsetenv("SERVER_PORT")
	t.Setenv("DATA_DIR", "")
	os.Unsetenv("DATA_DIR")
	t.Setenv("RAFT_ID", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT=9090\nDATA_DIR=/tmp/stats\nRAFT_ID=from-file\n"), 0600))

	env, err := loadEnv(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, env.ServerPort)
	assert.Equal(t, "/tmp/stats", env.DataDir)
	assert.Equal(t, "from-env", env.RaftID)
}

func TestLoadEnv_MissingDotenvIsIgnored(t *testing.T) {
	_, err := loadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoadEnv_UnknownEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")

	_, err := loadEnv()
	require.Error(t, err)
}

func TestLoadEnv_BadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "http")

	_, err := loadEnv()
	require.Error(t, err)
}
