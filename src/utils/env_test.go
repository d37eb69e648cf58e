package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFilePath(t *testing.T) {
	t.Run("an explicit env file wins", func(t *testing.T) {
		t.Setenv("BACKOFFICE_ENV_FILE", "/etc/backoffice/.env")
		t.Setenv("PROJECTS_DIR", "/home/dev")

		path, err := EnvFilePath()
		require.NoError(t, err)
		assert.Equal(t, "/etc/backoffice/.env", path)
	})

	t.Run("development file under the projects dir by default", func(t *testing.T) {
		t.Setenv("BACKOFFICE_ENV_FILE", "")
		t.Setenv("PROJECTS_DIR", "/home/dev")
		t.Setenv("GO_ENV", "")

		path, err := EnvFilePath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/dev", "backoffice", "src", DEV_ENV_FILENAME), path)
	})

	t.Run("production file when GO_ENV is production", func(t *testing.T) {
		t.Setenv("BACKOFFICE_ENV_FILE", "")
		t.Setenv("PROJECTS_DIR", "/home/dev")
		t.Setenv("GO_ENV", "production")

		path, err := EnvFilePath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/dev", "backoffice", "src", PROD_ENV_FILENAME), path)
	})

	t.Run("missing projects dir is an error", func(t *testing.T) {
		t.Setenv("BACKOFFICE_ENV_FILE", "")
		t.Setenv("PROJECTS_DIR", "")

		_, err := EnvFilePath()
		assert.Error(t, err)
	})
}

func TestInitEnvironmentVariables(t *testing.T) {
	t.Run("loads variables from the env file", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("BACKOFFICE_TEST_VALUE=loaded\n"), 0o600))

		t.Setenv("ENV", "")
		t.Setenv("BACKOFFICE_ENV_FILE", envFile)
		t.Setenv("BACKOFFICE_TEST_VALUE", "")
		require.NoError(t, os.Unsetenv("BACKOFFICE_TEST_VALUE"))

		require.NoError(t, InitEnvironmentVariables())
		assert.Equal(t, "loaded", GetEnvOrDefault("BACKOFFICE_TEST_VALUE", "missing"))
	})

	t.Run("production skips the env file", func(t *testing.T) {
		t.Setenv("ENV", "production")
		t.Setenv("BACKOFFICE_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

		assert.NoError(t, InitEnvironmentVariables())
	})

	t.Run("a missing env file is an error", func(t *testing.T) {
		t.Setenv("ENV", "")
		t.Setenv("BACKOFFICE_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

		assert.Error(t, InitEnvironmentVariables())
	})
}

func TestGetEnv(t *testing.T) {
	t.Run("required variable present", func(t *testing.T) {
		t.Setenv("BACKOFFICE_TEST_PORT", "8080")

		value, err := GetEnv("BACKOFFICE_TEST_PORT")
		require.NoError(t, err)
		assert.Equal(t, "8080", value)
	})

	t.Run("required variable missing", func(t *testing.T) {
		t.Setenv("BACKOFFICE_TEST_PORT", "")

		_, err := GetEnv("BACKOFFICE_TEST_PORT")
		assert.Error(t, err)
		assert.Equal(t, "fallback", GetEnvOrDefault("BACKOFFICE_TEST_PORT", "fallback"))
	})
}
