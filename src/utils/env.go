package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DEV_ENV_FILENAME  = ".env.development"
	PROD_ENV_FILENAME = ".env.production"
)

// EnvFilePath resolves the dotenv file for this process. BACKOFFICE_ENV_FILE wins over the
// PROJECTS_DIR layout.
func EnvFilePath() (string, error) {
	if path := os.Getenv("BACKOFFICE_ENV_FILE"); path != "" {
		return path, nil
	}

	projectsDir := os.Getenv("PROJECTS_DIR")
	if projectsDir == "" {
		return "", fmt.Errorf("EnvFilePath: PROJECTS_DIR environment variable not set")
	}

	filename := DEV_ENV_FILENAME
	if os.Getenv("GO_ENV") == "production" {
		filename = PROD_ENV_FILENAME
	}

	return filepath.Join(projectsDir, "backoffice", "src", filename), nil
}

func InitEnvironmentVariables() error {
	// Containers inject their environment directly
	if os.Getenv("ENV") == "production" {
		log.Info("Running in production environment")
		return nil
	}

	envFile, err := EnvFilePath()
	if err != nil {
		return fmt.Errorf("InitEnvironmentVariables: %w", err)
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("InitEnvironmentVariables: failed to load %s: %w", envFile, err)
	}

	log.Debugf("loaded environment from %s", envFile)

	return nil
}

// GetEnv returns the value of a required environment variable.
func GetEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable not set", key)
	}

	return value, nil
}

func GetEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
