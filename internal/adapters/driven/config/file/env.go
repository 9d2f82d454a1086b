package file

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFile is the dotenv file read from the config directory.
const EnvFile = ".env"

// LoadEnv loads KEY=value pairs from .env in the working directory and then
// from the config directory. Variables already set in the process environment
// are never overridden, and missing files are ignored.
func LoadEnv(configDir string) error {
	candidates := []string{EnvFile}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, EnvFile))
	}

	var existing []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

// ReadEnv parses a dotenv file without touching the process environment.
func ReadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}
