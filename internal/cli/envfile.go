package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnvFiles applies .env and then .env.local from cwd. Variables that
// are already set in the process environment are never replaced; between the
// two files the first definition wins.
func loadDotEnvFiles(cwd string) error {
	if strings.TrimSpace(cwd) == "" {
		return nil
	}

	var files []string
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(cwd, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}
