// Package dotenv loads .env files into the process environment before the
// configuration layer reads it. ENV_FILE overrides the default ./.env path.
package dotenv

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads ENV_FILE if set, otherwise ./.env. A missing default file is
// fine; a missing explicit ENV_FILE is an error.
func Load() error {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
