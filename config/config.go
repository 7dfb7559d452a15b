package config

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env (and .env.local when present) into the process
// environment. Variables already set win. A missing file is not an error.
func LoadEnv() {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Printf("config: load %s: %v", name, err)
		}
	}
}
