package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file and sets environment variables.
// Existing env vars win over the file. A missing file returns an error the
// caller is free to ignore.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}
