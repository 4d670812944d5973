package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

// loadEnvVars merges --env-file files in order, then --env KEY=VALUE pairs.
// Later sources win.
func loadEnvVars(pairs []string, files []string) (map[string]string, error) {
	env := map[string]string{}

	for _, file := range files {
		fromFile, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("env file: %w", err)
		}
		for k, v := range fromFile {
			env[k] = v
		}
	}

	for _, pair := range pairs {
		key, _, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", pair)
		}
		parsed, err := godotenv.Unmarshal(pair)
		if err != nil {
			return nil, fmt.Errorf("invalid --env %q: %w", pair, err)
		}
		for k, v := range parsed {
			env[k] = v
		}
	}

	return env, nil
}
