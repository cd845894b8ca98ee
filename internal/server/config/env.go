package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/userkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv overlays values from environment variables onto config. Variables
// that are not set leave the current value untouched.
//
// A dotenv file is loaded first when given via -envfile; otherwise ".env" in
// the working directory is tried. godotenv never overrides variables that
// are already present in the process environment. A malformed environment
// value panics, matching the JSON and flag loaders.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
