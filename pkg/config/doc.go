// Package config loads typed configuration from environment variables using
// github.com/caarlos0/env, with optional .env files read by
// github.com/joho/godotenv. Each package declares its own Config struct with
// env/envDefault tags; the binary embeds them in one struct and calls Load once.
package config
