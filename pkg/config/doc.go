// Package config loads typed configuration structs from environment variables
// (github.com/caarlos0/env) with optional dotenv files (github.com/joho/godotenv).
package config
