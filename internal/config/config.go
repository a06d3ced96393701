// Package config loads application configuration from environment
// variables.  A .env file in the working directory is read first when
// present; real environment variables win over it.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the core runtime settings.  Each field corresponds to an
// environment variable.
type Config struct {
	Env          string // application environment (dev, test, prod)
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	AdminEmail    string // ADMIN_EMAIL, seeded admin account (optional)
	AdminPassword string // ADMIN_PASSWORD
}

// Load reads the .env file (if any) and returns a Config.  JWT_SECRET is
// enforced by must(); a missing value exits the process.  Database
// settings are only required by the MySQL store, see RequireDB.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		DBUser:       os.Getenv("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       os.Getenv("DB_HOST"),
		DBPort:       envStr("DB_PORT", "3306"),
		DBName:       os.Getenv("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:   envInt("BCRYPT_COST", 10),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
}

// RequireDB exits the process when a required database variable is
// missing.
func (c Config) RequireDB() {
	for k, v := range map[string]string{"DB_USER": c.DBUser, "DB_HOST": c.DBHost, "DB_NAME": c.DBName} {
		if v == "" {
			log.Fatalf("missing required env var: %s", k)
		}
	}
}

// LoadDotEnv loads .env into the environment without overriding
// variables that are already set.  A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: reading .env: %v", err)
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
