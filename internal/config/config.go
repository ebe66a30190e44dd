/*
 * file: config.go
 * package: config
 * description:
 *     Loads server configuration from the environment (optionally via a
 *     .env file), applying the defaults and clamps spec'd for the auth and
 *     persistence layers.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-resolved, typed set of environment-driven settings
// the server needs to start.
type Config struct {
	DatabaseURL      string
	DBMaxConnections int
	DBConnectTimeout time.Duration
	DBAcquireTimeout time.Duration

	JWTSecret               []byte
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	RefreshTokenRotateAfter time.Duration

	BindAddr string
}

/*
 * Load reads a .env file if present (missing files are not an error) and
 * resolves Config from the environment, applying defaults and clamping
 * RefreshTokenRotateAfter to [0, RefreshTokenTTL].
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - *Config: The resolved configuration.
 *   - error: A non-nil error if a required variable is missing or a
 *     present variable fails to parse.
 */
func Load() (*Config, error) {
	_ = godotenv.Load()

	databaseURL, ok := os.LookupEnv("DATABASE_URL")
	if !ok || databaseURL == "" {
		return nil, fmt.Errorf("missing env DATABASE_URL")
	}
	jwtSecret, ok := os.LookupEnv("JWT_SECRET")
	if !ok || jwtSecret == "" {
		return nil, fmt.Errorf("missing env JWT_SECRET")
	}

	dbMaxConns, err := intEnv("DB_MAX_CONNECTIONS", 10)
	if err != nil {
		return nil, err
	}
	dbConnectTimeout, err := intEnv("DB_CONNECT_TIMEOUT_SECS", 5)
	if err != nil {
		return nil, err
	}
	dbAcquireTimeout, err := intEnv("DB_ACQUIRE_TIMEOUT_SECS", 5)
	if err != nil {
		return nil, err
	}
	accessTTL, err := intEnv("ACCESS_TOKEN_TTL_SECS", 900)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := intEnv("REFRESH_TOKEN_TTL_SECS", 2_592_000)
	if err != nil {
		return nil, err
	}
	rotateThreshold, err := intEnv("REFRESH_TOKEN_ROTATE_THRESHOLD_SECS", 86_400)
	if err != nil {
		return nil, err
	}
	if rotateThreshold < 0 {
		rotateThreshold = 0
	}
	if rotateThreshold > refreshTTL {
		rotateThreshold = refreshTTL
	}

	bindAddr := os.Getenv("BIND_ADDR")
	if bindAddr == "" {
		bindAddr = "127.0.0.1:8080"
	}

	return &Config{
		DatabaseURL:      databaseURL,
		DBMaxConnections: dbMaxConns,
		DBConnectTimeout: time.Duration(dbConnectTimeout) * time.Second,
		DBAcquireTimeout: time.Duration(dbAcquireTimeout) * time.Second,

		JWTSecret:               []byte(jwtSecret),
		AccessTokenTTL:          time.Duration(accessTTL) * time.Second,
		RefreshTokenTTL:         time.Duration(refreshTTL) * time.Second,
		RefreshTokenRotateAfter: time.Duration(rotateThreshold) * time.Second,

		BindAddr: bindAddr,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid env %s: %w", key, err)
	}
	return v, nil
}
