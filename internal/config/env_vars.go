package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	baseURLVar    = "BASE_URL"
	databaseVar   = "DATABASE_DSN"
	redisAddrVar  = "REDIS_ADDR"
	redisPassVar  = "REDIS_PASSWORD"
	signInPathVar = "SIGNIN_PATH"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetDatabaseDSN() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetSignInPath() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "MindWell Server")
}

// GetBaseURL returns the externally visible base URL, used for OAuth redirect
// URIs and reset links.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetDatabaseDSN returns the Postgres connection string. Empty means run with
// the in-memory repositories (tests, local development).
func (EnvVars) GetDatabaseDSN() string {
	return GetEnv(databaseVar, "")
}

// GetRedisAddr returns the Redis address for the shared rate-limit counter
// store. Empty means use the process-local store.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetRedisPassword() string {
	return GetEnv(redisPassVar, "")
}

// GetSignInPath is where unauthenticated page loads get redirected.
func (EnvVars) GetSignInPath() string {
	return GetEnv(signInPathVar, "/signin")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
