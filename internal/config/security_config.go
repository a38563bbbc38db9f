package config

import (
	"os"
	"time"
)

type SecurityConfig interface {
	GetSessionSecret() []byte
	GetSessionLifetime() time.Duration
	GetSessionRefreshThreshold() time.Duration
	GetLockoutThreshold() int
	GetLockoutDuration() time.Duration
	GetLoginRateCeiling() int
	GetLoginRateWindow() time.Duration
	GetIPRateCeiling() int
	GetIPRateWindow() time.Duration
	GetMoodRateCeiling() int
	GetMoodRateWindow() time.Duration
	GetResetTokenTTL() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSecret returns the HMAC key for session tokens. The dev fallback
// keeps local runs working; production must set SESSION_SECRET.
func (Security) GetSessionSecret() []byte {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "dev-only-insecure-session-secret"
	}
	return []byte(secret)
}

func (Security) GetSessionLifetime() time.Duration {
	return 30 * 24 * time.Hour
}

// GetSessionRefreshThreshold controls sliding expiration: a validated token
// with less than this much lifetime left is re-issued.
func (Security) GetSessionRefreshThreshold() time.Duration {
	return 7 * 24 * time.Hour
}

func (Security) GetLockoutThreshold() int {
	return 5
}

func (Security) GetLockoutDuration() time.Duration {
	return 15 * time.Minute
}

func (Security) GetLoginRateCeiling() int {
	return 5
}

func (Security) GetLoginRateWindow() time.Duration {
	return 15 * time.Minute
}

func (Security) GetIPRateCeiling() int {
	return 100
}

func (Security) GetIPRateWindow() time.Duration {
	return time.Minute
}

func (Security) GetMoodRateCeiling() int {
	return 10
}

func (Security) GetMoodRateWindow() time.Duration {
	return time.Minute
}

func (Security) GetResetTokenTTL() time.Duration {
	return time.Hour
}
