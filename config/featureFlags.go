package config

import (
	"os"
	"strings"
	"time"
)

// StrictEntityLocks makes the redis entity lock mandatory: when redis is not
// connected, or the lock cannot be obtained, the operation fails instead of
// relying on database row locks alone.
//
// Set via env:
// - STRICT_ENTITY_LOCKS=true
func StrictEntityLocks() bool {
	return boolFromEnv("STRICT_ENTITY_LOCKS")
}

// NotificationRetryConfig drives the notification dispatcher's backoff.
//
// Env:
// - NOTIFY_MAX_ATTEMPTS (default 8)
// - NOTIFY_BASE_BACKOFF_SECONDS (default 5)
// - NOTIFY_MAX_BACKOFF_SECONDS (default 600)
func NotificationRetryConfig() (maxAttempts int, base time.Duration, maxBackoff time.Duration) {
	maxAttempts = IntFromEnv("NOTIFY_MAX_ATTEMPTS", 8)
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	base = time.Duration(IntFromEnv("NOTIFY_BASE_BACKOFF_SECONDS", 5)) * time.Second
	if base <= 0 {
		base = 5 * time.Second
	}
	maxBackoff = time.Duration(IntFromEnv("NOTIFY_MAX_BACKOFF_SECONDS", 600)) * time.Second
	if maxBackoff < base {
		maxBackoff = base
	}
	return maxAttempts, base, maxBackoff
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
