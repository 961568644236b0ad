package config

import "time"

// SweepsEnabled turns the in-process sweep loop on or off.
//
// Set via env:
// - SWEEPS_ENABLED=false
func SweepsEnabled() bool {
	return boolFromEnv("SWEEPS_ENABLED", true)
}

// SweepInterval is how often the expiry and overdue sweeps run.
//
// Set via env:
// - SWEEP_INTERVAL_SECONDS=3600
func SweepInterval() time.Duration {
	secs := intFromEnv("SWEEP_INTERVAL_SECONDS", 3600)
	if secs <= 0 {
		secs = 3600
	}
	return time.Duration(secs) * time.Second
}

// RateLimitPerMinute caps requests per client IP. Zero disables the limiter.
//
// Set via env:
// - RATE_LIMIT_PER_MINUTE=120
func RateLimitPerMinute() int {
	return intFromEnv("RATE_LIMIT_PER_MINUTE", 0)
}
