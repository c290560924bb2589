// Package config loads service configuration from the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombook/internal/booking"
)

// Config captures environment driven configuration values for the room
// booking service.
type Config struct {
	HTTPPort  int
	SQLiteDSN string
	// AMQPURL enables broker notifications when set; empty means log-only.
	AMQPURL   string
	AMQPQueue string
	// CacheTTL bounds how long availability responses may be served from cache.
	CacheTTL time.Duration
	Settings booking.Settings
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to sensible defaults; invalid values are
// accumulated and reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:  8080,
		SQLiteDSN: "file:roombook.db?_foreign_keys=on",
		AMQPQueue: "roombook.notifications",
		CacheTTL:  30 * time.Second,
		Settings:  booking.DefaultSettings(),
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ROOMBOOK_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROOMBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ROOMBOOK_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if url := strings.TrimSpace(os.Getenv("ROOMBOOK_AMQP_URL")); url != "" {
		cfg.AMQPURL = url
	}
	if queue := strings.TrimSpace(os.Getenv("ROOMBOOK_AMQP_QUEUE")); queue != "" {
		cfg.AMQPQueue = queue
	}

	if ttlValue := strings.TrimSpace(os.Getenv("ROOMBOOK_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ROOMBOOK_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if graceValue := strings.TrimSpace(os.Getenv("ROOMBOOK_GRACE_PERIOD")); graceValue != "" {
		grace, err := time.ParseDuration(graceValue)
		if err != nil || grace < 0 {
			invalid = append(invalid, "ROOMBOOK_GRACE_PERIOD")
		} else {
			cfg.Settings.GracePeriod = grace
		}
	}

	if windowValue := strings.TrimSpace(os.Getenv("ROOMBOOK_SUGGESTION_WINDOW")); windowValue != "" {
		window, err := time.ParseDuration(windowValue)
		if err != nil || window <= 0 {
			invalid = append(invalid, "ROOMBOOK_SUGGESTION_WINDOW")
		} else {
			cfg.Settings.SuggestionWindow = window
		}
	}

	if stepValue := strings.TrimSpace(os.Getenv("ROOMBOOK_SUGGESTION_STEP")); stepValue != "" {
		step, err := time.ParseDuration(stepValue)
		if err != nil || step <= 0 {
			invalid = append(invalid, "ROOMBOOK_SUGGESTION_STEP")
		} else {
			cfg.Settings.SuggestionStep = step
		}
	}

	if ratioValue := strings.TrimSpace(os.Getenv("ROOMBOOK_MAX_SHORTEN_RATIO")); ratioValue != "" {
		ratio, err := strconv.ParseFloat(ratioValue, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			invalid = append(invalid, "ROOMBOOK_MAX_SHORTEN_RATIO")
		} else {
			cfg.Settings.MaxShortenRatio = ratio
		}
	}

	if notifyValue := strings.TrimSpace(os.Getenv("ROOMBOOK_NOTIFICATIONS")); notifyValue != "" {
		enabled, err := strconv.ParseBool(notifyValue)
		if err != nil {
			invalid = append(invalid, "ROOMBOOK_NOTIFICATIONS")
		} else {
			cfg.Settings.NotificationsEnabled = enabled
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
