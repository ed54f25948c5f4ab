// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ProcRoot  string        `validate:"required"`
	EtcRoot   string        `validate:"required"`
	Interval  time.Duration `validate:"gt=0"`
	Workers   int           `validate:"min=1,max=256"`
	Top       int           `validate:"min=0"`
	LogLevel  string        `validate:"oneof=debug info warn error"`
	LogFormat string        `validate:"oneof=text json"`
}

// Load reads an optional .env file and then the environment. Unset or
// unparsable values fall back to defaults; Validate catches the rest.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ProcRoot:  getEnv("PROCTOP_PROC_ROOT", "/proc"),
		EtcRoot:   getEnv("PROCTOP_ETC_ROOT", "/etc"),
		Interval:  getDuration("PROCTOP_INTERVAL", time.Second),
		Workers:   getInt("PROCTOP_WORKERS", 8),
		Top:       getInt("PROCTOP_TOP", 10),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

var validate = validator.New()

// Validate checks c and reports every failing field in one error. Log level
// and format are lowercased first; flags may have set them after Load.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		case "gt", "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}
