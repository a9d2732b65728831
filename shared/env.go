package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const Version = "0.1.0"

type GetenvParser[T any] func(raw string) (T, error)

func GetenvString(raw string) (string, error) {
	return raw, nil
}

func GetenvInt(raw string) (int, error) {
	return strconv.Atoi(raw)
}

func GetenvBool(raw string) (bool, error) {
	return strconv.ParseBool(raw)
}

func GetenvDuration(raw string) (time.Duration, error) {
	return time.ParseDuration(raw)
}

// Getenv reads and parses an environment variable. When the variable is unset,
// required=true yields an error and required=false yields fallback.
func Getenv[T any](parse GetenvParser[T], key string, required bool, fallback T) (T, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		if required {
			var zero T
			return zero, fmt.Errorf("environment variable %s is required", key)
		}
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parsing environment variable %s: %w", key, err)
	}
	return v, nil
}

func MustGetenv[T any](parse GetenvParser[T], key string, required bool, fallback T) T {
	v, err := Getenv(parse, key, required, fallback)
	if err != nil {
		panic(err)
	}
	return v
}
