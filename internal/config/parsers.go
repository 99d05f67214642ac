package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// lookupSetting searches for a value in settings using multiple candidate
// keys, so both "log_level" and "loglevel" spellings work.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if value, ok := settings[key]; ok {
			return value, true
		}
	}
	return nil, false
}

// asString converts an interface value to a string.
func asString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

// asInt converts an interface value to an int.
func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// asBool converts an interface value to a bool.
func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", v)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", value)
	}
}

// asDuration converts an interface value to a time.Duration. Bare numbers
// are treated as seconds.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return parsed, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", value)
	}
}

func getString(flags *pflag.FlagSet, name string, dst *string) error {
	val, err := flags.GetString(name)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func getInt(flags *pflag.FlagSet, name string, dst *int) error {
	val, err := flags.GetInt(name)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func getBool(flags *pflag.FlagSet, name string, dst *bool) error {
	val, err := flags.GetBool(name)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func getDuration(flags *pflag.FlagSet, name string, dst *time.Duration) error {
	val, err := flags.GetDuration(name)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
