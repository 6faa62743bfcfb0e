// Package env loads process configuration from environment variables.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// GetOrDefault returns os.Getenv(key), or defaultValue if unset or blank.
func GetOrDefault(key, defaultValue string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return defaultValue
	}

	return v
}

// GetIntOrDefault returns os.Getenv(key) parsed as int64, or defaultValue if
// unset or unparsable.
func GetIntOrDefault(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}

	return v
}

// GetBoolOrDefault returns os.Getenv(key) parsed as bool, or defaultValue if
// unset or unparsable.
func GetBoolOrDefault(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}

	return v
}

var (
	loadOnce   sync.Once
	loadResult bool
)

// LoadDotEnv loads a .env file once per process when ENV_NAME is "local" (the
// default). It is a no-op, not a fatal error, when no .env file is present.
func LoadDotEnv() {
	envName := GetOrDefault("ENV_NAME", "local")
	if envName != "local" {
		return
	}

	loadOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			loadResult = false
			return
		}

		loadResult = true
	})
}

// DotEnvLoaded reports whether LoadDotEnv found and applied a .env file.
func DotEnvLoaded() bool { return loadResult }

// SetFromEnvVars populates the fields of the struct pointed to by s from
// their "env" struct tag. Supported kinds are string, bool and the signed
// integer family; a tagged field of any other kind makes it return an error.
func SetFromEnvVars(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("env: SetFromEnvVars requires a non-nil pointer")
	}

	elem := v.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}

		name := strings.Split(tag, ",")[0]
		if name == "" {
			continue
		}

		fv := elem.Field(i)
		if !fv.CanSet() {
			continue
		}

		switch fv.Kind() {
		case reflect.Bool:
			fv.SetBool(GetBoolOrDefault(name, fv.Bool()))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(GetIntOrDefault(name, fv.Int()))
		case reflect.String:
			if raw, present := os.LookupEnv(name); present {
				fv.SetString(raw)
			}
		default:
			return fmt.Errorf("env: unsupported field kind %s for %s", fv.Kind(), field.Name)
		}
	}

	return nil
}
