// Package env reads the process environment, loading .env files first.
package env

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Env is a view over the process environment.
type Env struct {
	loaded []string
}

// New returns an Env without loading any file.
func New() *Env {
	return &Env{}
}

// Process loads the given .env files into the process environment and returns
// the Env. Missing files are skipped. Variables already set in the process
// win over file values, and earlier files win over later ones.
//
// Example:
//
//	e, err := env.Process(".env", ".env."+appEnv)
func Process(paths ...string) (*Env, error) {
	e := New()
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
		e.loaded = append(e.loaded, path)
	}
	return e, nil
}

// Loaded returns the files Process actually read.
func (e *Env) Loaded() []string {
	return append([]string(nil), e.loaded...)
}

// Get returns the value of key, or def when it is unset or empty.
func (e *Env) Get(key, def string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return def
}

// Set writes key into the process environment.
func (e *Env) Set(key, value string) error {
	return os.Setenv(key, value)
}

// Has reports whether key is set, even to an empty value.
func (e *Env) Has(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// Lookup is Get without a default, suitable for os.Expand.
func (e *Env) Lookup(key string) string {
	return os.Getenv(key)
}

// Require reports every key that is unset or empty.
func (e *Env) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if e.Get(key, "") == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	return &MissingError{Keys: missing}
}

// Decode fills the `env` tagged fields of the struct pointed to by v.
// Tags follow envdecode: `env:"REDIS_URL,default=redis://localhost:6379,required"`.
//
// Example:
//
//	var cfg struct {
//		Port int `env:"PORT,default=3333"`
//	}
//	err := e.Decode(&cfg)
func (e *Env) Decode(v any) error {
	err := envdecode.Decode(v)
	if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil
	}
	return err
}

// MissingError lists required environment variables that are not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing environment variables: %s", strings.Join(e.Keys, ", "))
}
