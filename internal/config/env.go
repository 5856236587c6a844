// Package config reads the Pharos server's process-environment
// configuration. Every knob is an environment variable (§6 of the
// specification); this loader is adapted from the teacher's
// ingest/config env-var loader, including its "_FILE" fallback
// convention for values that may be more comfortably mounted as a
// file (keys directories, LDAP bind passwords).
package config

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

var (
	errNoEnvArg     = errors.New("no env arg")
	ErrEmptyEnvFile = errors.New("environment secret file is empty")
)

// loadEnv reads nm from the environment, falling back to reading the first
// line of the file named by nm+"_FILE" if nm itself is unset.
func loadEnv(nm string) (s string, err error) {
	var ok bool
	if s, ok = os.LookupEnv(nm); ok {
		return
	}
	if fp, ok := os.LookupEnv(nm + `_FILE`); ok {
		return loadEnvFile(fp)
	}
	return ``, errNoEnvArg
}

func loadEnvFile(nm string) (r string, err error) {
	fin, err := os.Open(nm)
	if err != nil {
		return
	}
	defer fin.Close()
	s := bufio.NewScanner(fin)
	s.Scan()
	if err = s.Err(); err != nil {
		return
	}
	r = s.Text()
	if r == `` {
		err = ErrEmptyEnvFile
	}
	return
}

// String reads envName, falling back to def if unset (and not backed by a
// "_FILE" variant either).
func String(envName, def string) string {
	v, err := loadEnv(envName)
	if err != nil {
		return def
	}
	return v
}

// StringList reads envName as a comma-separated list, trimming whitespace
// around each element and dropping empty elements.
func StringList(envName string) []string {
	arg, err := loadEnv(envName)
	if err != nil || arg == `` {
		return nil
	}
	var out []string
	for _, b := range strings.Split(arg, ",") {
		if b = strings.TrimSpace(b); b != `` {
			out = append(out, b)
		}
	}
	return out
}

// Bool reads envName as a boolean, defaulting to def if unset or invalid.
func Bool(envName string, def bool) bool {
	v, err := loadEnv(envName)
	if err != nil {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "yes", "y":
		return true
	case "0", "f", "false", "no", "n":
		return false
	}
	return def
}
