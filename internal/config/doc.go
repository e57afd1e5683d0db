// Package config assembles process settings from defaults, an optional YAML
// file, an optional .env file and the environment, in that order of
// increasing precedence. Secrets are only read from the environment.
package config
