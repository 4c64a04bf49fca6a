// Package config loads application configuration.
//
// Defaults are overridden first by an optional YAML file named in
// BCODB_CONFIG_FILE, then by BCODB_-prefixed environment variables, so a
// deployment can check in a base file and tweak single values per
// environment.
package config
